//nolint:lll
package config

// Config represents the complete configuration for scanwarp.
// It includes settings for all commands (detect, warp, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Image processing backend
	Vision VisionConfig `mapstructure:"vision" yaml:"vision" json:"vision"`

	// Corner detection
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`

	// Background cleanup after automatic warps
	Cleanup CleanupConfig `mapstructure:"cleanup" yaml:"cleanup" json:"cleanup"`

	// Source fetching
	Source SourceConfig `mapstructure:"source" yaml:"source" json:"source"`

	// Worker contexts
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers" json:"workers"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// VisionConfig selects the image processing backend.
type VisionConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
}

// DetectorConfig contains corner detection settings.
type DetectorConfig struct {
	MinArea      float64 `mapstructure:"min_area" yaml:"min_area" json:"min_area"`
	EpsilonRatio float64 `mapstructure:"epsilon_ratio" yaml:"epsilon_ratio" json:"epsilon_ratio"`
	BlurKernel   int     `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	MaxDimension int     `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
}

// CleanupConfig contains background cleanup settings.
type CleanupConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	KernelSize int  `mapstructure:"kernel_size" yaml:"kernel_size" json:"kernel_size"`
}

// SourceConfig contains source fetching settings.
type SourceConfig struct {
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MaxMB      int    `mapstructure:"max_mb" yaml:"max_mb" json:"max_mb"`
	AllowFiles bool   `mapstructure:"allow_files" yaml:"allow_files" json:"allow_files"`
	UserAgent  string `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
	// Largest image decoded or produced, in pixels
	MaxPixels int64 `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
	// Set by ForServe, never read from files
	BlockPrivateHosts bool `mapstructure:"-" yaml:"-" json:"-"`
}

// WorkersConfig contains worker pool settings.
type WorkersConfig struct {
	Count     int `mapstructure:"count" yaml:"count" json:"count"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MetricsEnabled  bool   `mapstructure:"metrics_enabled" yaml:"metrics_enabled" json:"metrics_enabled"`
	// Clients may name server-local paths and file:// URLs as sources
	AllowLocalFiles bool `mapstructure:"allow_local_files" yaml:"allow_local_files" json:"allow_local_files"`
	// Clients may name loopback, private and link-local hosts as sources
	AllowPrivateHosts bool `mapstructure:"allow_private_hosts" yaml:"allow_private_hosts" json:"allow_private_hosts"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	ContinueOnError bool   `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
