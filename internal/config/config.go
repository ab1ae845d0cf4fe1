package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanwarp/internal/cleanup"
	"github.com/MeKo-Tech/scanwarp/internal/codec"
	"github.com/MeKo-Tech/scanwarp/internal/detector"
	"github.com/MeKo-Tech/scanwarp/internal/source"
	"github.com/MeKo-Tech/scanwarp/internal/vision"
	"github.com/MeKo-Tech/scanwarp/internal/worker"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	src := source.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Vision: VisionConfig{
			Backend: vision.BackendNative,
		},
		Detector: DetectorConfig{
			MinArea:      det.MinArea,
			EpsilonRatio: det.EpsilonRatio,
			BlurKernel:   det.BlurKernel,
			MaxDimension: det.MaxDimension,
		},
		Cleanup: CleanupConfig{
			Enabled:    true,
			KernelSize: cleanup.DefaultConfig().KernelSize,
		},
		Source: SourceConfig{
			TimeoutSec: int(src.Timeout / time.Second),
			MaxMB:      int(src.MaxBytes >> 20),
			AllowFiles: src.AllowFiles,
			UserAgent:  src.UserAgent,
			MaxPixels:  codec.DefaultMaxPixels,
		},
		Workers: WorkersConfig{
			Count:     0, // runtime.NumCPU()
			QueueSize: 0,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			MetricsEnabled:  true,
		},
		Batch: BatchConfig{
			OutputDir:       "out",
			ContinueOnError: true,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validBackends := []string{vision.BackendNative, vision.BackendGocv, vision.BackendNone}
	if !slices.Contains(validBackends, c.Vision.Backend) {
		return fmt.Errorf("invalid vision backend: %s (must be one of: %s)", c.Vision.Backend, strings.Join(validBackends, ", "))
	}

	if err := c.ToDetectorConfig().Validate(); err != nil {
		return fmt.Errorf("invalid detector settings: %w", err)
	}
	if c.Cleanup.KernelSize < 1 {
		return fmt.Errorf("invalid cleanup kernel size: %d (must be positive)", c.Cleanup.KernelSize)
	}

	if c.Source.TimeoutSec <= 0 {
		return fmt.Errorf("invalid source timeout: %d (must be positive)", c.Source.TimeoutSec)
	}
	if c.Source.MaxMB <= 0 {
		return fmt.Errorf("invalid source size limit: %d (must be positive)", c.Source.MaxMB)
	}
	if c.Source.MaxPixels <= 0 {
		return fmt.Errorf("invalid pixel limit: %d (must be positive)", c.Source.MaxPixels)
	}

	if c.Workers.Count < 0 {
		return fmt.Errorf("invalid worker count: %d (must be non-negative)", c.Workers.Count)
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("invalid worker queue size: %d (must be non-negative)", c.Workers.QueueSize)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	return nil
}

// ToDetectorConfig converts to detector.Config.
func (c *Config) ToDetectorConfig() detector.Config {
	return detector.Config{
		MinArea:      c.Detector.MinArea,
		EpsilonRatio: c.Detector.EpsilonRatio,
		BlurKernel:   c.Detector.BlurKernel,
		MaxDimension: c.Detector.MaxDimension,
	}
}

// ToCleanupConfig converts to cleanup.Config.
func (c *Config) ToCleanupConfig() cleanup.Config {
	return cleanup.Config{KernelSize: c.Cleanup.KernelSize}
}

// ToSourceConfig converts to source.Config.
func (c *Config) ToSourceConfig() source.Config {
	return source.Config{
		Timeout:    time.Duration(c.Source.TimeoutSec) * time.Second,
		MaxBytes:   int64(c.Source.MaxMB) << 20,
		AllowFiles: c.Source.AllowFiles,
		UserAgent:  c.Source.UserAgent,

		BlockPrivateHosts: c.Source.BlockPrivateHosts,
	}
}

// ForServe returns a copy restricted for untrusted network clients: local
// files and private hosts stay unreachable unless the server section opts in.
func (c *Config) ForServe() *Config {
	out := *c
	out.Source.AllowFiles = c.Server.AllowLocalFiles
	out.Source.BlockPrivateHosts = !c.Server.AllowPrivateHosts
	return &out
}

// ToWorkerConfig converts to worker.Config.
func (c *Config) ToWorkerConfig() worker.Config {
	return worker.Config{Workers: c.Workers.Count, QueueSize: c.Workers.QueueSize}
}

// VisionLoader returns the capability loader for the configured backend.
func (c *Config) VisionLoader() (vision.Loader, error) {
	return vision.LoaderFor(c.Vision.Backend)
}
