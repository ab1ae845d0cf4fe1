// Package source resolves a job's source reference to encoded image bytes.
package source

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrUnsupportedRef is returned for schemes the fetcher cannot resolve.
	ErrUnsupportedRef = errors.New("unsupported source reference")
	// ErrTooLarge is returned when a source exceeds the configured byte cap.
	ErrTooLarge = errors.New("source exceeds size limit")
	// ErrForbiddenHost is returned when BlockPrivateHosts rejects a destination.
	ErrForbiddenHost = errors.New("source host not allowed")
)

// Config controls what the Fetcher may read.
type Config struct {
	Timeout    time.Duration
	MaxBytes   int64
	AllowFiles bool
	UserAgent  string
	// BlockPrivateHosts refuses HTTP connections to loopback, private,
	// link-local and unspecified addresses, including after redirects.
	BlockPrivateHosts bool
}

// DefaultConfig returns a 30s timeout, a 64 MiB cap and local files enabled.
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		MaxBytes:   64 << 20,
		AllowFiles: true,
		UserAgent:  "scanwarp",
	}
}

// Fetcher reads http(s) URLs, data: URIs, file:// URLs and plain paths.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New returns a Fetcher. A nil client gets one with cfg.Timeout and, when
// cfg.BlockPrivateHosts is set, a dialer that checks every resolved address.
func New(cfg Config, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
		if cfg.BlockPrivateHosts {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.Proxy = nil
			transport.DialContext = (&net.Dialer{Timeout: cfg.Timeout, Control: publicOnly}).DialContext
			client.Transport = transport
		}
	}
	return &Fetcher{cfg: cfg, client: client}
}

// publicOnly is a net.Dialer Control hook; it sees the address after DNS
// resolution.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast()
}

// Fetch returns the bytes behind ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrUnsupportedRef)
	}
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(lower, "data:"):
		return f.decodeDataURI(ref)
	case strings.HasPrefix(lower, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		return f.readFile(u.Path)
	case strings.Contains(lower, "://"), strings.HasPrefix(lower, "blob:"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, schemeOf(ref))
	default:
		return f.readFile(ref)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", ref, resp.Status)
	}
	return f.readLimited(resp.Body)
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.cfg.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.cfg.MaxBytes)
	}
	return data, nil
}

// decodeDataURI handles data:[<mediatype>][;base64],<data>.
func (f *Fetcher) decodeDataURI(ref string) ([]byte, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: data uri without payload", ErrUnsupportedRef)
	}
	meta, payload := ref[len("data:"):comma], ref[comma+1:]

	var data []byte
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		data = []byte(unescaped)
	}
	if f.cfg.MaxBytes > 0 && int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.cfg.MaxBytes)
	}
	return data, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	if !f.cfg.AllowFiles {
		return nil, fmt.Errorf("%w: local files are disabled", ErrUnsupportedRef)
	}
	file, err := os.Open(path) //nolint:gosec // G304: path comes from the job and AllowFiles gates it
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = file.Close() }()
	return f.readLimited(file)
}

func schemeOf(ref string) string {
	if i := strings.Index(ref, ":"); i > 0 {
		return ref[:i]
	}
	return ref
}
