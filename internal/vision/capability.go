package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable marks a capability that could not be loaded.
var ErrUnavailable = errors.New("vision capability unavailable")

// Loader produces a Backend. It may be slow or fail.
type Loader func(ctx context.Context) (Backend, error)

// Capability lazily loads a Backend and shares it between the jobs of one
// worker context. Concurrent callers wait for the first load. A failed load
// is not cached, so the next job tries again.
type Capability struct {
	mu       sync.Mutex
	load     Loader
	backend  Backend
	attempts int
}

// NewCapability wraps load.
func NewCapability(load Loader) *Capability {
	return &Capability{load: load}
}

// Acquire returns the loaded Backend, loading it first if needed.
// Load failures wrap ErrUnavailable.
func (c *Capability) Acquire(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend != nil {
		return c.backend, nil
	}
	if c.load == nil {
		return nil, fmt.Errorf("%w: no loader configured", ErrUnavailable)
	}
	c.attempts++
	b, err := c.load(ctx)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: loader returned no backend", ErrUnavailable)
	}
	c.backend = b
	return b, nil
}

// Ready reports whether a Backend has been loaded.
func (c *Capability) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend != nil
}

// Attempts is the number of load attempts so far.
func (c *Capability) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Static is a Loader that always yields b.
func Static(b Backend) Loader {
	return func(context.Context) (Backend, error) { return b, nil }
}

// Disabled is a Loader that always fails with ErrUnavailable.
func Disabled(reason string) Loader {
	return func(context.Context) (Backend, error) {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, reason)
	}
}

// Backend names accepted by LoaderFor.
const (
	BackendNative = "native"
	BackendGocv   = "gocv"
	BackendNone   = "none"
)

// LoaderFor maps a configured backend name to its Loader.
func LoaderFor(name string) (Loader, error) {
	switch name {
	case BackendNative, "":
		return func(context.Context) (Backend, error) { return NewNative(), nil }, nil
	case BackendGocv:
		return func(context.Context) (Backend, error) { return newGocv() }, nil
	case BackendNone:
		return Disabled("backend disabled by configuration"), nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q", name)
	}
}
