package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bryanchriswhite/Silhouette/internal/logger"
)

// ErrNoBackend is returned when the router has no backend to ask.
var ErrNoBackend = errors.New("no capture backends available")

// Router routes capture requests to the first backend that returns any
// preview, in registration order. With a match predicate the first backend
// that returns a matching preview wins instead.
type Router struct {
	backends []Backend
	match    func(Preview) bool
	mu       sync.RWMutex
}

// NameContains matches previews whose name contains name.
func NameContains(name string) func(Preview) bool {
	return func(p Preview) bool {
		return strings.Contains(p.Name, name)
	}
}

// NewRouter creates a router over the given backends.
func NewRouter(backends ...Backend) *Router {
	return &Router{backends: backends}
}

// Add appends a backend with the lowest priority.
func (r *Router) Add(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = append(r.backends, b)
}

// Matching returns a router over the same backends that skips backends
// whose previews do not satisfy match. Closing either router closes the
// shared backends.
func (r *Router) Matching(match func(Preview) bool) *Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Router{
		backends: append([]Backend(nil), r.backends...),
		match:    match,
	}
}

// Backends returns the names of the registered backends.
func (r *Router) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return names
}

// CaptureWindow asks each backend in turn. Backend errors are logged and the
// next backend is tried; the last error is returned if none succeeds. When no
// backend has a matching preview, the last non-empty result is returned so
// the caller can report what was on screen.
func (r *Router) CaptureWindow(ctx context.Context, width, height int) ([]Preview, error) {
	r.mu.RLock()
	backends := append([]Backend(nil), r.backends...)
	match := r.match
	r.mu.RUnlock()

	log := logger.WithComponent("capture-router")

	if len(backends) == 0 {
		return nil, ErrNoBackend
	}

	var (
		lastErr   error
		unmatched []Preview
	)
	for _, b := range backends {
		previews, err := b.CaptureWindow(ctx, width, height)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("backend", b.Name()).Msg("Capture backend failed, trying next")
			lastErr = err
			continue
		}
		if len(previews) == 0 {
			log.Debug().Str("backend", b.Name()).Msg("Capture backend returned no windows")
			continue
		}
		if match != nil && !anyMatch(previews, match) {
			log.Debug().Str("backend", b.Name()).Int("previews", len(previews)).Msg("No matching window, trying next")
			unmatched = previews
			continue
		}

		log.Debug().Str("backend", b.Name()).Int("previews", len(previews)).Msg("Captured windows")
		return previews, nil
	}

	if unmatched != nil {
		return unmatched, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("all capture backends failed: %w", lastErr)
	}
	return nil, nil
}

func anyMatch(previews []Preview, match func(Preview) bool) bool {
	for _, p := range previews {
		if match(p) {
			return true
		}
	}
	return false
}

// Close closes every backend.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	r.backends = nil
	return errors.Join(errs...)
}
