// Package snapshot captures the host UI once per theme. The two captures
// are the light and dark masks the renderer composites every frame.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/capture"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/bryanchriswhite/Silhouette/internal/theme"
	"github.com/bryanchriswhite/Silhouette/internal/vsync"
)

// DefaultSettleDelay is how long the host gets to re-render after a theme
// switch before it is captured.
const DefaultSettleDelay = 500 * time.Millisecond

// ErrCaptureUnavailable means no captured window matched the host.
var ErrCaptureUnavailable = errors.New("capture unavailable")

// Pair holds the host rendered in both themes.
type Pair struct {
	Light *image.RGBA
	Dark  *image.RGBA
}

// Complete reports whether both snapshots are present.
func (p Pair) Complete() bool {
	return p.Light != nil && p.Dark != nil
}

// Get returns the snapshot for t.
func (p Pair) Get(t theme.Theme) *image.RGBA {
	if t == theme.Dark {
		return p.Dark
	}
	return p.Light
}

func (p *Pair) set(t theme.Theme, img *image.RGBA) {
	if t == theme.Dark {
		p.Dark = img
	} else {
		p.Light = img
	}
}

// Acquirer flips the host theme and captures it in both states.
type Acquirer struct {
	Theme   theme.Service
	Capture capture.Service
	VSync   vsync.Source

	// HostName selects the host among the captured windows by substring.
	HostName string

	// Width and Height are the requested capture size, normally the screen.
	Width  int
	Height int

	SettleDelay time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Acquire captures the current theme first and the other one second, then
// puts the original theme back. The theme is restored on every return path,
// including failures and cancellation. Captures never overlap.
func (a *Acquirer) Acquire(ctx context.Context) (pair Pair, err error) {
	log := logger.WithComponent("snapshot")

	original, err := a.Theme.Get(ctx)
	if err != nil {
		return Pair{}, fmt.Errorf("read theme: %w", err)
	}

	defer func() {
		// ctx may already be cancelled; the host must not be left flipped
		restoreErr := a.Theme.Set(context.WithoutCancel(ctx), original)
		if restoreErr != nil {
			log.Error().Err(restoreErr).Str("theme", original.String()).Msg("Failed to restore theme")
			err = errors.Join(err, fmt.Errorf("restore theme: %w", restoreErr))
		}
		if err != nil {
			pair = Pair{}
		}
	}()

	for _, t := range []theme.Theme{original, original.Other()} {
		img, err := a.captureAs(ctx, t)
		if err != nil {
			return Pair{}, err
		}
		pair.set(t, img)
	}

	log.Info().
		Str("first", original.String()).
		Int("width", pair.Light.Bounds().Dx()).
		Int("height", pair.Light.Bounds().Dy()).
		Msg("Snapshots acquired")
	return pair, nil
}

func (a *Acquirer) captureAs(ctx context.Context, t theme.Theme) (*image.RGBA, error) {
	if err := a.Theme.Set(ctx, t); err != nil {
		return nil, fmt.Errorf("set theme %s: %w", t, err)
	}

	if a.VSync != nil {
		select {
		case <-a.VSync.Next():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := a.sleep(ctx, a.settleDelay()); err != nil {
		return nil, err
	}

	previews, err := a.Capture.CaptureWindow(ctx, a.Width, a.Height)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	preview, ok := a.selectHost(previews)
	if !ok {
		return nil, fmt.Errorf("%w: no window named %q among %d", ErrCaptureUnavailable, a.HostName, len(previews))
	}

	img, err := capture.DecodeRGBA(preview.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	logger.WithComponent("snapshot").Debug().
		Str("theme", t.String()).
		Str("window", preview.Name).
		Msg("Captured host")
	return img, nil
}

func (a *Acquirer) selectHost(previews []capture.Preview) (capture.Preview, bool) {
	match := capture.NameContains(a.HostName)
	for _, p := range previews {
		if match(p) {
			return p, true
		}
	}
	return capture.Preview{}, false
}

func (a *Acquirer) settleDelay() time.Duration {
	if a.SettleDelay > 0 {
		return a.SettleDelay
	}
	return DefaultSettleDelay
}

func (a *Acquirer) sleep(ctx context.Context, d time.Duration) error {
	if a.Sleep != nil {
		return a.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
