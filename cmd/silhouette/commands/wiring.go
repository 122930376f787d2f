package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/capture"
	"github.com/bryanchriswhite/Silhouette/internal/config"
	"github.com/bryanchriswhite/Silhouette/internal/crop"
	"github.com/bryanchriswhite/Silhouette/internal/devtools"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/bryanchriswhite/Silhouette/internal/portal"
	"github.com/bryanchriswhite/Silhouette/internal/snapshot"
	"github.com/bryanchriswhite/Silhouette/internal/theme"
	"github.com/bryanchriswhite/Silhouette/internal/viewport"
	"github.com/bryanchriswhite/Silhouette/internal/vsync"
)

// fallbackSize is the viewport used when there is no X server to ask.
var fallbackSize = viewport.Size{Width: 1920, Height: 1080}

// hostStack holds the adapters to the host: theme switching and capture.
type hostStack struct {
	devtools *devtools.Host
	portal   *portal.Client
	theme    theme.Service
	capture  *capture.Router
}

// buildHostStack connects the adapters the config asks for. In auto capture
// mode every backend that connects is used, in order x11, devtools, portal.
func buildHostStack(ctx context.Context, cfg *config.Config, nameFilter string) (*hostStack, error) {
	log := logger.WithComponent("wiring")
	s := &hostStack{capture: capture.NewRouter()}

	auto := cfg.Capture.Backend == "auto"
	needDevTools := cfg.Theme.Backend == "devtools" || cfg.Capture.Backend == "devtools" || auto
	needPortal := cfg.Theme.Backend == "desktop" || cfg.Capture.Backend == "portal" || auto

	if needDevTools {
		host, err := devtools.Connect(ctx, cfg.DevTools.URL, cfg.DevTools.PageTitle)
		switch {
		case err == nil:
			s.devtools = host
		case cfg.Theme.Backend == "devtools" || cfg.Capture.Backend == "devtools":
			s.Close()
			return nil, fmt.Errorf("connect to host devtools at %s: %w", cfg.DevTools.URL, err)
		default:
			log.Warn().Err(err).Str("url", cfg.DevTools.URL).Msg("DevTools unavailable")
		}
	}

	if needPortal {
		client, err := portal.New()
		switch {
		case err == nil:
			s.portal = client
		case cfg.Theme.Backend == "desktop" || cfg.Capture.Backend == "portal":
			s.Close()
			return nil, fmt.Errorf("connect to desktop portal: %w", err)
		default:
			log.Warn().Err(err).Msg("Desktop portal unavailable")
		}
	}

	switch cfg.Theme.Backend {
	case "devtools":
		s.theme = theme.NewDevTools(s.devtools, cfg.Theme.LightClass, cfg.Theme.DarkClass)
	case "desktop":
		s.theme = theme.NewDesktop(s.portal, theme.ExecRunner, cfg.Theme.LightCmd, cfg.Theme.DarkCmd)
	default:
		s.theme = theme.NewMemory(theme.Light)
	}

	if auto || cfg.Capture.Backend == "x11" {
		x11, err := capture.NewX11Capturer(nameFilter)
		switch {
		case err == nil:
			s.capture.Add(x11)
		case !auto:
			s.Close()
			return nil, fmt.Errorf("x11 capture: %w", err)
		default:
			log.Warn().Err(err).Msg("X11 capture unavailable")
		}
	}
	if s.devtools != nil && (auto || cfg.Capture.Backend == "devtools") {
		s.capture.Add(capture.NewDevToolsCapturer(s.devtools))
	}
	if s.portal != nil && (auto || cfg.Capture.Backend == "portal") {
		s.capture.Add(capture.NewPortalCapturer(s.portal, cfg.Capture.HostName))
	}

	if len(s.capture.Backends()) == 0 {
		s.Close()
		return nil, capture.ErrNoBackend
	}

	log.Info().
		Str("theme", cfg.Theme.Backend).
		Strs("capture", s.capture.Backends()).
		Msg("Host adapters ready")
	return s, nil
}

// Close releases every adapter.
func (s *hostStack) Close() {
	if s.capture != nil {
		s.capture.Close()
	}
	if s.devtools != nil {
		s.devtools.Close()
	}
	if s.portal != nil {
		s.portal.Close()
	}
}

// newAcquirer builds the snapshot acquirer for a screen of the given size.
// Capture backends that do not show the host are skipped.
func newAcquirer(cfg *config.Config, s *hostStack, ticks vsync.Source, size viewport.Size) *snapshot.Acquirer {
	return &snapshot.Acquirer{
		Theme:       s.theme,
		Capture:     s.capture.Matching(capture.NameContains(cfg.Capture.HostName)),
		VSync:       ticks,
		HostName:    cfg.Capture.HostName,
		Width:       size.Width,
		Height:      size.Height,
		SettleDelay: time.Duration(cfg.Capture.SettleDelayMs) * time.Millisecond,
	}
}

// newViewport watches the X root window, or returns a fixed size without X.
func newViewport() (viewport.Provider, func()) {
	p, err := viewport.NewX11Provider()
	if err != nil {
		logger.WithComponent("wiring").Warn().
			Err(err).
			Int("width", fallbackSize.Width).
			Int("height", fallbackSize.Height).
			Msg("No X server, using a fixed viewport")
		return viewport.NewStatic(fallbackSize), func() {}
	}
	return p, func() { p.Close() }
}

func videoSize(cfg *config.Config) crop.Size {
	return crop.Size{Width: float64(cfg.Video.Width), Height: float64(cfg.Video.Height)}
}

func anchor(cfg *config.Config) crop.Anchor {
	return crop.Anchor{X: cfg.Render.AnchorX, Y: cfg.Render.AnchorY}
}
