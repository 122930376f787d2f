package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

var (
	validDecoders        = []string{"gstreamer", "ffmpeg"}
	validCaptureBackends = []string{"auto", "x11", "devtools", "portal"}
	validThemeBackends   = []string{"devtools", "desktop", "memory"}
	validOutputBackends  = []string{"x11", "mjpeg", "discard"}
	validLogLevels       = []string{"trace", "debug", "info", "warn", "error"}
)

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
		}
	}

	check(c.Video.Width > 0 && c.Video.Height > 0, "video size %dx%d", c.Video.Width, c.Video.Height)
	check(oneOf(c.Video.Decoder, validDecoders), "video.decoder %q", c.Video.Decoder)
	check(c.Video.Volume >= 0 && c.Video.Volume <= 1, "video.volume %v not in [0,1]", c.Video.Volume)
	check(c.Render.RefreshHz >= 0, "render.refresh_hz %d", c.Render.RefreshHz)
	check(finite(c.Render.Margin) && c.Render.Margin >= 0, "render.margin %v", c.Render.Margin)
	check(finite(c.Render.AnchorX), "render.anchor_x %v", c.Render.AnchorX)
	check(finite(c.Render.AnchorY), "render.anchor_y %v", c.Render.AnchorY)
	check(oneOf(c.Capture.Backend, validCaptureBackends), "capture.backend %q", c.Capture.Backend)
	check(c.Capture.SettleDelayMs >= 0, "capture.settle_delay_ms %d", c.Capture.SettleDelayMs)
	check(oneOf(c.Theme.Backend, validThemeBackends), "theme.backend %q", c.Theme.Backend)
	check(oneOf(c.Output.Backend, validOutputBackends), "output.backend %q", c.Output.Backend)
	check(c.Output.Quality >= 1 && c.Output.Quality <= 100, "output.quality %d", c.Output.Quality)
	check(c.ServerPort >= 0 && c.ServerPort < 65536, "server_port %d", c.ServerPort)
	check(oneOf(c.LogLevel, validLogLevels), "log_level %q", c.LogLevel)

	return errors.Join(errs...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
