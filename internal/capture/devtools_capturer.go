package capture

import (
	"context"
	"fmt"
)

// PageScreenshotter is a host page that can screenshot itself.
// *devtools.Host implements it.
type PageScreenshotter interface {
	Title() string
	Screenshot(ctx context.Context, width, height int) ([]byte, error)
}

// DevToolsCapturer screenshots the host page over the DevTools protocol.
// It reports exactly one preview, named after the page title.
type DevToolsCapturer struct {
	page PageScreenshotter
}

// NewDevToolsCapturer wraps an attached host page.
func NewDevToolsCapturer(page PageScreenshotter) *DevToolsCapturer {
	return &DevToolsCapturer{page: page}
}

func (c *DevToolsCapturer) Name() string { return "devtools" }

func (c *DevToolsCapturer) Close() error { return nil }

func (c *DevToolsCapturer) CaptureWindow(ctx context.Context, width, height int) ([]Preview, error) {
	data, err := c.page.Screenshot(ctx, width, height)
	if err != nil {
		return nil, fmt.Errorf("devtools capture: %w", err)
	}
	return []Preview{{Name: c.page.Title(), URL: DataURL("image/png", data)}}, nil
}
