package output

import (
	"image"
	"sync"
)

// Output defines the interface for frame output mechanisms. The overlay can
// be shown as a topmost X11 window or streamed as MJPEG for previewing.
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a frame to the output. The image is premultiplied
	// RGBA and may change size between calls when the viewport is resized.
	WriteFrame(frame *image.RGBA) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	Width  int
	Height int
	FPS    int

	// Quality is the JPEG quality of the MJPEG stream, 1-100
	Quality int
}

// DefaultQuality is used when Config.Quality is unset
const DefaultQuality = 90

// Discard is an Output that drops every frame. It backs headless runs.
type Discard struct {
	mu      sync.Mutex
	running bool
	frames  int
}

func (d *Discard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	return nil
}

func (d *Discard) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	return nil
}

func (d *Discard) Name() string { return "discard" }

func (d *Discard) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Discard) WriteFrame(*image.RGBA) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames++
	return nil
}

// Frames is the number of frames written.
func (d *Discard) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}
