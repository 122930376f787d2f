package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/bryanchriswhite/Silhouette/internal/logger"
)

// Process plays a video by piping the in-memory asset into a decoder
// subprocess on stdin and reading raw RGBA frames from its stdout. The
// decoder paces output to real time, so frames arrive at playback speed.
type Process struct {
	name  string
	argv  []string
	asset *Asset

	mu      sync.RWMutex
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	done    chan struct{}
	latest  *image.RGBA
	started bool
	paused  bool
	ended   bool
	frames  int
}

// NewGStreamer plays through gst-launch-1.0. A positive volume adds an
// audio branch.
func NewGStreamer(asset *Asset, volume float64) *Process {
	pipeline := fmt.Sprintf(
		"fdsrc fd=0 ! decodebin name=d "+
			"d. ! queue ! videoconvert ! videoscale ! "+
			"video/x-raw,format=RGBA,width=%d,height=%d ! "+
			"fdsink fd=1 sync=true",
		asset.Width, asset.Height,
	)
	if volume > 0 {
		pipeline += fmt.Sprintf(" d. ! queue ! audioconvert ! volume volume=%.2f ! autoaudiosink", volume)
	}

	argv := append([]string{"gst-launch-1.0", "-q"}, strings.Fields(pipeline)...)
	return newProcess("gstreamer", argv, asset)
}

// libvpxDecoders decode the alpha plane of VP8 and VP9 streams, which
// ffmpeg's native decoders drop.
var libvpxDecoders = map[string]string{
	"vp8": "libvpx",
	"vp9": "libvpx-vp9",
}

// NewFFmpeg plays through ffmpeg, with audio going to PulseAudio.
func NewFFmpeg(asset *Asset, volume float64) *Process {
	argv := []string{
		"ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-re",
	}
	if dec, ok := libvpxDecoders[asset.Codec()]; ok {
		argv = append(argv, "-c:v", dec)
	}
	argv = append(argv,
		"-i", "pipe:0",
		"-map", "0:v:0",
		"-vf", fmt.Sprintf("scale=%d:%d", asset.Width, asset.Height),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	if volume > 0 {
		argv = append(argv,
			"-map", "0:a:0?",
			"-filter:a", fmt.Sprintf("volume=%.2f", volume),
			"-f", "pulse", "silhouette",
		)
	}
	return newProcess("ffmpeg", argv, asset)
}

func newProcess(name string, argv []string, asset *Asset) *Process {
	return &Process{
		name:   name,
		argv:   argv,
		asset:  asset,
		paused: true,
	}
}

// Args returns the decoder command line.
func (p *Process) Args() []string {
	return append([]string(nil), p.argv...)
}

// Play starts the decoder. Playing an already playing video is a no-op;
// a paused or ended video cannot be resumed.
func (p *Process) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		if p.paused || p.ended {
			return fmt.Errorf("%s: cannot resume a stopped video", p.name)
		}
		return nil
	}

	log := logger.WithComponent("media")

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stdin = bytes.NewReader(p.asset.Bytes())

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%s stdout pipe: %w", p.name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%s stderr pipe: %w", p.name, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting %s: %w", p.name, err)
	}

	p.cmd = cmd
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true
	p.paused = false

	go p.readFrames(stdout)
	go p.logStderr(stderr)

	log.Info().
		Str("decoder", p.name).
		Int("pid", cmd.Process.Pid).
		Int("width", p.asset.Width).
		Int("height", p.asset.Height).
		Msg("Video playback started")
	return nil
}

// readFrames stores every complete frame until the decoder exits.
func (p *Process) readFrames(r io.Reader) {
	defer close(p.done)
	log := logger.WithComponent("media")

	err := ReadFrames(r, p.asset.Width, p.asset.Height, func(img *image.RGBA) {
		p.mu.Lock()
		p.latest = img
		p.frames++
		p.mu.Unlock()
	})

	p.mu.Lock()
	p.ended = true
	frames := p.frames
	p.mu.Unlock()

	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		log.Debug().Err(err).Str("decoder", p.name).Msg("Frame reader stopped")
	}
	log.Info().Str("decoder", p.name).Int("frames", frames).Msg("Video ended")
}

func (p *Process) logStderr(r io.Reader) {
	log := logger.WithComponent("media")
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Warn().Str("decoder", p.name).Str("output", scanner.Text()).Msg("Decoder message")
	}
}

func (p *Process) Frame() *image.RGBA {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

func (p *Process) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

func (p *Process) Ended() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ended
}

// Frames is the number of frames decoded so far.
func (p *Process) Frames() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frames
}

// Pause stops the decoder. The video stays paused.
func (p *Process) Pause() {
	p.mu.Lock()
	p.paused = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close pauses the video, waits for the decoder to exit and drops the last
// frame.
func (p *Process) Close() error {
	p.Pause()

	p.mu.RLock()
	cmd, done := p.cmd, p.done
	p.mu.RUnlock()

	if cmd == nil {
		return nil
	}
	<-done
	err := cmd.Wait()

	p.mu.Lock()
	p.latest = nil
	p.cmd = nil
	p.mu.Unlock()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// killed on purpose
		return nil
	}
	return err
}

// ReadFrames reads consecutive width x height RGBA frames from r and hands
// each to onFrame as a fresh image. It returns nil when r ends on a frame
// boundary.
func ReadFrames(r io.Reader, width, height int, onFrame func(*image.RGBA)) error {
	frameSize := width * height * 4
	reader := bufio.NewReaderSize(r, frameSize)

	for {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		if _, err := io.ReadFull(reader, img.Pix); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		onFrame(img)
	}
}
