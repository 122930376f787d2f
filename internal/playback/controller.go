package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/canvas"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/bryanchriswhite/Silhouette/internal/media"
	"github.com/bryanchriswhite/Silhouette/internal/output"
	"github.com/bryanchriswhite/Silhouette/internal/render"
	"github.com/bryanchriswhite/Silhouette/internal/snapshot"
	"github.com/bryanchriswhite/Silhouette/internal/viewport"
	"github.com/bryanchriswhite/Silhouette/internal/vsync"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by Start while a session is rendering.
var ErrAlreadyRunning = errors.New("playback already running")

// Acquirer produces the light and dark snapshots.
type Acquirer interface {
	Acquire(ctx context.Context) (snapshot.Pair, error)
}

// Renderer draws one frame.
type Renderer interface {
	RenderFrame(surface *canvas.Surface, video media.Video, pair snapshot.Pair) error
}

// VideoOpener creates a paused video for a new session.
type VideoOpener func(ctx context.Context) (media.Video, error)

// Options are the collaborators of a Controller. All fields are required.
type Options struct {
	Acquirer  Acquirer
	OpenVideo VideoOpener
	Renderer  Renderer
	Viewport  viewport.Provider
	Output    output.Output
	VSync     vsync.Source
}

// Session is one run from Start to Idle.
type Session struct {
	ID        string
	StartedAt time.Time

	frames atomic.Uint64

	// owned by the session goroutine
	video         media.Video
	surface       *canvas.Surface
	pair          snapshot.Pair
	resize        <-chan viewport.Size
	unsubscribe   func()
	outputStarted bool
}

// Frames is the number of frames written so far.
func (s *Session) Frames() uint64 {
	return s.frames.Load()
}

// Controller owns the playback state machine. Only one session exists at a
// time and every session runs on its own goroutine.
type Controller struct {
	opts Options
	log  *zerolog.Logger

	mu      sync.Mutex
	state   State
	busy    bool
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
	subs    map[<-chan Event]chan Event
}

// NewController returns an idle controller.
func NewController(opts Options) *Controller {
	return &Controller{
		opts:  opts,
		log:   logger.WithComponent("playback"),
		state: Idle,
		subs:  make(map[<-chan Event]chan Event),
	}
}

// Start begins a session. It returns once the session goroutine is running;
// capturing and rendering happen in the background. ctx only carries values,
// its cancellation does not end the session. Use Stop for that.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Rendering && !c.busy {
		return ErrAlreadyRunning
	}
	if c.state != Idle || c.busy {
		return ErrBusy
	}

	sess := &Session{ID: uuid.NewString(), StartedAt: time.Now()}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.session = sess
	c.cancel = cancel
	c.done = done
	c.busy = true
	c.lastErr = nil
	c.setStateLocked(Capturing, nil)

	go c.run(sctx, cancel, sess, done)
	return nil
}

// Stop ends the current session and waits until its resources are released.
// A stop during capture aborts the acquisition; the host theme is still
// restored. Stop on an idle controller does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Idle || c.done == nil {
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.cancel()
	done := c.done
	c.mu.Unlock()

	<-done
}

// Toggle starts when idle and stops when rendering. Presses that arrive
// mid-transition are ignored.
func (c *Controller) Toggle(ctx context.Context) {
	c.mu.Lock()
	state, busy := c.state, c.busy
	c.mu.Unlock()

	switch {
	case busy:
		c.log.Debug().Str("state", state.String()).Msg("Toggle ignored while busy")
	case state == Rendering:
		c.Stop()
	case state == Idle:
		if err := c.Start(ctx); err != nil {
			c.log.Debug().Err(err).Msg("Toggle ignored")
		}
	default:
		c.log.Debug().Str("state", state.String()).Msg("Toggle ignored")
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session or nil when idle.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Status returns a consistent snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Busy: c.busy}
	if c.session != nil {
		st.SessionID = c.session.ID
		st.StartedAt = c.session.StartedAt
		st.Frames = c.session.Frames()
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Subscribe delivers state change events. Slow subscribers miss events
// rather than block the controller.
func (c *Controller) Subscribe() <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, 16)
	c.subs[ch] = ch
	return ch
}

// Unsubscribe closes a channel returned by Subscribe.
func (c *Controller) Unsubscribe(ch <-chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, ok := c.subs[ch]; ok {
		delete(c.subs, ch)
		close(sub)
	}
}

func (c *Controller) setStateLocked(s State, err error) {
	c.state = s
	ev := Event{State: s, Time: time.Now()}
	if c.session != nil {
		ev.SessionID = c.session.ID
	}
	if err != nil {
		ev.Error = err.Error()
	}
	for _, sub := range c.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, sess *Session, done chan struct{}) {
	defer close(done)
	defer cancel()

	log := logger.WithSession("playback", sess.ID)
	log.Info().Msg("Capturing snapshots")

	err := c.mount(ctx, sess)
	if err == nil {
		err = c.loop(ctx, sess)
	}
	c.release(sess)

	switch {
	case err == nil:
		log.Info().
			Uint64("frames", sess.Frames()).
			Dur("elapsed", time.Since(sess.StartedAt)).
			Msg("Playback finished")
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		log.Info().Msg("Playback aborted")
		err = nil
	default:
		log.Error().Err(err).Msg("Playback failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.setStateLocked(Idle, err)
	c.session = nil
	c.cancel = nil
	c.done = nil
	c.busy = false
}

// mount takes the session from Capturing to Rendering.
func (c *Controller) mount(ctx context.Context, sess *Session) error {
	pair, err := c.opts.Acquirer.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire snapshots: %w", err)
	}
	if !pair.Complete() {
		return snapshot.ErrCaptureUnavailable
	}
	sess.pair = pair

	if err := ctx.Err(); err != nil {
		return err
	}

	video, err := c.opts.OpenVideo(ctx)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	sess.video = video

	size := c.opts.Viewport.Size()
	sess.surface = canvas.New(size.Width, size.Height)
	sess.resize, sess.unsubscribe = c.opts.Viewport.Subscribe()

	if err := c.opts.Output.Start(); err != nil {
		return fmt.Errorf("start output %s: %w", c.opts.Output.Name(), err)
	}
	sess.outputStarted = true

	if err := video.Play(); err != nil {
		return fmt.Errorf("play video: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Stop cancels under the lock, so this check cannot race it
	if err := ctx.Err(); err != nil {
		return err
	}
	c.busy = false
	c.setStateLocked(Rendering, nil)

	logger.WithSession("playback", sess.ID).Info().
		Int("width", size.Width).
		Int("height", size.Height).
		Str("output", c.opts.Output.Name()).
		Msg("Rendering")
	return nil
}

// loop draws one frame per refresh until the media ends or ctx is cancelled.
func (c *Controller) loop(ctx context.Context, sess *Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case size, ok := <-sess.resize:
			if !ok {
				sess.resize = nil
				continue
			}
			sess.surface.Resize(size.Width, size.Height)

		case <-c.opts.VSync.Next():
			err := c.opts.Renderer.RenderFrame(sess.surface, sess.video, sess.pair)
			if errors.Is(err, render.ErrMediaEnded) || errors.Is(err, render.ErrMediaRemoved) {
				logger.WithSession("playback", sess.ID).Debug().Err(err).Msg("Media finished")
				return nil
			}
			if err != nil {
				return fmt.Errorf("render frame: %w", err)
			}
			if err := c.opts.Output.WriteFrame(sess.surface.Image()); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			sess.frames.Add(1)
		}
	}
}

// release tears down whatever mount managed to set up.
func (c *Controller) release(sess *Session) {
	log := logger.WithSession("playback", sess.ID)

	if sess.video != nil {
		if err := sess.video.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close video")
		}
		sess.video = nil
	}
	if sess.outputStarted {
		if err := c.opts.Output.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop output")
		}
		sess.outputStarted = false
	}
	if sess.unsubscribe != nil {
		sess.unsubscribe()
		sess.unsubscribe = nil
		sess.resize = nil
	}
	sess.surface = nil
	sess.pair = snapshot.Pair{}
}
