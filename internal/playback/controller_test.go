package playback

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/capture"
	"github.com/bryanchriswhite/Silhouette/internal/crop"
	"github.com/bryanchriswhite/Silhouette/internal/media"
	"github.com/bryanchriswhite/Silhouette/internal/output"
	"github.com/bryanchriswhite/Silhouette/internal/render"
	"github.com/bryanchriswhite/Silhouette/internal/snapshot"
	"github.com/bryanchriswhite/Silhouette/internal/theme"
	"github.com/bryanchriswhite/Silhouette/internal/viewport"
	"github.com/bryanchriswhite/Silhouette/internal/vsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

type fakeAcquirer struct {
	calls   atomic.Int32
	pair    snapshot.Pair
	err     error
	release chan struct{}
}

func (a *fakeAcquirer) Acquire(ctx context.Context) (snapshot.Pair, error) {
	a.calls.Add(1)
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return snapshot.Pair{}, ctx.Err()
		}
	}
	if a.err != nil {
		return snapshot.Pair{}, a.err
	}
	return a.pair, nil
}

type fakeVideo struct {
	mu     sync.Mutex
	frame  *image.RGBA
	paused bool
	ended  bool
	closed bool
}

func (v *fakeVideo) Frame() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame
}

func (v *fakeVideo) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

func (v *fakeVideo) Ended() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ended
}

func (v *fakeVideo) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = false
	return nil
}

func (v *fakeVideo) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = true
}

func (v *fakeVideo) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

func (v *fakeVideo) end() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ended = true
}

func (v *fakeVideo) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// sizeOutput remembers the size of the last frame written.
type sizeOutput struct {
	output.Discard
	mu   sync.Mutex
	last image.Point
}

func (o *sizeOutput) WriteFrame(frame *image.RGBA) error {
	o.mu.Lock()
	o.last = frame.Bounds().Size()
	o.mu.Unlock()
	return o.Discard.WriteFrame(frame)
}

func (o *sizeOutput) lastSize() image.Point {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

type harness struct {
	ctrl     *Controller
	acquirer *fakeAcquirer
	video    *fakeVideo
	opened   atomic.Int32
	view     *viewport.Static
	out      *sizeOutput
}

func newHarness(t *testing.T, acq *fakeAcquirer) *harness {
	t.Helper()

	if acq.pair == (snapshot.Pair{}) && acq.err == nil {
		acq.pair = snapshot.Pair{
			Light: solid(8, 6, color.RGBA{255, 255, 255, 255}),
			Dark:  solid(8, 6, color.RGBA{0, 0, 0, 255}),
		}
	}

	h := &harness{
		acquirer: acq,
		video:    &fakeVideo{frame: solid(4, 3, color.RGBA{0, 0, 0, 255}), paused: true},
		view:     viewport.NewStatic(viewport.Size{Width: 8, Height: 6}),
		out:      &sizeOutput{},
	}

	ticker := vsync.NewTicker(500)
	t.Cleanup(ticker.Stop)

	h.ctrl = NewController(Options{
		Acquirer: acq,
		OpenVideo: func(ctx context.Context) (media.Video, error) {
			h.opened.Add(1)
			return h.video, nil
		},
		Renderer: render.New(crop.Size{Width: 4, Height: 3}),
		Viewport: h.view,
		Output:   h.out,
		VSync:    ticker,
	})
	t.Cleanup(h.ctrl.Stop)
	return h
}

func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ctrl.State() == s }, waitFor, tick, "waiting for %s", s)
}

func TestToggleStartsAndStops(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{})
	ctx := context.Background()

	h.ctrl.Toggle(ctx)
	h.waitState(t, Rendering)
	require.Eventually(t, func() bool { return h.out.Frames() > 2 }, waitFor, tick)
	assert.True(t, h.out.IsRunning())
	assert.Equal(t, 1, h.view.Subscribers())

	status := h.ctrl.Status()
	assert.NotEmpty(t, status.SessionID)
	assert.False(t, status.Busy)
	assert.Positive(t, status.Frames)

	h.ctrl.Toggle(ctx)

	// Stop returns only after release
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Nil(t, h.ctrl.Session())
	assert.True(t, h.video.isClosed())
	assert.False(t, h.out.IsRunning())
	assert.Equal(t, 0, h.view.Subscribers())
	assert.Empty(t, h.ctrl.Status().LastError)

	frames := h.out.Frames()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frames, h.out.Frames(), "no frames after stop")
}

func TestToggleIgnoredWhileCapturing(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, &fakeAcquirer{release: release})
	ctx := context.Background()

	h.ctrl.Toggle(ctx)
	h.waitState(t, Capturing)

	h.ctrl.Toggle(ctx)
	h.ctrl.Toggle(ctx)
	assert.Equal(t, Capturing, h.ctrl.State())
	assert.ErrorIs(t, h.ctrl.Start(ctx), ErrBusy)

	close(release)
	h.waitState(t, Rendering)
	assert.Equal(t, int32(1), h.acquirer.calls.Load())
	assert.Equal(t, int32(1), h.opened.Load())
}

func TestStartWhileRendering(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Start(ctx))
	h.waitState(t, Rendering)
	assert.ErrorIs(t, h.ctrl.Start(ctx), ErrAlreadyRunning)
}

func TestEndOfMediaReturnsToIdle(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{})

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.waitState(t, Rendering)

	h.video.end()
	h.waitState(t, Idle)

	assert.True(t, h.video.isClosed())
	assert.False(t, h.out.IsRunning())
	assert.Equal(t, 0, h.view.Subscribers())
	assert.Empty(t, h.ctrl.Status().LastError)
}

func TestCaptureFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{err: snapshot.ErrCaptureUnavailable})
	ctx := context.Background()

	h.ctrl.Toggle(ctx)
	require.Eventually(t, func() bool {
		st := h.ctrl.Status()
		return st.State == Idle && st.LastError != ""
	}, waitFor, tick)

	assert.Contains(t, h.ctrl.Status().LastError, "capture unavailable")
	assert.Zero(t, h.opened.Load(), "no video without snapshots")
	assert.False(t, h.out.IsRunning())

	// the failure is not retried, but the toggle works again
	assert.Equal(t, int32(1), h.acquirer.calls.Load())
	h.ctrl.Toggle(ctx)
	require.Eventually(t, func() bool { return h.acquirer.calls.Load() == 2 }, waitFor, tick)
}

func TestIncompletePairIsUnavailable(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{pair: snapshot.Pair{Light: solid(1, 1, color.RGBA{})}})

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool {
		st := h.ctrl.Status()
		return st.State == Idle && st.LastError != ""
	}, waitFor, tick)
	assert.Zero(t, h.opened.Load())
}

// blockingCapture never returns a preview before its context is cancelled.
type blockingCapture struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingCapture) CaptureWindow(ctx context.Context, w, h int) ([]capture.Preview, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStopDuringCaptureRestoresTheme(t *testing.T) {
	host := theme.NewMemory(theme.Dark)
	blocker := &blockingCapture{started: make(chan struct{})}
	acq := &snapshot.Acquirer{
		Theme:    host,
		Capture:  blocker,
		HostName: "Discord",
		Sleep:    func(context.Context, time.Duration) error { return nil },
	}

	opened := false
	out := &output.Discard{}
	ticker := vsync.NewTicker(100)
	defer ticker.Stop()
	ctrl := NewController(Options{
		Acquirer: acq,
		OpenVideo: func(context.Context) (media.Video, error) {
			opened = true
			return &fakeVideo{}, nil
		},
		Renderer: render.New(crop.Size{Width: 4, Height: 3}),
		Viewport: viewport.NewStatic(viewport.Size{Width: 4, Height: 3}),
		Output:   out,
		VSync:    ticker,
	})

	require.NoError(t, ctrl.Start(context.Background()))
	select {
	case <-blocker.started:
	case <-time.After(waitFor):
		t.Fatal("capture never started")
	}

	ctrl.Stop()

	assert.Equal(t, Idle, ctrl.State())
	assert.Empty(t, ctrl.Status().LastError, "abort is not a failure")
	assert.False(t, opened)
	assert.False(t, out.IsRunning())

	current, err := host.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, theme.Dark, current)
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{})

	done := make(chan struct{})
	go func() {
		h.ctrl.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Stop blocked while idle")
	}
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Zero(t, h.acquirer.calls.Load())
}

func TestSurfaceFollowsViewport(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{})

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool { return h.out.lastSize() == image.Pt(8, 6) }, waitFor, tick)

	h.view.Set(viewport.Size{Width: 12, Height: 4})
	require.Eventually(t, func() bool { return h.out.lastSize() == image.Pt(12, 4) }, waitFor, tick)
}

func TestEventsFollowStateChanges(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{})
	events := h.ctrl.Subscribe()
	defer h.ctrl.Unsubscribe(events)

	require.NoError(t, h.ctrl.Start(context.Background()))
	h.waitState(t, Rendering)
	h.ctrl.Stop()

	var got []State
	var ids []string
	for len(got) < 3 {
		select {
		case ev := <-events:
			got = append(got, ev.State)
			ids = append(ids, ev.SessionID)
		case <-time.After(waitFor):
			t.Fatalf("events so far: %v", got)
		}
	}

	assert.Equal(t, []State{Capturing, Rendering, Idle}, got)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
}

func TestOutputStartFailureReleasesVideo(t *testing.T) {
	h := newHarness(t, &fakeAcquirer{})
	failing := &failingOutput{}
	h.ctrl.opts.Output = failing

	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Eventually(t, func() bool {
		st := h.ctrl.Status()
		return st.State == Idle && st.LastError != ""
	}, waitFor, tick)

	assert.True(t, h.video.isClosed())
	assert.Equal(t, 0, h.view.Subscribers())
	assert.False(t, failing.stopped, "output that never started is not stopped")
}

type failingOutput struct {
	output.Discard
	stopped bool
}

func (f *failingOutput) Start() error { return errors.New("no display") }

func (f *failingOutput) Stop() error {
	f.stopped = true
	return nil
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "capturing", Capturing.String())
	assert.Equal(t, "rendering", Rendering.String())
	assert.Equal(t, "State(9)", State(9).String())
}
