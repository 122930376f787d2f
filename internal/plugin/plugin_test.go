package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanchriswhite/Silhouette/internal/crop"
	"github.com/bryanchriswhite/Silhouette/internal/media"
	"github.com/bryanchriswhite/Silhouette/internal/output"
	"github.com/bryanchriswhite/Silhouette/internal/playback"
	"github.com/bryanchriswhite/Silhouette/internal/render"
	"github.com/bryanchriswhite/Silhouette/internal/snapshot"
	"github.com/bryanchriswhite/Silhouette/internal/viewport"
	"github.com/bryanchriswhite/Silhouette/internal/vsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	mu        sync.Mutex
	onPress   func()
	listenErr error
	unlisten  int
}

func (l *fakeListener) Listen(onPress func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listenErr != nil {
		return l.listenErr
	}
	l.onPress = onPress
	return nil
}

func (l *fakeListener) Unlisten() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onPress = nil
	l.unlisten++
}

func (l *fakeListener) press() {
	l.mu.Lock()
	f := l.onPress
	l.mu.Unlock()
	if f != nil {
		f()
	}
}

// blockingAcquirer holds every session in Capturing until cancelled.
type blockingAcquirer struct {
	calls atomic.Int32
}

func (a *blockingAcquirer) Acquire(ctx context.Context) (snapshot.Pair, error) {
	a.calls.Add(1)
	<-ctx.Done()
	return snapshot.Pair{}, ctx.Err()
}

func newController(t *testing.T, acq playback.Acquirer) *playback.Controller {
	ticker := vsync.NewTicker(100)
	t.Cleanup(ticker.Stop)
	return playback.NewController(playback.Options{
		Acquirer: acq,
		OpenVideo: func(context.Context) (media.Video, error) {
			return nil, errors.New("no video in tests")
		},
		Renderer: render.New(crop.Size{Width: 4, Height: 3}),
		Viewport: viewport.NewStatic(viewport.Size{Width: 4, Height: 3}),
		Output:   &output.Discard{},
		VSync:    ticker,
	})
}

func TestHotkeyTogglesPlayback(t *testing.T) {
	acq := &blockingAcquirer{}
	ctrl := newController(t, acq)
	hk := &fakeListener{}
	p := New(ctrl, hk)

	require.NoError(t, p.Activate(context.Background()))
	assert.True(t, p.Active())

	hk.press()
	require.Eventually(t, func() bool { return ctrl.State() == playback.Capturing }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), acq.calls.Load())

	p.Deactivate()
	assert.False(t, p.Active())
	assert.Equal(t, playback.Idle, ctrl.State())
	assert.Equal(t, 1, hk.unlisten)

	// no longer registered
	hk.press()
	assert.Equal(t, int32(1), acq.calls.Load())
}

func TestActivateFailsWhenHotkeyTaken(t *testing.T) {
	p := New(newController(t, &blockingAcquirer{}), &fakeListener{listenErr: errors.New("grabbed")})

	err := p.Activate(context.Background())
	require.Error(t, err)
	assert.False(t, p.Active())
}

func TestActivateWithoutHotkey(t *testing.T) {
	p := New(newController(t, &blockingAcquirer{}), nil)
	require.NoError(t, p.Activate(context.Background()))
	p.Deactivate()
	p.Deactivate()
	assert.False(t, p.Active())
}
