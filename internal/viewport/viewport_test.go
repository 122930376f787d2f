package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSetNotifies(t *testing.T) {
	s := NewStatic(Size{Width: 1920, Height: 1080})
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Set(Size{Width: 1280, Height: 720})
	assert.Equal(t, Size{Width: 1280, Height: 720}, <-ch)
	assert.Equal(t, Size{Width: 1280, Height: 720}, s.Size())
}

func TestStaticKeepsOnlyLatest(t *testing.T) {
	s := NewStatic(Size{Width: 1, Height: 1})
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Set(Size{Width: 2, Height: 2})
	s.Set(Size{Width: 3, Height: 3})

	assert.Equal(t, Size{Width: 3, Height: 3}, <-ch)
	assert.Empty(t, ch)
}

func TestStaticSameSizeIsSilent(t *testing.T) {
	s := NewStatic(Size{Width: 5, Height: 5})
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Set(Size{Width: 5, Height: 5})
	assert.Empty(t, ch)
}

func TestStaticUnsubscribe(t *testing.T) {
	s := NewStatic(Size{})
	ch, unsubscribe := s.Subscribe()
	require.Equal(t, 1, s.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, s.Subscribers())

	_, ok := <-ch
	assert.False(t, ok, "channel closed")

	assert.NotPanics(t, func() { s.Set(Size{Width: 1, Height: 1}) })
}

func TestSizeEmpty(t *testing.T) {
	assert.True(t, Size{}.Empty())
	assert.True(t, Size{Width: 10}.Empty())
	assert.False(t, Size{Width: 1, Height: 1}.Empty())
}
