// Package viewport reports the size of the area the overlay covers and
// notifies subscribers when it changes.
package viewport

import (
	"sync"
)

// Size is a viewport size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the size has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Provider is the source of viewport sizes.
type Provider interface {
	Size() Size
	// Subscribe delivers every subsequent size change. The returned func
	// unsubscribes and closes the channel.
	Subscribe() (<-chan Size, func())
}

// Static is a Provider whose size only changes through Set.
type Static struct {
	mu   sync.Mutex
	size Size
	subs map[chan Size]struct{}
}

// NewStatic returns a Static provider.
func NewStatic(size Size) *Static {
	return &Static{size: size, subs: make(map[chan Size]struct{})}
}

func (s *Static) Size() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Set changes the size and notifies subscribers. A subscriber that has not
// consumed the previous change only sees the latest size.
func (s *Static) Set(size Size) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size == s.size {
		return
	}
	s.size = size
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- size
	}
}

func (s *Static) Subscribe() (<-chan Size, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Size, 1)
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, ch)
			close(ch)
		})
	}
}

// Subscribers is the number of active subscriptions.
func (s *Static) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
