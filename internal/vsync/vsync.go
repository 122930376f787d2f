// Package vsync paces work to the display refresh rate.
package vsync

import (
	"sync"
	"time"
)

// DefaultRefreshHz is used when no refresh rate is configured.
const DefaultRefreshHz = 60

// Source delivers refresh ticks. A receive from Next blocks until the next
// refresh boundary.
type Source interface {
	Next() <-chan time.Time
}

// Ticker is a Source driven by a fixed-rate time.Ticker.
type Ticker struct {
	ticker   *time.Ticker
	interval time.Duration
	stopOnce sync.Once
}

// NewTicker starts a ticker at hz refreshes per second. Non-positive rates
// fall back to DefaultRefreshHz.
func NewTicker(hz int) *Ticker {
	if hz <= 0 {
		hz = DefaultRefreshHz
	}
	interval := time.Second / time.Duration(hz)
	return &Ticker{
		ticker:   time.NewTicker(interval),
		interval: interval,
	}
}

// Next returns the tick channel.
func (t *Ticker) Next() <-chan time.Time {
	return t.ticker.C
}

// Interval is the time between two refreshes.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Stop releases the ticker. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(t.ticker.Stop)
}

// Wait blocks until the next tick from src or until done is closed. It
// reports whether a tick was received.
func Wait(src Source, done <-chan struct{}) bool {
	select {
	case <-src.Next():
		return true
	case <-done:
		return false
	}
}
