// Package playback runs the overlay lifecycle: capture both theme
// snapshots, then render the masked video until it ends or is stopped.
package playback

import (
	"errors"
	"fmt"
	"time"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	Capturing
	Rendering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Rendering:
		return "rendering"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by String.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Idle, Capturing, Rendering} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// ErrBusy is returned by Start while a session exists or a stop is still
// settling.
var ErrBusy = errors.New("playback busy")

// Event is published on every state change.
type Event struct {
	State     State     `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Status describes the controller at one instant.
type Status struct {
	State     State     `json:"state"`
	Busy      bool      `json:"busy"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Frames    uint64    `json:"frames"`
	LastError string    `json:"last_error,omitempty"`
}
