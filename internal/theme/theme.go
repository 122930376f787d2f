// Package theme reads and overrides the host application's visual theme.
package theme

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Theme is one of the two host themes.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Other returns the opposite theme.
func (t Theme) Other() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

func (t Theme) String() string { return string(t) }

// Parse accepts "light" or "dark", case-insensitively.
func Parse(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Service is the host's theme switch. Setting a theme triggers a re-render
// of the host that this process does not observe.
type Service interface {
	Get(ctx context.Context) (Theme, error)
	Set(ctx context.Context, t Theme) error
}

// Memory is an in-process Service. It records every Set.
type Memory struct {
	mu      sync.Mutex
	current Theme
	history []Theme
}

// NewMemory returns a Memory starting at initial.
func NewMemory(initial Theme) *Memory {
	return &Memory{current: initial}
}

func (m *Memory) Get(ctx context.Context) (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *Memory) Set(ctx context.Context, t Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
	m.history = append(m.history, t)
	return nil
}

// History returns the themes passed to Set, oldest first.
func (m *Memory) History() []Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Theme(nil), m.history...)
}
