// Package plugin binds the playback controller to the host lifecycle: the
// hotkey is registered on activation and everything is torn down on
// deactivation.
package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/bryanchriswhite/Silhouette/internal/playback"
)

// Meta describes the plugin to the host.
type Meta struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// DefaultMeta is reported by the API and the CLI.
var DefaultMeta = Meta{
	Name:        "Silhouette",
	Version:     "0.1.0",
	Description: "Plays a video masked by the silhouette of the host window",
}

// Listener delivers hotkey presses.
type Listener interface {
	Listen(onPress func()) error
	Unlisten()
}

// Plugin is activated once per host session.
type Plugin struct {
	Meta Meta

	controller *playback.Controller
	hotkey     Listener

	mu     sync.Mutex
	active bool
}

// New returns an inactive plugin. hotkey may be nil when playback is only
// driven through the API.
func New(controller *playback.Controller, hotkey Listener) *Plugin {
	return &Plugin{
		Meta:       DefaultMeta,
		controller: controller,
		hotkey:     hotkey,
	}
}

// Activate registers the toggle hotkey. ctx is handed to every session the
// hotkey starts.
func (p *Plugin) Activate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return nil
	}

	if p.hotkey != nil {
		err := p.hotkey.Listen(func() {
			p.controller.Toggle(ctx)
		})
		if err != nil {
			return fmt.Errorf("register hotkey: %w", err)
		}
	}

	p.active = true
	logger.WithComponent("plugin").Info().
		Str("name", p.Meta.Name).
		Str("version", p.Meta.Version).
		Bool("hotkey", p.hotkey != nil).
		Msg("Plugin activated")
	return nil
}

// Deactivate unregisters the hotkey and stops any running session. It
// returns after the session has released its resources.
func (p *Plugin) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	if p.hotkey != nil {
		p.hotkey.Unlisten()
	}
	p.controller.Stop()
	p.active = false

	logger.WithComponent("plugin").Info().Msg("Plugin deactivated")
}

// Active reports whether Activate has been called without a matching
// Deactivate.
func (p *Plugin) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Controller exposes the playback controller for the API.
func (p *Plugin) Controller() *playback.Controller {
	return p.controller
}
