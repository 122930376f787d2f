// Package devtools attaches to a running Chromium-based host application
// over the Chrome DevTools protocol. The host must be started with
// --remote-debugging-port.
package devtools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrDetached is returned by calls on a closed Host.
var ErrDetached = errors.New("devtools: detached from host")

// Host is a connection to one page of the host application.
type Host struct {
	url       string
	pageTitle string

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	cancel  context.CancelFunc
}

// Connect resolves the DevTools endpoint (http://host:port or ws://...) and
// picks the first page whose title contains pageTitle. An empty pageTitle
// selects the first page.
func Connect(ctx context.Context, url, pageTitle string) (*Host, error) {
	log := logger.WithComponent("devtools")

	wsURL := url
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		u, err := launcher.ResolveURL(url)
		if err != nil {
			return nil, fmt.Errorf("devtools: resolve %s: %w", url, err)
		}
		wsURL = u
	}

	// the connection outlives ctx, which only bounds the attach
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b := rod.New().Context(connCtx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("devtools: connect: %w", err)
	}

	h := &Host{url: url, pageTitle: pageTitle, browser: b, cancel: cancel}
	page, err := h.findPage()
	if err != nil {
		cancel()
		return nil, err
	}
	h.page = page

	log.Info().Str("url", wsURL).Str("page_title", pageTitle).Msg("Attached to host page")
	return h, nil
}

func (h *Host) findPage() (*rod.Page, error) {
	pages, err := h.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("devtools: list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if h.pageTitle == "" || strings.Contains(info.Title, h.pageTitle) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("devtools: no page titled %q", h.pageTitle)
}

// Title returns the title of the attached page.
func (h *Host) Title() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.page == nil {
		return h.pageTitle
	}
	info, err := h.page.Info()
	if err != nil {
		return h.pageTitle
	}
	return info.Title
}

// EvalString evaluates a JS function in the page and returns its result as
// a string.
func (h *Host) EvalString(ctx context.Context, js string, args ...interface{}) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.page == nil {
		return "", ErrDetached
	}
	res, err := h.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", fmt.Errorf("devtools: eval: %w", err)
	}
	return res.Value.Str(), nil
}

// Screenshot captures the visible viewport of the page as PNG.
func (h *Host) Screenshot(ctx context.Context, width, height int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.page == nil {
		return nil, ErrDetached
	}
	req := &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	}
	if width > 0 && height > 0 {
		req.Clip = &proto.PageViewport{
			Width:  float64(width),
			Height: float64(height),
			Scale:  1,
		}
	}

	data, err := h.page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("devtools: screenshot: %w", err)
	}
	return data, nil
}

// Close detaches from the host. Browser.Close would quit the host
// application, so only the connection context is cancelled.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.browser = nil
	h.page = nil
	return nil
}
