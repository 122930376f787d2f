// Package portal talks to xdg-desktop-portal over the D-Bus session bus.
package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/bryanchriswhite/Silhouette/internal/logger"
	"github.com/godbus/dbus/v5"
)

// Portal D-Bus constants
const (
	portalService  = "org.freedesktop.portal.Desktop"
	portalPath     = "/org/freedesktop/portal/desktop"
	screenshotIfc  = "org.freedesktop.portal.Screenshot"
	settingsIface  = "org.freedesktop.portal.Settings"
	requestIface   = "org.freedesktop.portal.Request"
	appearanceNS   = "org.freedesktop.appearance"
	colorSchemeKey = "color-scheme"
)

// Color scheme values of org.freedesktop.appearance color-scheme
const (
	ColorSchemeDefault uint32 = 0
	ColorSchemeDark    uint32 = 1
	ColorSchemeLight   uint32 = 2
)

// ErrDenied is returned when the user or the portal rejects a request.
var ErrDenied = errors.New("portal request denied")

var tokenSeq atomic.Uint64

// Client is a portal connection.
type Client struct {
	conn *dbus.Conn
}

// New connects to the session bus.
func New() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Screenshot asks the portal for a screenshot of the whole screen and
// returns its file:// URI.
func (c *Client) Screenshot(ctx context.Context, interactive bool) (string, error) {
	results, err := c.request(ctx, screenshotIfc+".Screenshot", "", map[string]dbus.Variant{
		"modal":       dbus.MakeVariant(false),
		"interactive": dbus.MakeVariant(interactive),
	})
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}

	uri, ok := results["uri"]
	if !ok {
		return "", fmt.Errorf("screenshot: no uri in response")
	}
	s, ok := uri.Value().(string)
	if !ok {
		return "", fmt.Errorf("screenshot: unexpected uri type %T", uri.Value())
	}
	return s, nil
}

// ColorScheme reads the desktop-wide color scheme preference.
func (c *Client) ColorScheme(ctx context.Context) (uint32, error) {
	obj := c.conn.Object(portalService, portalPath)

	var v dbus.Variant
	err := obj.CallWithContext(ctx, settingsIface+".Read", 0, appearanceNS, colorSchemeKey).Store(&v)
	if err != nil {
		return 0, fmt.Errorf("read color-scheme: %w", err)
	}
	return unwrapUint32(v)
}

// unwrapUint32 handles both v and v(v) replies; older portals nest the value.
func unwrapUint32(v dbus.Variant) (uint32, error) {
	for i := 0; i < 4; i++ {
		switch val := v.Value().(type) {
		case uint32:
			return val, nil
		case dbus.Variant:
			v = val
		default:
			return 0, fmt.Errorf("unexpected color-scheme type %T", val)
		}
	}
	return 0, fmt.Errorf("color-scheme nested too deep")
}

// request calls a portal method that answers through a Request object and
// waits for its Response signal.
func (c *Client) request(ctx context.Context, method string, parent string, options map[string]dbus.Variant) (map[string]dbus.Variant, error) {
	log := logger.WithComponent("portal")
	obj := c.conn.Object(portalService, portalPath)

	token := fmt.Sprintf("silhouette%d_%d", os.Getpid(), tokenSeq.Add(1))
	options["handle_token"] = dbus.MakeVariant(token)

	// Set up response channel BEFORE making the call
	responseChan := make(chan *dbus.Signal, 10)

	matchRule := fmt.Sprintf("type='signal',interface='%s',member='Response'", requestIface)
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, matchRule).Err; err != nil {
		log.Warn().Err(err).Msg("Failed to add match rule")
	}

	c.conn.Signal(responseChan)
	defer c.conn.RemoveSignal(responseChan)

	var requestPath dbus.ObjectPath
	if err := obj.CallWithContext(ctx, method, 0, parent, options).Store(&requestPath); err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	log.Debug().Str("request_path", string(requestPath)).Str("method", method).Msg("Waiting for portal response")

	for {
		select {
		case <-ctx.Done():
			c.conn.Object(portalService, requestPath).Call(requestIface+".Close", 0)
			return nil, ctx.Err()
		case sig := <-responseChan:
			if sig.Path != requestPath || sig.Name != requestIface+".Response" {
				continue
			}
			return parseResponse(sig)
		}
	}
}

func parseResponse(sig *dbus.Signal) (map[string]dbus.Variant, error) {
	if len(sig.Body) < 2 {
		return nil, fmt.Errorf("invalid response")
	}
	code, ok := sig.Body[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("invalid response code type %T", sig.Body[0])
	}
	if code != 0 {
		return nil, fmt.Errorf("%w (code %d)", ErrDenied, code)
	}
	results, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("invalid response results type %T", sig.Body[1])
	}
	return results, nil
}
