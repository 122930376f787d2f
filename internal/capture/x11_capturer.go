package capture

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
	xdraw "golang.org/x/image/draw"
)

// X11Capturer captures top-level windows using X11/XWayland
type X11Capturer struct {
	conn             *xgb.Conn
	root             xproto.Window
	screen           *xproto.ScreenInfo
	compositeEnabled bool
	nameFilter       string
	mu               sync.Mutex
}

// x11Window is a capturable top-level window
type x11Window struct {
	id    xproto.Window
	title string
	class string
}

// NewX11Capturer connects to the X server. Only windows whose title or class
// contains nameFilter are captured; an empty filter captures every titled
// window.
func NewX11Capturer(nameFilter string) (*X11Capturer, error) {
	log := logger.WithComponent("x11-capturer")

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	c := &X11Capturer{
		conn:       conn,
		root:       screen.Root,
		screen:     screen,
		nameFilter: nameFilter,
	}

	// Initialize composite extension
	if err := composite.Init(conn); err != nil {
		log.Warn().
			Err(err).
			Msg("Composite extension not available - window screenshots may fail for obscured windows")
	} else {
		c.compositeEnabled = true
		log.Info().Msg("Composite extension initialized")
	}

	return c, nil
}

// Name returns the capturer name
func (c *X11Capturer) Name() string {
	return "x11"
}

// Close closes the X11 connection
func (c *X11Capturer) Close() error {
	c.conn.Close()
	return nil
}

// ScreenSize returns the size of the default screen.
func (c *X11Capturer) ScreenSize() (int, int) {
	return int(c.screen.WidthInPixels), int(c.screen.HeightInPixels)
}

// CaptureWindow captures every matching top-level window, scaled to fit
// inside width x height.
func (c *X11Capturer) CaptureWindow(ctx context.Context, width, height int) ([]Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.WithComponent("x11-capturer")

	windows, err := c.listWindows()
	if err != nil {
		return nil, err
	}

	previews := make([]Preview, 0, len(windows))
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !w.matches(c.nameFilter) {
			continue
		}

		img, err := c.captureWindow(w.id)
		if err != nil {
			log.Debug().Err(err).Uint32("window_id", uint32(w.id)).Str("title", w.title).Msg("Skipping window")
			continue
		}

		u, err := PNGDataURL(fitWithin(img, width, height))
		if err != nil {
			return nil, err
		}
		previews = append(previews, Preview{Name: w.title, URL: u})
	}

	log.Debug().Int("windows", len(windows)).Int("captured", len(previews)).Msg("Captured window previews")
	return previews, nil
}

func (w x11Window) matches(filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(w.title, filter) || strings.Contains(w.class, filter)
}

// listWindows prefers EWMH _NET_CLIENT_LIST and falls back to the children
// of the root window.
func (c *X11Capturer) listWindows() ([]x11Window, error) {
	ids, err := c.clientList()
	if err != nil || len(ids) == 0 {
		tree, err := xproto.QueryTree(c.conn, c.root).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to query tree: %w", err)
		}
		ids = tree.Children
	}

	windows := make([]x11Window, 0, len(ids))
	for _, id := range ids {
		w := c.windowInfo(id)
		// Skip windows without titles (usually not user windows)
		if w.title == "" {
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func (c *X11Capturer) clientList() ([]xproto.Window, error) {
	atom, err := c.getAtom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(c.conn, false, c.root, atom, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST property: %w", err)
	}

	ids := make([]xproto.Window, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		ids = append(ids, xproto.Window(xgb.Get32(reply.Value[i:])))
	}
	return ids, nil
}

func (c *X11Capturer) windowInfo(win xproto.Window) x11Window {
	w := x11Window{id: win}

	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		if atom, err := c.getAtom(name); err == nil {
			if title, err := c.getProperty(win, atom); err == nil && title != "" {
				w.title = title
				break
			}
		}
	}

	// WM_CLASS format is: instance\0class\0
	if atom, err := c.getAtom("WM_CLASS"); err == nil {
		if raw, err := c.getProperty(win, atom); err == nil {
			parts := strings.Split(raw, "\x00")
			if len(parts) >= 2 && parts[1] != "" {
				w.class = parts[1]
			} else {
				w.class = parts[0]
			}
		}
	}
	return w
}

func (c *X11Capturer) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

func (c *X11Capturer) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(c.conn, false, win, atom, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}
	return string(reply.Value), nil
}

// captureWindow grabs a window, descending to a viewable child when the
// window itself is not directly capturable.
func (c *X11Capturer) captureWindow(win xproto.Window) (*image.RGBA, error) {
	attrs, err := xproto.GetWindowAttributes(c.conn, win).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get window attributes: %w", err)
	}

	if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
		child, err := c.findCapturableChild(win)
		if err != nil {
			return nil, fmt.Errorf("no capturable window found: %w", err)
		}
		win = child
	}

	geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get window geometry: %w", err)
	}

	return c.captureWindowDrawable(win, geom)
}

// findCapturableChild recursively searches for a capturable child window
func (c *X11Capturer) findCapturableChild(parent xproto.Window) (xproto.Window, error) {
	tree, err := xproto.QueryTree(c.conn, parent).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to query tree: %w", err)
	}

	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(c.conn, child).Reply()
		if err != nil {
			continue
		}
		geom, err := xproto.GetGeometry(c.conn, xproto.Drawable(child)).Reply()
		if err != nil {
			continue
		}

		if attrs.Class == xproto.WindowClassInputOutput && attrs.MapState == xproto.MapStateViewable {
			if geom.Width > 10 && geom.Height > 10 {
				return child, nil
			}
		}

		if grandchild, err := c.findCapturableChild(child); err == nil {
			return grandchild, nil
		}
	}

	return 0, fmt.Errorf("no capturable child found")
}

// captureWindowDrawable captures a window's content using Composite extension if available
func (c *X11Capturer) captureWindowDrawable(win xproto.Window, geom *xproto.GetGeometryReply) (*image.RGBA, error) {
	log := logger.WithComponent("x11-capturer")
	drawable := xproto.Drawable(win)

	if c.compositeEnabled {
		err := composite.RedirectWindowChecked(c.conn, win, composite.RedirectAutomatic).Check()
		if err != nil {
			log.Warn().
				Err(err).
				Uint32("window_id", uint32(win)).
				Msg("Failed to redirect window via Composite, falling back to direct capture")
		} else {
			defer composite.UnredirectWindow(c.conn, win, composite.RedirectAutomatic)

			if pixmap, err := xproto.NewPixmapId(c.conn); err == nil {
				if err := composite.NameWindowPixmapChecked(c.conn, win, pixmap).Check(); err == nil {
					drawable = xproto.Drawable(pixmap)
					defer xproto.FreePixmap(c.conn, pixmap)
				}
			}
		}
	}

	reply, err := xproto.GetImage(
		c.conn,
		xproto.ImageFormatZPixmap,
		drawable,
		0, 0,
		geom.Width, geom.Height,
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return bgraToRGBA(reply.Data, int(geom.Width), int(geom.Height), int(c.screen.RootDepth)), nil
}

// bgraToRGBA converts a 24/32-bit ZPixmap to opaque RGBA.
func bgraToRGBA(data []byte, width, height, depth int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if depth != 24 && depth != 32 {
		return img
	}

	n := min(len(data), len(img.Pix))
	for i := 0; i+3 < n; i += 4 {
		img.Pix[i+0] = data[i+2]
		img.Pix[i+1] = data[i+1]
		img.Pix[i+2] = data[i+0]
		img.Pix[i+3] = 255
	}
	return img
}

// fitWithin scales img down, keeping its aspect ratio, so that it fits in a
// width x height box. Images that already fit are returned unchanged.
func fitWithin(img *image.RGBA, width, height int) *image.RGBA {
	b := img.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() <= width && b.Dy() <= height) {
		return img
	}

	scale := min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
