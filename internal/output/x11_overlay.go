package output

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/shape"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
)

// maxRequestBytes keeps each PutImage below the core protocol request limit
// (65535 four-byte units) without BIG-REQUESTS.
const maxRequestBytes = 65535*4 - 64

// X11Overlay shows frames in a borderless, override-redirect window that
// stays above every other window and lets input pass through. With a 32-bit
// visual and a running compositor transparent pixels show the desktop.
type X11Overlay struct {
	config Config
	conn   *xgb.Conn
	screen *xproto.ScreenInfo

	mu       sync.RWMutex
	running  bool
	window   xproto.Window
	gc       xproto.Gcontext
	colormap xproto.Colormap
	depth    byte
	bpp      int
	pad      int
	width    int
	height   int
	frames   uint64

	// undo frees the server resources created by Start, newest last
	undo []func()
}

// NewX11Overlay connects to the X server. The window is created by Start;
// a zero size in config covers the whole screen.
func NewX11Overlay(config Config) (*X11Overlay, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	if config.Width <= 0 || config.Height <= 0 {
		config.Width = int(screen.WidthInPixels)
		config.Height = int(screen.HeightInPixels)
	}

	return &X11Overlay{config: config, conn: conn, screen: screen}, nil
}

// Name returns the output type name
func (o *X11Overlay) Name() string {
	return "X11 Overlay"
}

// IsRunning returns true if the overlay window exists
func (o *X11Overlay) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// Start creates and maps the overlay window. Resources created before a
// failure are freed again.
func (o *X11Overlay) Start() (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("overlay already running")
	}

	log := logger.WithComponent("x11-overlay")

	defer func() {
		if err != nil {
			o.release()
			o.conn.Sync()
		}
	}()

	visual, depth := o.argbVisual()
	o.depth = depth

	colormap, err := xproto.NewColormapId(o.conn)
	if err != nil {
		return fmt.Errorf("failed to create colormap ID: %w", err)
	}
	if err := xproto.CreateColormapChecked(o.conn, xproto.ColormapAllocNone, colormap, o.screen.Root, visual).Check(); err != nil {
		return fmt.Errorf("failed to create colormap: %w", err)
	}
	o.colormap = colormap
	o.undo = append(o.undo, func() { xproto.FreeColormap(o.conn, colormap) })

	windowID, err := xproto.NewWindowId(o.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}

	// value order follows the mask bit order
	mask := uint32(xproto.CwBackPixel | xproto.CwBorderPixel | xproto.CwOverrideRedirect | xproto.CwColormap)
	values := []uint32{0, 0, 1, uint32(colormap)}

	err = xproto.CreateWindowChecked(
		o.conn,
		depth,
		windowID,
		o.screen.Root,
		0, 0,
		uint16(o.config.Width), uint16(o.config.Height),
		0,
		xproto.WindowClassInputOutput,
		visual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	o.window = windowID
	o.undo = append(o.undo, func() { xproto.DestroyWindow(o.conn, windowID) })
	o.width, o.height = o.config.Width, o.config.Height

	if err := o.setWindowTitle("Silhouette"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := o.setAbove(); err != nil {
		log.Warn().Err(err).Msg("Failed to set _NET_WM_STATE_ABOVE")
	}
	if err := o.passInput(); err != nil {
		log.Warn().Err(err).Msg("Failed to make overlay input-transparent")
	}

	if err := xproto.MapWindowChecked(o.conn, o.window).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}
	xproto.ConfigureWindow(o.conn, o.window, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove})

	gc, err := xproto.NewGcontextId(o.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(o.conn, gc, xproto.Drawable(o.window), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	o.gc = gc
	o.undo = append(o.undo, func() { xproto.FreeGC(o.conn, gc) })

	bpp, pad, err := o.pixmapFormat(depth)
	if err != nil {
		return err
	}
	o.bpp, o.pad = bpp, pad

	o.conn.Sync()
	o.running = true
	o.frames = 0

	log.Info().
		Int("width", o.width).
		Int("height", o.height).
		Uint8("depth", depth).
		Uint32("window_id", uint32(o.window)).
		Msg("Overlay window created")
	return nil
}

// argbVisual finds a 32-bit TrueColor visual, falling back to the root
// visual when the server has none.
func (o *X11Overlay) argbVisual() (xproto.Visualid, byte) {
	for _, d := range o.screen.AllowedDepths {
		if d.Depth != 32 {
			continue
		}
		for _, v := range d.Visuals {
			if v.Class == xproto.VisualClassTrueColor {
				return v.VisualId, 32
			}
		}
	}
	return o.screen.RootVisual, o.screen.RootDepth
}

func (o *X11Overlay) pixmapFormat(depth byte) (int, int, error) {
	for _, f := range xproto.Setup(o.conn).PixmapFormats {
		if f.Depth == depth {
			return int(f.BitsPerPixel) / 8, int(f.ScanlinePad) / 8, nil
		}
	}
	return 0, 0, fmt.Errorf("no format found for depth %d", depth)
}

func (o *X11Overlay) setAbove() error {
	state, err := o.getAtom("_NET_WM_STATE")
	if err != nil {
		return err
	}
	above, err := o.getAtom("_NET_WM_STATE_ABOVE")
	if err != nil {
		return err
	}
	buf := make([]byte, 4)
	xgb.Put32(buf, uint32(above))
	return xproto.ChangePropertyChecked(o.conn, xproto.PropModeReplace, o.window, state, xproto.AtomAtom, 32, 1, buf).Check()
}

// passInput sets an empty input shape so clicks reach the windows below.
func (o *X11Overlay) passInput() error {
	if err := xfixes.Init(o.conn); err != nil {
		return err
	}
	if _, err := xfixes.QueryVersion(o.conn, 5, 0).Reply(); err != nil {
		return err
	}
	region, err := xfixes.NewRegionId(o.conn)
	if err != nil {
		return err
	}
	if err := xfixes.CreateRegionChecked(o.conn, region, nil).Check(); err != nil {
		return err
	}
	defer xfixes.DestroyRegion(o.conn, region)

	return xfixes.SetWindowShapeRegionChecked(o.conn, o.window, shape.SkInput, 0, 0, region).Check()
}

// Stop destroys the overlay window
func (o *X11Overlay) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return nil
	}

	o.release()
	o.conn.Sync()

	o.running = false
	logger.WithComponent("x11-overlay").Info().Uint64("frames", o.frames).Msg("Overlay window closed")
	return nil
}

// release frees what Start created in reverse order. Callers hold mu.
func (o *X11Overlay) release() {
	for i := len(o.undo) - 1; i >= 0; i-- {
		o.undo[i]()
	}
	o.undo = nil
	o.gc, o.window, o.colormap = 0, 0, 0
}

// Close stops the overlay and closes the X connection.
func (o *X11Overlay) Close() error {
	err := o.Stop()
	o.conn.Close()
	return err
}

// WriteFrame puts the frame into the overlay window, resizing the window
// when the frame size changed.
func (o *X11Overlay) WriteFrame(frame *image.RGBA) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return fmt.Errorf("overlay not running")
	}

	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
	if w != o.width || h != o.height {
		xproto.ConfigureWindow(o.conn, o.window,
			xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			[]uint32{uint32(w), uint32(h)})
		o.width, o.height = w, h
	}

	data, stride, err := toZPixmap(frame, o.bpp, o.pad, o.depth == 32)
	if err != nil {
		return err
	}

	rows := rowsPerRequest(stride)
	for y := 0; y < h; y += rows {
		n := min(rows, h-y)
		err := xproto.PutImageChecked(
			o.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(o.window),
			o.gc,
			uint16(w), uint16(n),
			0, int16(y),
			0,
			o.depth,
			data[y*stride:(y+n)*stride],
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image: %w", err)
		}
	}

	o.frames++
	return nil
}

// toZPixmap converts premultiplied RGBA to the server's BGR(A) byte order
// with scanline padding. Without alpha the fourth byte is left zero.
func toZPixmap(img *image.RGBA, bytesPerPixel, padBytes int, alpha bool) ([]byte, int, error) {
	if bytesPerPixel != 3 && bytesPerPixel != 4 {
		return nil, 0, fmt.Errorf("unsupported bytes per pixel: %d", bytesPerPixel)
	}
	if padBytes <= 0 {
		padBytes = 1
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := ((w*bytesPerPixel + padBytes - 1) / padBytes) * padBytes
	data := make([]byte, stride*h)

	for y := 0; y < h; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := data[y*stride:]
		for x := 0; x < w; x++ {
			s := src[x*4:]
			d := dst[x*bytesPerPixel:]
			d[0], d[1], d[2] = s[2], s[1], s[0]
			if bytesPerPixel == 4 && alpha {
				d[3] = s[3]
			}
		}
	}
	return data, stride, nil
}

// rowsPerRequest is how many scanlines fit in one PutImage request.
func rowsPerRequest(stride int) int {
	if stride <= 0 {
		return 1
	}
	return max(1, maxRequestBytes/stride)
}

// setWindowTitle sets the window title
func (o *X11Overlay) setWindowTitle(title string) error {
	titleAtom, err := o.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := o.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}
	return xproto.ChangePropertyChecked(o.conn, xproto.PropModeReplace, o.window, titleAtom, utf8Atom, 8, uint32(len(title)), []byte(title)).Check()
}

// getAtom gets an atom ID by name
func (o *X11Overlay) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(o.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
