package viewport

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/Silhouette/internal/logger"
)

// X11Provider follows the size of the X11 root window, which changes when
// monitors are added or the resolution is switched.
type X11Provider struct {
	*Static
	conn     *xgb.Conn
	root     xproto.Window
	stopChan chan struct{}
}

// NewX11Provider connects to the X server and starts watching the root
// window.
func NewX11Provider() (*X11Provider, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)

	err = xproto.ChangeWindowAttributesChecked(
		conn, screen.Root, xproto.CwEventMask,
		[]uint32{xproto.EventMaskStructureNotify},
	).Check()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to select root events: %w", err)
	}

	p := &X11Provider{
		Static:   NewStatic(Size{Width: int(screen.WidthInPixels), Height: int(screen.HeightInPixels)}),
		conn:     conn,
		root:     screen.Root,
		stopChan: make(chan struct{}),
	}
	go p.watch()
	return p, nil
}

func (p *X11Provider) watch() {
	log := logger.WithComponent("viewport")

	for {
		ev, err := p.conn.WaitForEvent()
		select {
		case <-p.stopChan:
			return
		default:
		}
		if ev == nil && err == nil {
			log.Debug().Msg("X connection closed")
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("X event error")
			continue
		}

		if cfg, ok := ev.(xproto.ConfigureNotifyEvent); ok && cfg.Window == p.root {
			size := Size{Width: int(cfg.Width), Height: int(cfg.Height)}
			log.Debug().Int("width", size.Width).Int("height", size.Height).Msg("Viewport resized")
			p.Set(size)
		}
	}
}

// Close stops watching and closes the connection.
func (p *X11Provider) Close() error {
	close(p.stopChan)
	p.conn.Close()
	return nil
}
