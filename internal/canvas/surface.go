// Package canvas implements the small part of a 2D drawing context the
// compositor needs: a premultiplied RGBA surface, a persistent blend mode and
// image draws with optional source cropping and scaling.
package canvas

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/bryanchriswhite/Silhouette/internal/crop"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// BlendMode is a Porter-Duff compositing operator.
type BlendMode int

const (
	// SourceOver draws new content over existing content. This is the default.
	SourceOver BlendMode = iota
	// SourceIn keeps new content only where the destination is opaque; the
	// destination's alpha shapes it and its color is discarded.
	SourceIn
	// DestinationOver draws new content behind existing content.
	DestinationOver
	// Copy replaces the destination with new content.
	Copy
)

func (m BlendMode) String() string {
	switch m {
	case SourceOver:
		return "source-over"
	case SourceIn:
		return "source-in"
	case DestinationOver:
		return "destination-over"
	case Copy:
		return "copy"
	default:
		return fmt.Sprintf("BlendMode(%d)", int(m))
	}
}

// ParseBlendMode accepts the CSS/canvas operator names.
func ParseBlendMode(s string) (BlendMode, error) {
	for _, m := range []BlendMode{SourceOver, SourceIn, DestinationOver, Copy} {
		if m.String() == s {
			return m, nil
		}
	}
	return SourceOver, fmt.Errorf("unknown blend mode %q", s)
}

// Surface is a drawing target. It is not safe for concurrent use; the
// playback session owns it and draws from a single goroutine.
type Surface struct {
	img    *image.RGBA
	layer  *image.RGBA
	mode   BlendMode
	scaler xdraw.Transformer
}

// New allocates a transparent surface.
func New(width, height int) *Surface {
	return &Surface{
		img:    image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		mode:   SourceOver,
		scaler: xdraw.ApproxBiLinear,
	}
}

// SetScaler replaces the interpolator used by DrawImageRect.
func (s *Surface) SetScaler(t xdraw.Transformer) {
	s.scaler = t
}

// Resize reallocates the backing store. Like resizing a canvas element this
// discards the content and resets the blend mode.
func (s *Surface) Resize(width, height int) {
	b := s.img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
	s.layer = nil
	s.mode = SourceOver
}

// Width of the surface in pixels.
func (s *Surface) Width() int { return s.img.Bounds().Dx() }

// Height of the surface in pixels.
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// Image exposes the backing store. Callers must not keep it across frames.
func (s *Surface) Image() *image.RGBA { return s.img }

// BlendMode returns the current operator.
func (s *Surface) BlendMode() BlendMode { return s.mode }

// SetBlendMode changes the operator used by every following draw.
func (s *Surface) SetBlendMode(m BlendMode) { s.mode = m }

// Clear makes every pixel transparent.
func (s *Surface) Clear() {
	clear(s.img.Pix)
}

// DrawImage draws src unscaled with its top-left corner at (x, y).
func (s *Surface) DrawImage(src image.Image, x, y int) {
	layer := s.clearLayer()
	sb := src.Bounds()
	r := image.Rect(x, y, x+sb.Dx(), y+sb.Dy())
	draw.Draw(layer, r, src, sb.Min, draw.Src)
	s.composite(layer, r.Intersect(layer.Bounds()))
}

// DrawImageRect draws the src sub-rectangle from (in src coordinates relative
// to its bounds origin) scaled into dst (in surface coordinates). Both
// rectangles may be fractional; dst may extend past the surface.
func (s *Surface) DrawImageRect(src image.Image, from, dst crop.Rect) {
	if from.Empty() || dst.Empty() {
		return
	}
	sb := src.Bounds()
	sx := dst.W / from.W
	sy := dst.H / from.H
	ox := float64(sb.Min.X) + from.X
	oy := float64(sb.Min.Y) + from.Y

	// source space -> surface space
	m := f64.Aff3{
		sx, 0, dst.X - ox*sx,
		0, sy, dst.Y - oy*sy,
	}

	sr := image.Rect(
		floor(ox), floor(oy),
		ceil(ox+from.W), ceil(oy+from.H),
	).Intersect(sb)

	covered := image.Rect(
		floor(dst.X), floor(dst.Y),
		ceil(dst.X+dst.W), ceil(dst.Y+dst.H),
	).Intersect(s.img.Bounds())

	if s.mode == SourceOver {
		s.scaler.Transform(s.img, m, src, sr, xdraw.Over, nil)
		return
	}

	layer := s.clearLayer()
	s.scaler.Transform(layer, m, src, sr, xdraw.Src, nil)
	s.composite(layer, covered)
}

func (s *Surface) clearLayer() *image.RGBA {
	if s.layer == nil || s.layer.Bounds() != s.img.Bounds() {
		s.layer = image.NewRGBA(s.img.Bounds())
	} else {
		clear(s.layer.Pix)
	}
	return s.layer
}

// composite blends layer into the surface with the current mode. Only the
// area inside drawn can hold layer content; operators that affect the
// destination where the source is transparent still visit every pixel.
func (s *Surface) composite(layer *image.RGBA, drawn image.Rectangle) {
	switch s.mode {
	case SourceIn, Copy:
		blendRect(s.img, layer, s.img.Bounds(), s.mode)
	default:
		blendRect(s.img, layer, drawn, s.mode)
	}
}

func floor(v float64) int { return int(math.Floor(v)) }

func ceil(v float64) int { return int(math.Ceil(v)) }
