// Package crop computes source rectangles for drawing a fixed-size video
// into an arbitrary destination with "cover" semantics: the destination is
// always filled completely and the excess of the longer axis is cropped.
package crop

import "math"

// ratioTolerance decides whether the width pass already produced a scale
const ratioTolerance = 1e-14

// Size is an intrinsic image size in pixels.
type Size struct {
	Width  float64
	Height float64
}

// Rect is a floating point rectangle. Source crops are fractional, so the
// integer image.Rectangle is not precise enough.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Expand grows the rectangle by m on every side.
func (r Rect) Expand(m float64) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, W: r.W + 2*m, H: r.H + 2*m}
}

// Anchor selects which part of the source survives the crop. {0,0} keeps the
// top-left corner, {1,1} the bottom-right.
type Anchor struct {
	X float64
	Y float64
}

// DefaultAnchor centers the crop.
var DefaultAnchor = Anchor{X: 0.5, Y: 0.5}

// Clamp limits both offsets to [0,1]. A NaN offset falls back to the
// default.
func (a Anchor) Clamp() Anchor {
	x, y := a.X, a.Y
	if math.IsNaN(x) {
		x = DefaultAnchor.X
	}
	if math.IsNaN(y) {
		y = DefaultAnchor.Y
	}
	return Anchor{X: clamp(x, 0, 1), Y: clamp(y, 0, 1)}
}

// Cover returns the part of an image of the given intrinsic size that, drawn
// into dst, fills dst without letterboxing. The zero Rect is returned for a
// degenerate or non-finite destination or intrinsic size.
func Cover(intrinsic Size, dst Rect, anchor Anchor) Rect {
	iw, ih := intrinsic.Width, intrinsic.Height
	w, h := dst.W, dst.H
	if !positive(iw) || !positive(ih) || !positive(w) || !positive(h) {
		return Rect{}
	}
	anchor = anchor.Clamp()

	r := math.Min(w/iw, h/ih)
	nw := iw * r
	nh := ih * r
	ar := 1.0

	// fill whichever gap the fit size leaves
	if nw < w {
		ar = w / nw
	}
	if math.Abs(ar-1) < ratioTolerance && nh < h {
		ar = h / nh
	}
	nw *= ar
	nh *= ar

	cw := iw / (nw / w)
	ch := ih / (nh / h)
	if cw > iw {
		cw = iw
	}
	if ch > ih {
		ch = ih
	}

	cx := clamp((iw-cw)*anchor.X, 0, iw-cw)
	cy := clamp((ih-ch)*anchor.Y, 0, ih-ch)

	return Rect{X: cx, Y: cy, W: cw, H: ch}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// positive is false for NaN and infinities as well as v <= 0.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
