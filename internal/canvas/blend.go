package canvas

import "image"

// blendRect composites src onto dst inside r using premultiplied alpha.
// Both images must share bounds.
func blendRect(dst, src *image.RGBA, r image.Rectangle, mode BlendMode) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}

	width := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		d := dst.Pix[dst.PixOffset(r.Min.X, y):][:width]
		s := src.Pix[src.PixOffset(r.Min.X, y):][:width]

		switch mode {
		case SourceOver:
			for i := 0; i < width; i += 4 {
				inv := 255 - uint32(s[i+3])
				d[i+0] = s[i+0] + mul(d[i+0], inv)
				d[i+1] = s[i+1] + mul(d[i+1], inv)
				d[i+2] = s[i+2] + mul(d[i+2], inv)
				d[i+3] = s[i+3] + mul(d[i+3], inv)
			}
		case SourceIn:
			for i := 0; i < width; i += 4 {
				da := uint32(d[i+3])
				d[i+0] = mul(s[i+0], da)
				d[i+1] = mul(s[i+1], da)
				d[i+2] = mul(s[i+2], da)
				d[i+3] = mul(s[i+3], da)
			}
		case DestinationOver:
			for i := 0; i < width; i += 4 {
				inv := 255 - uint32(d[i+3])
				d[i+0] += mul(s[i+0], inv)
				d[i+1] += mul(s[i+1], inv)
				d[i+2] += mul(s[i+2], inv)
				d[i+3] += mul(s[i+3], inv)
			}
		case Copy:
			copy(d, s)
		}
	}
}

// mul returns round(c*a/255) for an 8-bit channel and an 8-bit alpha.
func mul(c uint8, a uint32) uint8 {
	v := uint32(c)*a + 128
	return uint8((v + v>>8) >> 8)
}
