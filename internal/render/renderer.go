// Package render draws one overlay frame: the video masked by the light
// snapshot and backed by the dark snapshot.
package render

import (
	"errors"

	"github.com/bryanchriswhite/Silhouette/internal/canvas"
	"github.com/bryanchriswhite/Silhouette/internal/crop"
	"github.com/bryanchriswhite/Silhouette/internal/media"
	"github.com/bryanchriswhite/Silhouette/internal/snapshot"
)

// DefaultMargin is how far the video overshoots each edge of the surface.
const DefaultMargin = 5

// Terminal signals. They end a session normally and are not failures.
var (
	ErrMediaEnded   = errors.New("media ended")
	ErrMediaRemoved = errors.New("media removed")
)

// Renderer holds the per-session drawing parameters.
type Renderer struct {
	// Intrinsic is the encoded video size.
	Intrinsic crop.Size
	Margin    float64
	Anchor    crop.Anchor
}

// New returns a Renderer with the default margin and a centered anchor.
func New(intrinsic crop.Size) *Renderer {
	return &Renderer{
		Intrinsic: intrinsic,
		Margin:    DefaultMargin,
		Anchor:    crop.DefaultAnchor,
	}
}

// RenderFrame redraws surface. When the video is gone, paused or ended it
// returns the matching terminal signal and leaves surface untouched.
func (r *Renderer) RenderFrame(surface *canvas.Surface, video media.Video, pair snapshot.Pair) error {
	if video == nil {
		return ErrMediaRemoved
	}
	if video.Paused() || video.Ended() {
		return ErrMediaEnded
	}

	surface.Clear()

	dst := crop.Rect{W: float64(surface.Width()), H: float64(surface.Height())}.Expand(r.Margin)
	if frame := video.Frame(); frame != nil {
		src := crop.Cover(r.Intrinsic, dst, r.Anchor)
		surface.DrawImageRect(frame, src, dst)
	}

	surface.SetBlendMode(canvas.SourceIn)
	if pair.Light != nil {
		surface.DrawImage(pair.Light, 0, 0)
	}

	surface.SetBlendMode(canvas.DestinationOver)
	if pair.Dark != nil {
		surface.DrawImage(pair.Dark, 0, 0)
	}

	surface.SetBlendMode(canvas.SourceOver)
	return nil
}
