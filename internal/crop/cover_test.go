package crop

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var video = Size{Width: 962, Height: 720}

const eps = 1e-9

func TestCoverStaysInsideIntrinsicBounds(t *testing.T) {
	dests := []Rect{
		{W: 1920, H: 1080},
		{W: 1080, H: 1920},
		{W: 962, H: 720},
		{W: 800, H: 600},
		{W: 3840, H: 1600},
		{W: 1, H: 1},
		{W: 1, H: 4000},
		{W: 4000, H: 1},
		{X: -5, Y: -5, W: 1930, H: 1090},
		{W: 1366.5, H: 767.25},
	}

	for _, dst := range dests {
		c := Cover(video, dst, DefaultAnchor)

		assert.GreaterOrEqual(t, c.X, 0.0, "dst %+v", dst)
		assert.GreaterOrEqual(t, c.Y, 0.0, "dst %+v", dst)
		assert.LessOrEqual(t, c.X+c.W, video.Width+eps, "dst %+v", dst)
		assert.LessOrEqual(t, c.Y+c.H, video.Height+eps, "dst %+v", dst)
		assert.InEpsilon(t, dst.W/dst.H, c.W/c.H, 1e-9, "aspect for dst %+v", dst)
	}
}

func TestCoverCentersWithDefaultAnchor(t *testing.T) {
	for _, dst := range []Rect{{W: 1920, H: 1080}, {W: 500, H: 1000}, {W: 2000, H: 200}} {
		c := Cover(video, dst, DefaultAnchor)
		assert.InDelta(t, (video.Width-c.W)/2, c.X, eps)
		assert.InDelta(t, (video.Height-c.H)/2, c.Y, eps)
	}
}

func TestCoverFullHD(t *testing.T) {
	c := Cover(video, Rect{W: 1920, H: 1080}, DefaultAnchor)

	// wide viewport: full width of the source, top and bottom cropped
	assert.InDelta(t, 0, c.X, eps)
	assert.InDelta(t, 962, c.W, eps)
	assert.InDelta(t, 541.125, c.H, 1e-6)
	assert.InDelta(t, 89.4375, c.Y, 1e-6)
}

func TestCoverTallViewportCropsWidth(t *testing.T) {
	c := Cover(video, Rect{W: 720, H: 1280}, DefaultAnchor)

	assert.InDelta(t, 720, c.H, eps)
	assert.InDelta(t, 405, c.W, 1e-6)
	assert.InDelta(t, (962-405)/2.0, c.X, 1e-6)
	assert.InDelta(t, 0, c.Y, eps)
}

func TestCoverSameAspectIsIdentity(t *testing.T) {
	c := Cover(video, Rect{W: 481, H: 360}, DefaultAnchor)
	assert.InDelta(t, 0, c.X, eps)
	assert.InDelta(t, 0, c.Y, eps)
	assert.InDelta(t, 962, c.W, 1e-6)
	assert.InDelta(t, 720, c.H, 1e-6)
}

func TestCoverClampsAnchor(t *testing.T) {
	dsts := []Rect{{W: 1920, H: 1080}, {W: 700, H: 1400}}
	for _, dst := range dsts {
		assert.Equal(t,
			Cover(video, dst, Anchor{X: 0, Y: 1}),
			Cover(video, dst, Anchor{X: -1, Y: 2}))
		assert.Equal(t,
			Cover(video, dst, Anchor{X: 1, Y: 0}),
			Cover(video, dst, Anchor{X: 7, Y: -0.25}))
	}
}

func TestCoverNonFiniteAnchor(t *testing.T) {
	dst := Rect{W: 1920, H: 1080}
	nan := math.NaN()

	c := Cover(video, dst, Anchor{X: nan, Y: nan})
	assert.Equal(t, Cover(video, dst, DefaultAnchor), c)
	assert.GreaterOrEqual(t, c.X, 0.0)
	assert.GreaterOrEqual(t, c.Y, 0.0)

	assert.Equal(t, Anchor{X: 0.5, Y: 1}, Anchor{X: nan, Y: math.Inf(1)}.Clamp())
	assert.Equal(t, Anchor{X: 0, Y: 0.5}, Anchor{X: math.Inf(-1), Y: nan}.Clamp())
}

func TestCoverAnchorCorners(t *testing.T) {
	dst := Rect{W: 1920, H: 1080}

	top := Cover(video, dst, Anchor{X: 0, Y: 0})
	assert.InDelta(t, 0, top.Y, eps)

	bottom := Cover(video, dst, Anchor{X: 1, Y: 1})
	assert.InDelta(t, video.Height, bottom.Y+bottom.H, 1e-9)
}

func TestCoverDegenerate(t *testing.T) {
	assert.True(t, Cover(video, Rect{W: 0, H: 100}, DefaultAnchor).Empty())
	assert.True(t, Cover(video, Rect{W: 100, H: -1}, DefaultAnchor).Empty())
	assert.True(t, Cover(Size{}, Rect{W: 100, H: 100}, DefaultAnchor).Empty())
	assert.Equal(t, Rect{}, Cover(video, Rect{W: math.NaN(), H: 100}, DefaultAnchor))
	assert.Equal(t, Rect{}, Cover(video, Rect{W: math.Inf(1), H: 100}, DefaultAnchor))
	assert.Equal(t, Rect{}, Cover(Size{Width: math.NaN(), Height: 720}, Rect{W: 100, H: 100}, DefaultAnchor))
}

func TestRectExpand(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 1920, H: 1080}.Expand(5)
	assert.Equal(t, Rect{X: -5, Y: -5, W: 1930, H: 1090}, r)
}
