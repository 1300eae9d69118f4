package browser

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBestResizeWithinBudgetUnchanged(t *testing.T) {
	p := DefaultResizeParams()

	tests := [][2]int{
		{800, 600},
		{1024, 768},
		{1568, 400},
		{1, 1},
	}
	for _, tt := range tests {
		w, h := p.BestResize(tt[0], tt[1])
		assert.Equal(t, tt[0], w, "width for %v", tt)
		assert.Equal(t, tt[1], h, "height for %v", tt)
	}
}

func TestBestResizeLargeImage(t *testing.T) {
	p := DefaultResizeParams()

	w, h := p.BestResize(3000, 2000)

	assert.LessOrEqual(t, w, p.MaxTargetPx)
	assert.LessOrEqual(t, h, p.MaxTargetPx)
	assert.LessOrEqual(t, p.TokenCost(w, h), p.MaxTargetTokens)

	// Aspect ratio preserved within rounding
	original := 3000.0 / 2000.0
	result := float64(w) / float64(h)
	assert.InDelta(t, original, result, 0.01)
}

func TestBestResizePortraitSwap(t *testing.T) {
	p := DefaultResizeParams()

	// Portrait input must come back portrait
	w, h := p.BestResize(2000, 3000)
	assert.Less(t, w, h)
	assert.LessOrEqual(t, w, p.MaxTargetPx)
	assert.LessOrEqual(t, h, p.MaxTargetPx)
	assert.LessOrEqual(t, p.TokenCost(w, h), p.MaxTargetTokens)

	// Symmetric with the landscape case
	lw, lh := p.BestResize(3000, 2000)
	assert.Equal(t, lw, h)
	assert.Equal(t, lh, w)
}

func TestBestResizeTokenConstraintBinds(t *testing.T) {
	// Dimensions under MaxTargetPx but over the token budget still shrink
	p := DefaultResizeParams()
	w, h := p.BestResize(1500, 1500)

	assert.LessOrEqual(t, p.TokenCost(w, h), p.MaxTargetTokens)
	assert.True(t, w < 1500 && h < 1500)
}

func TestTokenCost(t *testing.T) {
	p := DefaultResizeParams()

	// 28x28 is exactly one tile; 29x29 spills into four
	assert.Equal(t, 1, p.TokenCost(28, 28))
	assert.Equal(t, 4, p.TokenCost(29, 29))
	assert.Equal(t, 56*56, p.TokenCost(1568, 1568))
}

func TestScaleToViewport(t *testing.T) {
	c := ScreenshotContext{ViewportW: 1280, ViewportH: 800, ShotW: 640, ShotH: 400}

	x, y := c.ScaleToViewport(320, 200)
	assert.Equal(t, 640.0, x)
	assert.Equal(t, 400.0, y)
}

func TestScaleToViewportRoundTrip(t *testing.T) {
	// Scaling by the ratio then by its reciprocal recovers the original
	// point within one pixel of rounding
	c := ScreenshotContext{ViewportW: 1280, ViewportH: 800, ShotW: 1000, ShotH: 625}
	inverse := ScreenshotContext{ViewportW: 1000, ViewportH: 625, ShotW: 1280, ShotH: 800}

	for _, pt := range [][2]float64{{0, 0}, {13, 57}, {999, 624}, {500, 312}} {
		x, y := c.ScaleToViewport(pt[0], pt[1])
		bx, by := inverse.ScaleToViewport(x, y)
		assert.LessOrEqual(t, math.Abs(bx-pt[0]), 1.0, "x round trip for %v", pt)
		assert.LessOrEqual(t, math.Abs(by-pt[1]), 1.0, "y round trip for %v", pt)
	}
}

func TestScaleToViewportNoContext(t *testing.T) {
	var c ScreenshotContext
	x, y := c.ScaleToViewport(10, 20)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 20.0, y)
}
