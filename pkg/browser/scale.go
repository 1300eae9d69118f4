package browser

import "math"

// ResizeParams bounds the dimensions and token cost of captured screenshots.
type ResizeParams struct {
	// PxPerToken is the edge length of one token's worth of image area.
	PxPerToken int

	// MaxTargetPx caps either output dimension.
	MaxTargetPx int

	// MaxTargetTokens caps the token cost of the output image.
	MaxTargetTokens int
}

// DefaultResizeParams returns the standard screenshot budget.
func DefaultResizeParams() ResizeParams {
	return ResizeParams{
		PxPerToken:      28,
		MaxTargetPx:     1568,
		MaxTargetTokens: 1568,
	}
}

// TokenCost returns the token cost of a w x h image: the number of
// PxPerToken-sized tiles needed to cover it.
func (p ResizeParams) TokenCost(w, h int) int {
	return ceilDiv(w, p.PxPerToken) * ceilDiv(h, p.PxPerToken)
}

// BestResize computes the largest dimensions at the same aspect ratio that
// satisfy both the per-dimension and token-cost limits. Input already within
// both limits is returned unchanged.
func (p ResizeParams) BestResize(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	if w <= p.MaxTargetPx && h <= p.MaxTargetPx && p.TokenCost(w, h) <= p.MaxTargetTokens {
		return w, h
	}

	// Search on the longer edge; swap back at the end if needed.
	swapped := false
	if h > w {
		w, h = h, w
		swapped = true
	}
	ratio := float64(w) / float64(h)

	// Binary search the largest width whose derived height keeps both
	// constraints satisfied.
	lo, hi := 1, w
	bestW, bestH := 1, 1
	for lo <= hi {
		mid := (lo + hi) / 2
		midH := int(math.Round(float64(mid) / ratio))
		if midH < 1 {
			midH = 1
		}
		if mid <= p.MaxTargetPx && midH <= p.MaxTargetPx && p.TokenCost(mid, midH) <= p.MaxTargetTokens {
			bestW, bestH = mid, midH
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	if swapped {
		return bestH, bestW
	}
	return bestW, bestH
}

// ScreenshotContext records the mapping between the most recent rescaled
// screenshot and the true viewport, per browsing surface. It is overwritten
// on every capture and discarded when the surface navigates or closes.
type ScreenshotContext struct {
	ViewportW int
	ViewportH int
	ShotW     int
	ShotH     int
}

// ScaleToViewport converts a point in the rescaled screenshot's pixel space
// to true viewport pixels. Model-given coordinates always refer to the last
// screenshot the model saw, so every pointer action is scaled through this
// before dispatch.
func (c ScreenshotContext) ScaleToViewport(x, y float64) (float64, float64) {
	if c.ShotW <= 0 || c.ShotH <= 0 {
		return x, y
	}
	sx := math.Round(x * float64(c.ViewportW) / float64(c.ShotW))
	sy := math.Round(y * float64(c.ViewportH) / float64(c.ShotH))
	return sx, sy
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
