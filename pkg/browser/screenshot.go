package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/nfnt/resize"
)

// Screenshot is a captured, rescaled image of the surface.
type Screenshot struct {
	// Data is the PNG image, base64-encoded for model consumption.
	Data      string
	MediaType string
	Width     int
	Height    int
}

// Screenshot captures the surface, downsamples high-DPI captures to CSS
// pixels, rescales to the session's resize budget, and records the
// screenshot context used to map model coordinates back to the viewport.
// The automation indicator is hidden during capture and restored on every
// exit path.
func (s *Session) Screenshot(ctx context.Context) (*Screenshot, error) {
	if err := s.Attach(ctx); err != nil {
		return nil, err
	}

	if err := s.scripts.HideIndicator(ctx); err != nil {
		sessionDebugLog.Warnf("failed to hide indicator before capture: %v", err)
	}
	defer func() {
		if err := s.scripts.ShowIndicator(ctx); err != nil {
			sessionDebugLog.Warnf("failed to restore indicator after capture: %v", err)
		}
	}()

	metrics, err := s.scripts.ViewportMetrics(ctx)
	if err != nil {
		return nil, err
	}

	var captured struct {
		Data string `json:"data"`
	}
	params := map[string]interface{}{"format": "png"}
	if err := s.call(ctx, MethodCaptureScreenshot, params, &captured); err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(captured.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode captured image: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse captured image: %w", err)
	}

	// High-DPI captures come back in device pixels; bring them down to
	// CSS pixels before budgeting.
	if metrics.DevicePixelRatio > 1 {
		cssW := int(math.Round(float64(img.Bounds().Dx()) / metrics.DevicePixelRatio))
		cssH := int(math.Round(float64(img.Bounds().Dy()) / metrics.DevicePixelRatio))
		if cssW > 0 && cssH > 0 {
			img = resize.Resize(uint(cssW), uint(cssH), img, resize.Lanczos3)
		}
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	targetW, targetH := s.resizeParams.BestResize(w, h)
	if targetW != w || targetH != h {
		img = resize.Resize(uint(targetW), uint(targetH), img, resize.Lanczos3)
	}

	encoded, err := encodePNGBase64(img)
	if err != nil {
		return nil, err
	}

	shot := &Screenshot{
		Data:      encoded,
		MediaType: "image/png",
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}

	s.recordScreenshotContext(ScreenshotContext{
		ViewportW: metrics.Width,
		ViewportH: metrics.Height,
		ShotW:     shot.Width,
		ShotH:     shot.Height,
	})

	return shot, nil
}

func encodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
