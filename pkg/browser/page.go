package browser

import (
	"context"
	"encoding/json"
	"fmt"
)

// PageScripts is the page-context collaborator: accessibility extraction,
// element resolution, and the automation indicator all live in injected
// page script. This core only calls into it.
type PageScripts interface {
	HideIndicator(ctx context.Context) error
	ShowIndicator(ctx context.Context) error

	// ViewportMetrics reads the surface's CSS viewport size and device
	// pixel ratio.
	ViewportMetrics(ctx context.Context) (ViewportMetrics, error)

	// AccessibilitySnapshot extracts the page's accessibility tree as a
	// text rendering with stable element references.
	AccessibilitySnapshot(ctx context.Context) (string, error)

	// ResolveElement resolves a previously returned element reference to
	// its current geometry and kind. Returns ErrElementNotFound when the
	// reference no longer resolves.
	ResolveElement(ctx context.Context, ref string) (*ResolvedElement, error)

	// SetFormValue synthesizes a native value change on the referenced
	// element.
	SetFormValue(ctx context.Context, ref, value string) error

	// ScrollPosition reads the window scroll offsets.
	ScrollPosition(ctx context.Context) (x, y float64, err error)

	// ScrollElementAt scrolls the nearest scrollable ancestor of the
	// point by the given deltas, in page script.
	ScrollElementAt(ctx context.Context, x, y, deltaX, deltaY float64) error

	// OuterHTML returns the serialized document.
	OuterHTML(ctx context.Context) (string, error)

	// DocumentContent fetches the raw bytes of the current document,
	// base64-encoded. Used for non-HTML surfaces such as PDFs.
	DocumentContent(ctx context.Context) (string, error)
}

// ErrElementNotFound is returned when an element reference is stale.
var ErrElementNotFound = fmt.Errorf("element reference not found")

// ViewportMetrics is the surface's CSS viewport size and pixel ratio.
type ViewportMetrics struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// ElementKind classifies a form element for value synthesis.
type ElementKind string

const (
	ElementSelect   ElementKind = "select"
	ElementCheckbox ElementKind = "checkbox"
	ElementRadio    ElementKind = "radio"
	ElementDate     ElementKind = "date"
	ElementRange    ElementKind = "range"
	ElementNumber   ElementKind = "number"
	ElementText     ElementKind = "text"
)

// ResolvedElement is the current state of a referenced element.
type ResolvedElement struct {
	Ref     string      `json:"ref"`
	Kind    ElementKind `json:"kind"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Width   float64     `json:"width"`
	Height  float64     `json:"height"`
	Value   string      `json:"value"`
	Options []string    `json:"options,omitempty"`
}

// TransportPageScripts implements PageScripts over Runtime.evaluate calls
// against script previously injected into the page.
type TransportPageScripts struct {
	transport Transport
}

// NewTransportPageScripts creates the default page-script collaborator.
func NewTransportPageScripts(transport Transport) *TransportPageScripts {
	return &TransportPageScripts{transport: transport}
}

// evaluateResult is the Runtime.evaluate response envelope.
type evaluateResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// evaluate runs an expression in page context and decodes its JSON value.
func (p *TransportPageScripts) evaluate(ctx context.Context, expression string, out interface{}) error {
	return p.evaluateWith(ctx, expression, false, out)
}

func (p *TransportPageScripts) evaluateWith(ctx context.Context, expression string, awaitPromise bool, out interface{}) error {
	params := map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  awaitPromise,
	}
	var result evaluateResult
	if err := p.transport.Call(ctx, MethodRuntimeEvaluate, params, &result); err != nil {
		return err
	}
	if result.ExceptionDetails != nil {
		return fmt.Errorf("page script failed: %s", result.ExceptionDetails.Text)
	}
	if out != nil && len(result.Result.Value) > 0 {
		if err := json.Unmarshal(result.Result.Value, out); err != nil {
			return fmt.Errorf("failed to decode page script result: %w", err)
		}
	}
	return nil
}

// HideIndicator hides the on-page automation indicator.
func (p *TransportPageScripts) HideIndicator(ctx context.Context) error {
	return p.evaluate(ctx, `window.__pagepilot && window.__pagepilot.hideIndicator && window.__pagepilot.hideIndicator()`, nil)
}

// ShowIndicator restores the on-page automation indicator.
func (p *TransportPageScripts) ShowIndicator(ctx context.Context) error {
	return p.evaluate(ctx, `window.__pagepilot && window.__pagepilot.showIndicator && window.__pagepilot.showIndicator()`, nil)
}

// ViewportMetrics reads viewport size and device pixel ratio.
func (p *TransportPageScripts) ViewportMetrics(ctx context.Context) (ViewportMetrics, error) {
	var m ViewportMetrics
	err := p.evaluate(ctx, `({width: window.innerWidth, height: window.innerHeight, devicePixelRatio: window.devicePixelRatio})`, &m)
	if err != nil {
		return ViewportMetrics{}, err
	}
	if m.Width <= 0 || m.Height <= 0 {
		return ViewportMetrics{}, fmt.Errorf("viewport metrics unavailable")
	}
	if m.DevicePixelRatio <= 0 {
		m.DevicePixelRatio = 1
	}
	return m, nil
}

// AccessibilitySnapshot calls the injected extraction function.
func (p *TransportPageScripts) AccessibilitySnapshot(ctx context.Context) (string, error) {
	var snapshot string
	err := p.evaluate(ctx, `window.__pagepilot.accessibilitySnapshot()`, &snapshot)
	if err != nil {
		return "", fmt.Errorf("accessibility extraction failed: %w", err)
	}
	return snapshot, nil
}

// ResolveElement resolves a page element reference.
func (p *TransportPageScripts) ResolveElement(ctx context.Context, ref string) (*ResolvedElement, error) {
	var resolved *ResolvedElement
	expr := fmt.Sprintf(`window.__pagepilot.resolveElement(%q)`, ref)
	if err := p.evaluate(ctx, expr, &resolved); err != nil {
		return nil, err
	}
	if resolved == nil || resolved.Ref == "" {
		return nil, ErrElementNotFound
	}
	return resolved, nil
}

// SetFormValue asks the page script to synthesize a native value change.
func (p *TransportPageScripts) SetFormValue(ctx context.Context, ref, value string) error {
	expr := fmt.Sprintf(`window.__pagepilot.setFormValue(%q, %q)`, ref, value)
	var ok bool
	if err := p.evaluate(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return ErrElementNotFound
	}
	return nil
}

// ScrollPosition reads the window scroll offsets.
func (p *TransportPageScripts) ScrollPosition(ctx context.Context) (float64, float64, error) {
	var pos struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := p.evaluate(ctx, `({x: window.scrollX, y: window.scrollY})`, &pos); err != nil {
		return 0, 0, err
	}
	return pos.X, pos.Y, nil
}

// OuterHTML returns the serialized document.
func (p *TransportPageScripts) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := p.evaluate(ctx, `document.documentElement.outerHTML`, &html); err != nil {
		return "", err
	}
	return html, nil
}

// DocumentContent re-fetches the current document and returns its bytes
// base64-encoded. The fetch runs in page context so cookies and session
// state apply.
func (p *TransportPageScripts) DocumentContent(ctx context.Context) (string, error) {
	const expr = `fetch(location.href)
		.then(r => r.arrayBuffer())
		.then(buf => {
			let binary = '';
			const bytes = new Uint8Array(buf);
			for (let i = 0; i < bytes.length; i++) binary += String.fromCharCode(bytes[i]);
			return btoa(binary);
		})`
	var data string
	if err := p.evaluateWith(ctx, expr, true, &data); err != nil {
		return "", err
	}
	return data, nil
}

// ScrollElementAt scrolls the nearest scrollable ancestor of the point.
func (p *TransportPageScripts) ScrollElementAt(ctx context.Context, x, y, deltaX, deltaY float64) error {
	expr := fmt.Sprintf(`(function() {
		let el = document.elementFromPoint(%g, %g);
		while (el && el !== document.documentElement) {
			const style = getComputedStyle(el);
			const scrollable = (style.overflowY === 'auto' || style.overflowY === 'scroll') && el.scrollHeight > el.clientHeight;
			if (scrollable) break;
			el = el.parentElement;
		}
		(el || window).scrollBy(%g, %g);
		return true;
	})()`, x, y, deltaX, deltaY)
	return p.evaluate(ctx, expr, nil)
}
