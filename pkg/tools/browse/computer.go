package browse

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pagepilot/pagepilot/pkg/browser"
	"github.com/pagepilot/pagepilot/pkg/permission"
	"github.com/pagepilot/pagepilot/pkg/types"
)

const (
	// maxWait caps the wait action.
	maxWait = 30 * time.Second

	// scrollTimeout bounds the low-level wheel path before falling back
	// to an in-page scroll.
	scrollTimeout = 5 * time.Second

	// scrollEffectiveThreshold is the minimum movement for the wheel
	// path to count as having worked.
	scrollEffectiveThreshold = 5.0
)

// ComputerTool is the composite action dispatcher: clicks, typing, key
// chords, scrolling, dragging, waiting, and screenshots.
type ComputerTool struct{}

// NewComputerTool creates the computer tool.
func NewComputerTool() *ComputerTool { return &ComputerTool{} }

func (t *ComputerTool) Name() string { return "computer" }

func (t *ComputerTool) Description() string {
	return "Interact with the page: left_click, right_click, double_click, triple_click, type, key, scroll, left_click_drag, wait, screenshot. Coordinates refer to the most recent screenshot."
}

func (t *ComputerTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{
		"action": map[string]interface{}{
			"type": "string",
			"enum": []string{
				"left_click", "right_click", "double_click", "triple_click",
				"type", "key", "scroll", "left_click_drag", "wait", "screenshot",
			},
			"description": "The action to perform",
		},
		"coordinate": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "number"},
			"description": "[x, y] position in screenshot pixels, for pointer actions",
		},
		"text": map[string]interface{}{
			"type":        "string",
			"description": "Text to type (for type) or key chord like 'ctrl+a' (for key)",
		},
		"scroll_direction": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"up", "down", "left", "right"},
			"description": "Direction for scroll",
		},
		"scroll_amount": map[string]interface{}{
			"type":        "number",
			"description": "Scroll distance in pixels (default 400)",
		},
		"start_coordinate": map[string]interface{}{
			"type":        "array",
			"items":       map[string]interface{}{"type": "number"},
			"description": "[x, y] drag start position, for left_click_drag",
		},
		"duration": map[string]interface{}{
			"type":        "number",
			"description": "Seconds to wait (for wait, max 30)",
		},
	}, []string{"action"})
}

type computerInput struct {
	Action          string    `json:"action"`
	Coordinate      []float64 `json:"coordinate"`
	StartCoordinate []float64 `json:"start_coordinate"`
	Text            string    `json:"text"`
	ScrollDirection string    `json:"scroll_direction"`
	ScrollAmount    float64   `json:"scroll_amount"`
	Duration        float64   `json:"duration"`
}

func (t *ComputerTool) Execute(ctx context.Context, env *Env, inv *Invocation) *Result {
	var input computerInput
	if err := decodeInput(inv.Input, &input); err != nil {
		return validationError(t.Name(), err)
	}

	// wait is a pure time delay: no page contact, no permission check
	if input.Action == "wait" {
		return t.wait(ctx, input.Duration)
	}

	// Pointer and keyboard actions act on coordinates captured against a
	// specific origin; refuse if the surface moved since.
	if input.Action != "screenshot" {
		if blocked := guardOrigin(ctx, env); blocked != nil {
			return blocked
		}
	}

	if blocked := checkGate(ctx, env, t.Name(), inv, func() (string, *types.ImageBlock) {
		return t.preview(ctx, env, input)
	}); blocked != nil {
		return blocked
	}

	switch input.Action {
	case "left_click":
		return t.click(ctx, env, input, browser.ButtonLeft, 1)
	case "right_click":
		return t.click(ctx, env, input, browser.ButtonRight, 1)
	case "double_click":
		return t.click(ctx, env, input, browser.ButtonLeft, 2)
	case "triple_click":
		return t.click(ctx, env, input, browser.ButtonLeft, 3)
	case "type":
		if input.Text == "" {
			return validationError(t.Name(), fmt.Errorf("type requires text"))
		}
		if err := env.Session.TypeText(ctx, input.Text); err != nil {
			return errResult("typing failed: %v", err)
		}
		return textResult("Typed %d characters", len([]rune(input.Text)))
	case "key":
		if input.Text == "" {
			return validationError(t.Name(), fmt.Errorf("key requires a key chord in text"))
		}
		if err := env.Session.PressKeyChord(ctx, input.Text); err != nil {
			return errResult("key press failed: %v", err)
		}
		return textResult("Pressed %s", input.Text)
	case "scroll":
		return t.scroll(ctx, env, input)
	case "left_click_drag":
		return t.drag(ctx, env, input)
	case "screenshot":
		return t.screenshot(ctx, env)
	default:
		return validationError(t.Name(), fmt.Errorf("unknown action %q", input.Action))
	}
}

// preview builds the consent-prompt preview: a screenshot for pointer
// actions, the literal text for typing, nothing otherwise.
func (t *ComputerTool) preview(ctx context.Context, env *Env, input computerInput) (string, *types.ImageBlock) {
	switch input.Action {
	case "type":
		return fmt.Sprintf("Type: %s", input.Text), nil
	case "key":
		return fmt.Sprintf("Press: %s", input.Text), nil
	case "left_click", "right_click", "double_click", "triple_click", "left_click_drag", "scroll":
		shot, err := env.Session.Screenshot(ctx)
		if err != nil {
			return fmt.Sprintf("Perform %s", input.Action), nil
		}
		return fmt.Sprintf("Perform %s", input.Action), &types.ImageBlock{MediaType: shot.MediaType, Data: shot.Data}
	}
	return "", nil
}

func (t *ComputerTool) wait(ctx context.Context, seconds float64) *Result {
	if seconds <= 0 {
		return validationError(t.Name(), fmt.Errorf("wait requires a positive duration"))
	}
	d := time.Duration(seconds * float64(time.Second))
	if d > maxWait {
		d = maxWait
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return errResult("wait cancelled")
	}
	return textResult("Waited %.1f seconds", d.Seconds())
}

// point scales a model coordinate pair to viewport pixels.
func point(env *Env, coord []float64) (float64, float64, error) {
	if len(coord) != 2 {
		return 0, 0, fmt.Errorf("coordinate must be [x, y]")
	}
	x, y := env.Session.ScalePoint(coord[0], coord[1])
	return x, y, nil
}

func (t *ComputerTool) click(ctx context.Context, env *Env, input computerInput, button browser.MouseButton, count int) *Result {
	x, y, err := point(env, input.Coordinate)
	if err != nil {
		return validationError(t.Name(), err)
	}
	if err := env.Session.Click(ctx, x, y, button, count); err != nil {
		return errResult("click failed: %v", err)
	}
	return textResult("Clicked at %.0f,%.0f", x, y)
}

// scroll tries the low-level wheel path first, bounded by a timeout and an
// effectiveness check, then falls back to an in-page scroll against the
// nearest scrollable ancestor of the target point.
func (t *ComputerTool) scroll(ctx context.Context, env *Env, input computerInput) *Result {
	x, y, err := point(env, input.Coordinate)
	if err != nil {
		return validationError(t.Name(), err)
	}

	amount := input.ScrollAmount
	if amount <= 0 {
		amount = 400
	}
	var deltaX, deltaY float64
	switch input.ScrollDirection {
	case "up":
		deltaY = -amount
	case "down", "":
		deltaY = amount
	case "left":
		deltaX = -amount
	case "right":
		deltaX = amount
	default:
		return validationError(t.Name(), fmt.Errorf("unknown scroll direction %q", input.ScrollDirection))
	}

	scripts := env.Session.Scripts()
	beforeX, beforeY, posErr := scripts.ScrollPosition(ctx)

	wheelCtx, cancel := context.WithTimeout(ctx, scrollTimeout)
	wheelErr := env.Session.ScrollWheel(wheelCtx, x, y, deltaX, deltaY)
	cancel()

	if wheelErr == nil && posErr == nil {
		// Give the page a moment to apply the scroll before measuring
		time.Sleep(100 * time.Millisecond)
		afterX, afterY, err := scripts.ScrollPosition(ctx)
		if err == nil {
			moved := math.Abs(afterX-beforeX) + math.Abs(afterY-beforeY)
			if moved > scrollEffectiveThreshold {
				return textResult("Scrolled %s %.0f pixels", directionName(deltaX, deltaY), amount)
			}
		}
	}

	// Wheel path timed out or did not move anything; scroll in page script
	if err := scripts.ScrollElementAt(ctx, x, y, deltaX, deltaY); err != nil {
		return errResult("scroll failed: %v", err)
	}
	return textResult("Scrolled %s %.0f pixels (element scroll)", directionName(deltaX, deltaY), amount)
}

func directionName(deltaX, deltaY float64) string {
	switch {
	case deltaY > 0:
		return "down"
	case deltaY < 0:
		return "up"
	case deltaX > 0:
		return "right"
	default:
		return "left"
	}
}

// drag presses at the start point, moves in steps, and releases at the end.
func (t *ComputerTool) drag(ctx context.Context, env *Env, input computerInput) *Result {
	startX, startY, err := point(env, input.StartCoordinate)
	if err != nil {
		return validationError(t.Name(), fmt.Errorf("start_coordinate: %w", err))
	}
	endX, endY, err := point(env, input.Coordinate)
	if err != nil {
		return validationError(t.Name(), err)
	}

	session := env.Session
	if err := session.DispatchMouseEvent(ctx, browser.MouseEvent{Kind: browser.MouseMoved, X: startX, Y: startY}); err != nil {
		return errResult("drag failed: %v", err)
	}
	press := browser.MouseEvent{Kind: browser.MousePressed, X: startX, Y: startY, Button: browser.ButtonLeft, Buttons: 1, ClickCount: 1}
	if err := session.DispatchMouseEvent(ctx, press); err != nil {
		return errResult("drag failed: %v", err)
	}

	const steps = 10
	for i := 1; i <= steps; i++ {
		frac := float64(i) / steps
		move := browser.MouseEvent{
			Kind: browser.MouseMoved,
			X:    startX + (endX-startX)*frac,
			Y:    startY + (endY-startY)*frac,
		}
		if err := session.DispatchMouseEvent(ctx, move); err != nil {
			return errResult("drag failed: %v", err)
		}
	}

	release := browser.MouseEvent{Kind: browser.MouseReleased, X: endX, Y: endY, Button: browser.ButtonLeft, ClickCount: 1}
	if err := session.DispatchMouseEvent(ctx, release); err != nil {
		return errResult("drag failed: %v", err)
	}
	return textResult("Dragged from %.0f,%.0f to %.0f,%.0f", startX, startY, endX, endY)
}

func (t *ComputerTool) screenshot(ctx context.Context, env *Env) *Result {
	shot, err := env.Session.Screenshot(ctx)
	if err != nil {
		return errResult("screenshot failed: %v", err)
	}

	if url, err := env.Session.URL(ctx); err == nil {
		if host, hostErr := permission.HostFromURL(url); hostErr == nil {
			env.RecordSnapshotHost(host)
		}
	}

	return &Result{
		Output: fmt.Sprintf("Screenshot captured (%dx%d)", shot.Width, shot.Height),
		Image:  &types.ImageBlock{MediaType: shot.MediaType, Data: shot.Data},
	}
}
