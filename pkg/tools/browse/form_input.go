package browse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pagepilot/pagepilot/pkg/browser"
	"github.com/pagepilot/pagepilot/pkg/types"
)

// FormInputTool sets the value of a form element located by a prior
// read_page or find reference, synthesizing the native value-change
// sequence for the element's kind.
type FormInputTool struct{}

// NewFormInputTool creates the form_input tool.
func NewFormInputTool() *FormInputTool { return &FormInputTool{} }

func (t *FormInputTool) Name() string { return "form_input" }

func (t *FormInputTool) Description() string {
	return "Set the value of a form element (text field, select, checkbox, radio, date, range, number) identified by an element reference from read_page or find."
}

func (t *FormInputTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{
		"ref": map[string]interface{}{
			"type":        "string",
			"description": "Element reference from a previous read_page or find result",
		},
		"value": map[string]interface{}{
			"type":        "string",
			"description": "The value to set. For checkboxes use 'true'/'false'; for selects use the visible option text.",
		},
	}, []string{"ref", "value"})
}

type formInputInput struct {
	Ref   string `json:"ref"`
	Value string `json:"value"`
}

func (t *FormInputTool) Execute(ctx context.Context, env *Env, inv *Invocation) *Result {
	var input formInputInput
	if err := decodeInput(inv.Input, &input); err != nil {
		return validationError(t.Name(), err)
	}
	if input.Ref == "" {
		return validationError(t.Name(), fmt.Errorf("ref is required"))
	}

	// References were captured against a specific origin; refuse to act
	// if the surface has moved since.
	if blocked := guardOrigin(ctx, env); blocked != nil {
		return blocked
	}

	if blocked := checkGate(ctx, env, t.Name(), inv, func() (string, *types.ImageBlock) {
		return fmt.Sprintf("Set form field %s to %q", input.Ref, input.Value), nil
	}); blocked != nil {
		return blocked
	}

	element, err := env.Session.Scripts().ResolveElement(ctx, input.Ref)
	if err != nil {
		if errors.Is(err, browser.ErrElementNotFound) {
			return errResult("element %s no longer exists on the page; read the page again to get fresh references", input.Ref)
		}
		return errResult("failed to resolve element %s: %v", input.Ref, err)
	}

	if err := t.setValue(ctx, env, element, input.Value); err != nil {
		return errResult("failed to set value on %s: %v", input.Ref, err)
	}

	return textResult("Set %s (%s) to %q", input.Ref, element.Kind, input.Value)
}

// setValue branches on element kind and synthesizes the appropriate native
// value-change sequence.
func (t *FormInputTool) setValue(ctx context.Context, env *Env, element *browser.ResolvedElement, value string) error {
	scripts := env.Session.Scripts()

	switch element.Kind {
	case browser.ElementSelect:
		if len(element.Options) > 0 && !containsFold(element.Options, value) {
			return fmt.Errorf("option %q not found; available options: %s", value, strings.Join(element.Options, ", "))
		}
		return scripts.SetFormValue(ctx, element.Ref, value)

	case browser.ElementCheckbox, browser.ElementRadio:
		checked, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return fmt.Errorf("expected 'true' or 'false' for a %s, got %q", element.Kind, value)
		}
		return scripts.SetFormValue(ctx, element.Ref, strconv.FormatBool(checked))

	case browser.ElementRange, browser.ElementNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected a numeric value for a %s field, got %q", element.Kind, value)
		}
		return scripts.SetFormValue(ctx, element.Ref, value)

	case browser.ElementDate:
		return scripts.SetFormValue(ctx, element.Ref, value)

	default:
		// Free text: click to focus, clear, then type so page listeners
		// see real key events.
		x, y := element.X+element.Width/2, element.Y+element.Height/2
		if err := env.Session.Click(ctx, x, y, browser.ButtonLeft, 1); err != nil {
			return err
		}
		if err := t.clearField(ctx, env); err != nil {
			return err
		}
		return env.Session.TypeText(ctx, value)
	}
}

// clearField selects the field's content and deletes it.
func (t *FormInputTool) clearField(ctx context.Context, env *Env) error {
	selectAll := "ctrl+a"
	if env.Session.IsMac() {
		selectAll = "cmd+a"
	}
	if err := env.Session.PressKeyChord(ctx, selectAll); err != nil {
		return err
	}
	return env.Session.PressKeyChord(ctx, "backspace")
}

func containsFold(options []string, value string) bool {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}
