package browse

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagepilot/pagepilot/pkg/browser"
	"github.com/pagepilot/pagepilot/pkg/netcategory"
	"github.com/pagepilot/pagepilot/pkg/permission"
)

// NavigateTool navigates the surface to a URL, or through history with the
// literal tokens "back" and "forward".
type NavigateTool struct{}

// NewNavigateTool creates the navigate tool.
func NewNavigateTool() *NavigateTool { return &NavigateTool{} }

func (t *NavigateTool) Name() string { return "navigate" }

func (t *NavigateTool) Description() string {
	return "Navigate the browser to a URL, or go 'back' or 'forward' in history. URLs without a scheme are treated as https."
}

func (t *NavigateTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{
		"url": map[string]interface{}{
			"type":        "string",
			"description": "The URL to navigate to, or the literal token 'back' or 'forward'",
		},
	}, []string{"url"})
}

type navigateInput struct {
	URL string `json:"url"`
}

func (t *NavigateTool) Execute(ctx context.Context, env *Env, inv *Invocation) *Result {
	var input navigateInput
	if err := decodeInput(inv.Input, &input); err != nil {
		return validationError(t.Name(), err)
	}
	target := strings.TrimSpace(input.URL)
	if target == "" {
		return validationError(t.Name(), fmt.Errorf("url is required"))
	}

	// History navigation bypasses the gate: browser-native safety applies,
	// and both endpoints were already visited under their own grants.
	switch strings.ToLower(target) {
	case "back":
		return t.history(ctx, env, browser.HistoryBack, "back")
	case "forward":
		return t.history(ctx, env, browser.HistoryForward, "forward")
	}

	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	host, err := permission.HostFromURL(target)
	if err != nil {
		return validationError(t.Name(), err)
	}

	// Category check runs before any permission prompt: a disallowed site
	// is rejected outright, not offered for consent.
	if env.Categories != nil {
		if category := env.Categories.Lookup(ctx, host); category == netcategory.CategoryDisallowed {
			return errResult("navigation to %s is not allowed: the site's category is blocked", host)
		}
	}

	decision, err := env.Gate.CheckPermission(target, inv.ID)
	if err != nil {
		return errResult("permission check failed: %v", err)
	}
	switch {
	case decision.Denied():
		return errResult("permission denied for %s", host)
	case decision.NeedsPrompt():
		return &Result{Permission: &PermissionRequest{
			Tool:         t.Name(),
			URL:          target,
			Host:         host,
			InvocationID: inv.ID,
			PreviewText:  fmt.Sprintf("Navigate to %s", target),
		}}
	}

	if err := env.Session.Navigate(ctx, target); err != nil {
		return errResult("navigation failed: %v", err)
	}
	env.Session.InvalidateScreenshot()
	env.RecordSnapshotHost("")

	return textResult("Navigated to %s", target)
}

// history performs a back/forward navigation and reports the resulting URL.
func (t *NavigateTool) history(ctx context.Context, env *Env, dir browser.HistoryDirection, direction string) *Result {
	if err := env.Session.NavigateHistoryDirection(ctx, dir); err != nil {
		return errResult("history navigation failed: %v", err)
	}
	env.Session.InvalidateScreenshot()
	env.RecordSnapshotHost("")

	url, err := env.Session.URL(ctx)
	if err != nil {
		return textResult("Went %s", direction)
	}
	return textResult("Went %s; current URL is %s", direction, url)
}
