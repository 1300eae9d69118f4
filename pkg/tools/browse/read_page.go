package browse

import (
	"context"

	"github.com/pagepilot/pagepilot/pkg/permission"
)

// ReadPageTool extracts the accessibility snapshot of the current page:
// interactive elements with stable references the model can act on later.
type ReadPageTool struct{}

// NewReadPageTool creates the read_page tool.
func NewReadPageTool() *ReadPageTool { return &ReadPageTool{} }

func (t *ReadPageTool) Name() string { return "read_page" }

func (t *ReadPageTool) Description() string {
	return "Read the current page's accessibility snapshot: visible elements with references usable in form_input and find results."
}

func (t *ReadPageTool) Schema() map[string]interface{} {
	return baseSchema(map[string]interface{}{}, nil)
}

func (t *ReadPageTool) Execute(ctx context.Context, env *Env, inv *Invocation) *Result {
	// Read-only: no action preview needed on the consent prompt
	if blocked := checkGate(ctx, env, t.Name(), inv, nil); blocked != nil {
		return blocked
	}

	snapshot, err := env.Session.Scripts().AccessibilitySnapshot(ctx)
	if err != nil {
		return errResult("failed to read page: %v", err)
	}
	if snapshot == "" {
		return textResult("The page has no readable content.")
	}

	if url, err := env.Session.URL(ctx); err == nil {
		if host, err := permission.HostFromURL(url); err == nil {
			env.RecordSnapshotHost(host)
		}
	}

	return &Result{Output: snapshot}
}
