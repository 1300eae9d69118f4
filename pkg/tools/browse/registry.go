package browse

import (
	"context"

	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/logging"
)

var toolDebugLog *logging.Logger

func init() {
	toolDebugLog, _ = logging.NewLogger("tools")
}

// Registry holds the browser tools and dispatches invocations to them.
type Registry struct {
	env    *Env
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry creates a registry with the standard six tools.
func NewRegistry(env *Env) *Registry {
	r := &Registry{
		env:    env,
		byName: make(map[string]Tool),
	}
	for _, t := range []Tool{
		NewNavigateTool(),
		NewReadPageTool(),
		NewFindTool(),
		NewFormInputTool(),
		NewComputerTool(),
		NewGetPageTextTool(),
	} {
		r.register(t)
	}
	return r
}

func (r *Registry) register(t Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name()] = t
}

// Definitions returns the model-facing capability descriptors, in
// registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}
	return defs
}

// Execute dispatches one invocation. Unknown tool names come back as error
// results, never panics: the model chose the name, not the user.
func (r *Registry) Execute(ctx context.Context, name string, inv *Invocation) *Result {
	tool, ok := r.byName[name]
	if !ok {
		return errResult("unknown tool %q", name)
	}

	toolDebugLog.Debugf("executing %s invocation=%s", name, inv.ID)
	result := tool.Execute(ctx, r.env, inv)
	switch {
	case result.NeedsPermission():
		toolDebugLog.Infof("%s suspended on permission for %s", name, result.Permission.URL)
	case result.IsError():
		toolDebugLog.Warnf("%s failed: %v", name, result.Err)
	}
	return result
}

// Env returns the shared tool environment.
func (r *Registry) Env() *Env {
	return r.env
}

// Names returns the registered tool names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}
