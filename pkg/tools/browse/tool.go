// Package browse implements the browser capabilities exposed to the model:
// navigate, read_page, find, form_input, computer, and get_page_text.
//
// Every tool follows the same contract: resolve the active surface's URL,
// check the permission gate (except pure read-only waits), and either
// execute, return an error result, or signal that a user prompt is needed.
// Tools convert their own failures into error results; they never abort
// sibling tools queued in the same turn.
package browse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pagepilot/pagepilot/pkg/browser"
	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/netcategory"
	"github.com/pagepilot/pagepilot/pkg/permission"
	"github.com/pagepilot/pagepilot/pkg/types"
)

// Env holds the collaborators shared by all tools for one agent session.
type Env struct {
	Session    *browser.Session
	Gate       *permission.Gate
	Categories *netcategory.Client

	// Finder runs the constrained element-matching model call for find.
	Finder llm.Provider

	// MaxPageText caps extracted page text length.
	MaxPageText int

	// snapshotHost is the origin active when the last page snapshot was
	// taken; element references are only valid against it.
	mu           sync.Mutex
	snapshotHost string
}

// NewEnv creates a tool environment.
func NewEnv(session *browser.Session, gate *permission.Gate, categories *netcategory.Client, finder llm.Provider) *Env {
	return &Env{
		Session:     session,
		Gate:        gate,
		Categories:  categories,
		Finder:      finder,
		MaxPageText: 50000,
	}
}

// RecordSnapshotHost remembers the origin a page snapshot was taken on.
func (e *Env) RecordSnapshotHost(host string) {
	e.mu.Lock()
	e.snapshotHost = host
	e.mu.Unlock()
}

// SnapshotHost returns the origin of the last page snapshot.
func (e *Env) SnapshotHost() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotHost
}

// Invocation is one model-issued tool call.
type Invocation struct {
	ID    string
	Input json.RawMessage
}

// PermissionRequest signals that execution is suspended pending a user
// decision. It carries a tool-specific action preview for the consent
// prompt: a screenshot for pointer actions, the literal text for typing,
// nothing for read-only tools.
type PermissionRequest struct {
	Tool         string
	URL          string
	Host         string
	InvocationID string
	PreviewText  string
	PreviewImage *types.ImageBlock
}

// Result is the outcome of one tool execution. Exactly one of Err,
// Permission, or the output fields is meaningful.
type Result struct {
	Output     string
	Image      *types.ImageBlock
	Err        error
	Permission *PermissionRequest
}

// IsError reports whether the result is an error.
func (r *Result) IsError() bool { return r.Err != nil }

// NeedsPermission reports whether execution is suspended on a prompt.
func (r *Result) NeedsPermission() bool { return r.Permission != nil }

// Tool is one model-facing browser capability.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Execute(ctx context.Context, env *Env, inv *Invocation) *Result
}

// textResult builds a successful text result.
func textResult(format string, args ...interface{}) *Result {
	return &Result{Output: fmt.Sprintf(format, args...)}
}

// errResult builds an error result.
func errResult(format string, args ...interface{}) *Result {
	return &Result{Err: fmt.Errorf(format, args...)}
}

// validationError builds an error result for malformed tool input.
func validationError(tool string, err error) *Result {
	return &Result{Err: fmt.Errorf("invalid %s input: %w", tool, err)}
}

// securityViolation builds the error result for an origin change detected
// mid-action. Never retried: silently continuing could act on the wrong site.
func securityViolation(was, is string) *Result {
	return &Result{Err: fmt.Errorf("security violation: page origin changed from %s to %s since the last snapshot; take a new screenshot or read the page again before acting", was, is)}
}

// decodeInput unmarshals tool input strictly.
func decodeInput(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	return json.Unmarshal(raw, out)
}

// checkGate runs the permission check for an action on the surface's current
// URL. It returns nil when the action may proceed, or a Result carrying
// either the denial error or a PermissionRequest with the given preview.
// The preview builder runs only when a prompt is actually raised, so
// allowed and denied invocations never touch the page for preview material.
func checkGate(ctx context.Context, env *Env, toolName string, inv *Invocation, preview func() (string, *types.ImageBlock)) *Result {
	url, err := env.Session.URL(ctx)
	if err != nil {
		return errResult("failed to resolve current page URL: %v", err)
	}

	decision, err := env.Gate.CheckPermission(url, inv.ID)
	if err != nil {
		return errResult("permission check failed: %v", err)
	}

	switch {
	case decision.Denied():
		return errResult("permission denied for %s", url)
	case decision.NeedsPrompt():
		host, _ := permission.HostFromURL(url)
		var previewText string
		var previewImage *types.ImageBlock
		if preview != nil {
			previewText, previewImage = preview()
		}
		return &Result{Permission: &PermissionRequest{
			Tool:         toolName,
			URL:          url,
			Host:         host,
			InvocationID: inv.ID,
			PreviewText:  previewText,
			PreviewImage: previewImage,
		}}
	}
	return nil
}

// guardOrigin applies the domain-change guard: element references and
// screenshot coordinates are only valid against the origin they were
// captured on.
func guardOrigin(ctx context.Context, env *Env) *Result {
	expected := env.SnapshotHost()
	if expected == "" {
		return nil
	}
	url, err := env.Session.URL(ctx)
	if err != nil {
		return errResult("failed to resolve current page URL: %v", err)
	}
	host, err := permission.HostFromURL(url)
	if err != nil {
		return errResult("failed to parse current page URL: %v", err)
	}
	if host != expected {
		return securityViolation(expected, host)
	}
	return nil
}

// baseSchema builds a JSON schema object for a tool.
func baseSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
