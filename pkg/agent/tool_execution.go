package agent

import (
	"context"
	"encoding/json"

	"github.com/pagepilot/pagepilot/pkg/permission"
	"github.com/pagepilot/pagepilot/pkg/tools/browse"
	"github.com/pagepilot/pagepilot/pkg/types"
)

// executeToolUses runs tool invocations strictly sequentially: later tools
// may depend on page state left by earlier ones. A cancellation observed
// mid-batch marks the remaining invocations as cancelled instead of
// running them.
func (s *Session) executeToolUses(ctx context.Context, uses []*types.ToolUseBlock) []types.ContentBlock {
	results := make([]types.ContentBlock, 0, len(uses))
	for _, use := range uses {
		if ctx.Err() != nil {
			results = append(results, toolResult(use.ID, "cancelled by user", nil, true))
			continue
		}
		results = append(results, s.executeOne(ctx, use))
	}
	return results
}

// executeOne runs a single invocation, looping through permission prompts
// until the tool settles: each PermissionRequired suspends execution until
// the user decides, and an allow re-invokes the same tool call.
func (s *Session) executeOne(ctx context.Context, use *types.ToolUseBlock) types.ContentBlock {
	s.emitEvent(types.NewToolCallEvent(use.Name, decodeToolInput(use.Input)))
	agentDebugLog.Infof("executing tool %s (%s)", use.Name, use.ID)

	inv := &browse.Invocation{ID: use.ID, Input: use.Input}
	for {
		result := s.registry.Execute(ctx, use.Name, inv)

		if result.NeedsPermission() {
			allowed := s.awaitPermission(ctx, result.Permission)
			s.emitEvent(types.NewPermissionResolvedEvent(use.ID, use.Name, allowed))
			if !allowed {
				err := permissionDeniedError(result.Permission)
				s.emitEvent(types.NewToolResultErrorEvent(use.Name, err))
				return toolResult(use.ID, err.Error(), nil, true)
			}
			continue
		}

		if result.IsError() {
			s.emitEvent(types.NewToolResultErrorEvent(use.Name, result.Err))
			return toolResult(use.ID, result.Err.Error(), nil, true)
		}

		s.emitEvent(types.NewToolResultEvent(use.Name, result.Output))
		return toolResult(use.ID, result.Output, result.Image, false)
	}
}

// awaitPermission emits a permission request event and blocks until the
// user decides or the turn is cancelled. The decision is applied to the
// gate before reporting: allows become grants scoped per the choice,
// always-denies persist, once-denies do not.
func (s *Session) awaitPermission(ctx context.Context, req *browse.PermissionRequest) bool {
	ch := make(chan types.PermissionChoice, 1)
	s.promptMu.Lock()
	s.prompts[req.InvocationID] = ch
	s.promptMu.Unlock()
	defer func() {
		s.promptMu.Lock()
		delete(s.prompts, req.InvocationID)
		s.promptMu.Unlock()
	}()

	info := &types.PermissionRequestInfo{
		InvocationID: req.InvocationID,
		ToolName:     req.Tool,
		URL:          req.URL,
		Host:         req.Host,
		PreviewText:  req.PreviewText,
	}
	if req.PreviewImage != nil {
		info.PreviewImage = req.PreviewImage.Data
	}
	s.emitEvent(types.NewPermissionRequestEvent(info))

	var choice types.PermissionChoice
	select {
	case choice = <-ch:
	case <-ctx.Done():
		// Cancellation resolves the prompt as a one-time denial
		choice = types.PermissionDenyOnce
	}

	scope := permission.OriginScope(req.Host)
	switch choice {
	case types.PermissionAllowOnce:
		if _, err := s.gate.Grant(scope, permission.DurationOnce, req.InvocationID); err != nil {
			agentDebugLog.Warnf("failed to record once-grant: %v", err)
			return false
		}
		return true

	case types.PermissionAllowAlways:
		if _, err := s.gate.Grant(scope, permission.DurationAlways, ""); err != nil {
			agentDebugLog.Warnf("failed to record grant: %v", err)
			return false
		}
		return true

	case types.PermissionDenyAlways:
		if _, err := s.gate.Deny(scope, permission.DurationAlways, ""); err != nil {
			agentDebugLog.Warnf("failed to record denial: %v", err)
		}
		return false

	default:
		if _, err := s.gate.Deny(scope, permission.DurationOnce, req.InvocationID); err != nil {
			agentDebugLog.Warnf("failed to record once-denial: %v", err)
		}
		return false
	}
}

// resolvePermission routes a user decision to the suspended tool waiting
// on it. Unknown invocation IDs are ignored: the prompt may have already
// been resolved by cancellation.
func (s *Session) resolvePermission(decision *types.PermissionDecision) {
	s.promptMu.Lock()
	ch, ok := s.prompts[decision.InvocationID]
	s.promptMu.Unlock()
	if !ok {
		agentDebugLog.Warnf("permission decision for unknown invocation %s", decision.InvocationID)
		return
	}
	select {
	case ch <- decision.Choice:
	default:
	}
}

func permissionDeniedError(req *browse.PermissionRequest) error {
	return &permissionDenied{host: req.Host}
}

type permissionDenied struct {
	host string
}

func (e *permissionDenied) Error() string {
	return "permission denied by user for " + e.host
}

func toolResult(toolUseID, content string, image *types.ImageBlock, isError bool) types.ContentBlock {
	return types.ToolResultContentBlock(types.ToolResultBlock{
		ToolUseID: toolUseID,
		Content:   content,
		Image:     image,
		IsError:   isError,
	})
}

func decodeToolInput(raw json.RawMessage) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
