package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/types"
)

var nowFunc = time.Now

const timeRounding = time.Millisecond

// runTurn alternates model calls with tool execution until the model stops
// requesting tools, the turn cap is hit, or the turn is cancelled.
func (s *Session) runTurn(ctx context.Context) {
	for turn := 0; s.maxTurns == 0 || turn < s.maxTurns; turn++ {
		if ctx.Err() != nil {
			return
		}

		msg, err := s.streamModelResponse(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Provider failure halts the loop; the turn-end event still
			// fires from the caller.
			s.emitEvent(types.NewErrorEvent(err))
			return
		}
		s.appendMessage(msg)

		uses := msg.ToolUses()
		if len(uses) == 0 {
			return
		}

		results := s.executeToolUses(ctx, uses)
		s.appendMessage(&types.Message{Role: types.RoleUser, Content: results})
	}
}

// streamModelResponse sends the conversation to the model and accumulates
// the streamed response into one assistant message.
func (s *Session) streamModelResponse(ctx context.Context) (*types.Message, error) {
	history := s.history()
	info := s.provider.GetModelInfo()

	contextTokens := 0
	if s.tokenizer != nil {
		contextTokens = s.tokenizer.CountMessagesTokens(history)
	}
	s.emitEvent(types.NewAPICallStartEvent("model", contextTokens, info.ContextWindow))
	defer s.emitEvent(types.NewAPICallEndEvent("model"))

	stream, err := s.provider.StreamCompletion(ctx, &llm.Request{
		System:    s.systemPrompt,
		Messages:  history,
		Tools:     s.registry.Definitions(),
		MaxTokens: info.MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start completion: %w", err)
	}

	msg := &types.Message{Role: types.RoleAssistant}
	s.emitEvent(types.NewMessageStartEvent())

	for chunk := range stream {
		switch {
		case chunk.IsError():
			s.emitEvent(types.NewMessageEndEvent())
			return nil, chunk.Error

		case chunk.TextDelta != "":
			msg.AppendText(chunk.TextDelta)
			s.emitEvent(types.NewMessageContentEvent(chunk.TextDelta))

		case chunk.ToolUse != nil:
			msg.Content = append(msg.Content, types.ToolUseContentBlock(
				chunk.ToolUse.ID, chunk.ToolUse.Name, chunk.ToolUse.Input))

		case chunk.Usage != nil:
			msg.Usage = chunk.Usage
			metrics := s.budget.FromUsage(chunk.Usage)
			s.emitEvent(types.NewTokenUsageEvent(metrics.BudgetInfo()))
		}
	}

	s.emitEvent(types.NewMessageEndEvent())
	return msg, nil
}
