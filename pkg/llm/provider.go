// Package llm provides abstractions for model provider integration.
//
// Providers handle API communication with the conversational model and
// return simple StreamChunk instances. This keeps providers focused on
// transport concerns without coupling them to agent-level events or
// orchestration: the agent layer converts chunks to events, accumulates the
// open assistant message, and manages conversation state.
package llm

import (
	"context"

	"github.com/pagepilot/pagepilot/pkg/types"
)

// ToolDefinition is the capability descriptor consumed by the model provider.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Request is one model call: the system prompt, the conversation so far, and
// the tools the model may invoke.
type Request struct {
	System    string
	Messages  []*types.Message
	Tools     []ToolDefinition
	MaxTokens int
}

// StreamChunk is one increment of a streaming model response.
//
// Chunk order for a well-formed stream: an optional role chunk first, then
// any number of text deltas and completed tool_use blocks, then a usage
// chunk, then a final chunk with Finished set. Error chunks may appear at
// any point and terminate the stream.
type StreamChunk struct {
	// Role is set on the first chunk of the response.
	Role string

	// TextDelta is a streamed fragment of assistant text.
	TextDelta string

	// ToolUse is a fully accumulated tool invocation. Providers buffer
	// partial tool-call deltas internally and emit each invocation once,
	// complete.
	ToolUse *types.ToolUseBlock

	// Usage carries the provider-reported token counts, when available.
	Usage *types.Usage

	// Finished is set on the final chunk of a successful stream.
	Finished bool

	// Error is set when the stream failed.
	Error error
}

// IsError returns true if this chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}

// Provider defines the interface for model integrations.
type Provider interface {
	// StreamCompletion sends a request to the model and streams back
	// response chunks. The channel is closed when streaming completes or an
	// error occurs; callers should read until it is closed.
	//
	// Returns an error only if streaming cannot be initiated. Stream-time
	// errors are delivered as chunks with Error set.
	StreamCompletion(ctx context.Context, req *Request) (<-chan *StreamChunk, error)

	// Complete sends a request and returns the full assistant message.
	// Convenience wrapper around StreamCompletion for non-streaming calls
	// such as summarization and element finding.
	Complete(ctx context.Context, req *Request) (*types.Message, error)

	// GetModelInfo returns metadata about the model being used, including
	// its context window and maximum output tokens.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string
}
