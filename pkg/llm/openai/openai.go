// Package openai provides an OpenAI-compatible model provider implementation.
//
// The provider speaks the chat-completions streaming protocol directly over
// SSE, which gives better compatibility with OpenAI-compatible gateways than
// the SDK's own stream handling. Tool calls arrive as argument deltas and
// are accumulated here so the agent sees each invocation exactly once,
// complete.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"

	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/types"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// defaultContextWindow and defaultMaxOutputTokens are conservative
	// fallbacks when the model is not in the known-models table.
	defaultContextWindow   = 128000
	defaultMaxOutputTokens = 16384
)

// knownModels maps model names to their context window and max output size.
var knownModels = map[string]struct{ window, maxOutput int }{
	"gpt-4o":      {128000, 16384},
	"gpt-4o-mini": {128000, 16384},
	"gpt-4.1":     {1047576, 32768},
	"o3":          {200000, 100000},
}

// Provider implements the llm.Provider interface for OpenAI-compatible APIs.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	modelInfo  *types.ModelInfo
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client, used by tests.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY
// environment variable. If baseURL is not provided via WithBaseURL, the
// OPENAI_BASE_URL environment variable is checked.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      "gpt-4o",
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	window, maxOutput := defaultContextWindow, defaultMaxOutputTokens
	if limits, ok := knownModels[p.model]; ok {
		window, maxOutput = limits.window, limits.maxOutput
	}

	p.modelInfo = &types.ModelInfo{
		Provider:          "openai",
		Name:              p.model,
		ContextWindow:     window,
		MaxOutputTokens:   maxOutput,
		SupportsStreaming: true,
		Metadata:          make(map[string]interface{}),
	}
	if p.baseURL != DefaultBaseURL {
		p.modelInfo.Metadata["base_url"] = p.baseURL
	}

	return p, nil
}

// StreamCompletion sends the request to the API and streams back response
// chunks. The channel is closed when streaming completes or an error occurs.
func (p *Provider) StreamCompletion(ctx context.Context, req *llm.Request) (<-chan *llm.StreamChunk, error) {
	resp, err := p.sendStreamRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go p.processStreamResponse(ctx, resp, chunks)
	return chunks, nil
}

// sendStreamRequest creates and sends the HTTP request for streaming.
func (p *Provider) sendStreamRequest(ctx context.Context, req *llm.Request) (*http.Response, error) {
	reqBody := map[string]interface{}{
		"model":          p.model,
		"messages":       convertMessages(req.System, req.Messages),
		"stream":         true,
		"stream_options": map[string]interface{}{"include_usage": true},
	}
	if len(req.Tools) > 0 {
		reqBody["tools"] = convertTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		reqBody["max_completion_tokens"] = req.MaxTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// sseChunk mirrors the wire shape of one streamed chat-completion chunk.
type sseChunk struct {
	Choices []struct {
		Delta struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens       int `json:"prompt_tokens"`
		CompletionTokens   int `json:"completion_tokens"`
		PromptTokensDetail struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

// pendingToolCall accumulates a tool call across argument deltas.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

// processStreamResponse parses the SSE stream and sends chunks to the channel.
func (p *Provider) processStreamResponse(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	firstChunk := true
	pending := make(map[int]*pendingToolCall)
	pendingOrder := []int{}

	for scanner.Scan() {
		line := scanner.Text()
		if !isValidSSELine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			p.flushToolCalls(ctx, pending, &pendingOrder, chunks)
			sendChunk(ctx, chunks, &llm.StreamChunk{Finished: true})
			return
		}

		var chunk sseChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed chunks silently
		}

		if chunk.Usage != nil {
			cached := chunk.Usage.PromptTokensDetail.CachedTokens
			sendChunk(ctx, chunks, &llm.StreamChunk{Usage: &types.Usage{
				InputTokens:          chunk.Usage.PromptTokens - cached,
				OutputTokens:         chunk.Usage.CompletionTokens,
				CacheReadInputTokens: cached,
			}})
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if firstChunk && choice.Delta.Role != "" {
			sendChunk(ctx, chunks, &llm.StreamChunk{Role: choice.Delta.Role})
			firstChunk = false
		}

		if choice.Delta.Content != "" {
			if !sendChunk(ctx, chunks, &llm.StreamChunk{TextDelta: choice.Delta.Content}) {
				return
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			pc, ok := pending[tc.Index]
			if !ok {
				pc = &pendingToolCall{}
				pending[tc.Index] = pc
				pendingOrder = append(pendingOrder, tc.Index)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason != nil && *choice.FinishReason == "tool_calls" {
			p.flushToolCalls(ctx, pending, &pendingOrder, chunks)
		}
	}

	if err := scanner.Err(); err != nil {
		chunks <- &llm.StreamChunk{Error: fmt.Errorf("stream read error: %w", err)}
		return
	}

	// Stream ended without [DONE]; flush whatever accumulated.
	p.flushToolCalls(ctx, pending, &pendingOrder, chunks)
	sendChunk(ctx, chunks, &llm.StreamChunk{Finished: true})
}

// flushToolCalls emits accumulated tool calls, in arrival order, exactly once.
func (p *Provider) flushToolCalls(ctx context.Context, pending map[int]*pendingToolCall, order *[]int, chunks chan<- *llm.StreamChunk) {
	for _, idx := range *order {
		pc := pending[idx]
		args := pc.args.String()
		if args == "" {
			args = "{}"
		}
		sendChunk(ctx, chunks, &llm.StreamChunk{ToolUse: &types.ToolUseBlock{
			ID:    pc.id,
			Name:  pc.name,
			Input: json.RawMessage(args),
		}})
		delete(pending, idx)
	}
	*order = (*order)[:0]
}

// isValidSSELine checks if a line is a valid SSE data line.
func isValidSSELine(line string) bool {
	return line != "" && !strings.HasPrefix(line, ":") && strings.HasPrefix(line, "data: ")
}

// sendChunk sends a chunk, honoring context cancellation.
func sendChunk(ctx context.Context, chunks chan<- *llm.StreamChunk, chunk *llm.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Complete sends the request and accumulates the streamed response into a
// single assistant message.
func (p *Provider) Complete(ctx context.Context, req *llm.Request) (*types.Message, error) {
	stream, err := p.StreamCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := &types.Message{Role: types.RoleAssistant}
	for chunk := range stream {
		if chunk.IsError() {
			return nil, chunk.Error
		}
		if chunk.TextDelta != "" {
			msg.AppendText(chunk.TextDelta)
		}
		if chunk.ToolUse != nil {
			msg.Content = append(msg.Content, types.ContentBlock{Type: types.BlockTypeToolUse, ToolUse: chunk.ToolUse})
		}
		if chunk.Usage != nil {
			msg.Usage = chunk.Usage
		}
	}
	return msg, nil
}

// GetModelInfo returns information about the model being used.
func (p *Provider) GetModelInfo() *types.ModelInfo {
	return p.modelInfo
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// convertTools converts tool definitions to the chat-completions tool shape.
func convertTools(tools []llm.ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.InputSchema,
			},
		})
	}
	return out
}

// convertMessages converts content-block messages to the chat-completions
// wire shape. Text-only messages go through the SDK helpers; messages with
// images, tool uses, or tool results need the multipart/tool shapes the
// helpers do not cover and are built directly.
func convertMessages(system string, messages []*types.Message) []interface{} {
	out := make([]interface{}, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text()))
		case types.RoleAssistant:
			out = append(out, convertAssistantMessage(msg))
		default:
			out = append(out, convertUserMessage(msg)...)
		}
	}
	return out
}

// convertAssistantMessage builds an assistant message, including tool_calls
// when the message carries tool_use blocks.
func convertAssistantMessage(msg *types.Message) interface{} {
	uses := msg.ToolUses()
	if len(uses) == 0 {
		return openai.AssistantMessage(msg.Text())
	}

	toolCalls := make([]map[string]interface{}, 0, len(uses))
	for _, use := range uses {
		toolCalls = append(toolCalls, map[string]interface{}{
			"id":   use.ID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      use.Name,
				"arguments": string(use.Input),
			},
		})
	}

	m := map[string]interface{}{
		"role":       "assistant",
		"tool_calls": toolCalls,
	}
	if text := msg.Text(); text != "" {
		m["content"] = text
	}
	return m
}

// convertUserMessage builds the wire messages for one user message. Tool
// results become individual "tool" role messages; remaining text and image
// blocks become a single user message, multipart when images are present.
func convertUserMessage(msg *types.Message) []interface{} {
	var out []interface{}
	var parts []map[string]interface{}
	hasImage := false

	for _, block := range msg.Content {
		switch block.Type {
		case types.BlockTypeToolResult:
			out = append(out, convertToolResult(block.ToolResult))
		case types.BlockTypeText:
			parts = append(parts, map[string]interface{}{"type": "text", "text": block.Text})
		case types.BlockTypeImage:
			parts = append(parts, imagePart(block.Image))
			hasImage = true
		}
	}

	if len(parts) == 0 {
		return out
	}
	if !hasImage && len(parts) == 1 {
		return append(out, openai.UserMessage(parts[0]["text"].(string)))
	}
	return append(out, map[string]interface{}{
		"role":    "user",
		"content": parts,
	})
}

// convertToolResult builds a "tool" role message for one tool_result block.
// The chat-completions protocol has no image slot on tool messages, so image
// results are embedded as data-URL image parts.
func convertToolResult(result *types.ToolResultBlock) map[string]interface{} {
	content := result.Content
	if result.IsError && content == "" {
		content = "tool error"
	}
	m := map[string]interface{}{
		"role":         "tool",
		"tool_call_id": result.ToolUseID,
	}
	if result.Image != nil {
		m["content"] = []map[string]interface{}{
			{"type": "text", "text": content},
			imagePart(result.Image),
		}
	} else {
		m["content"] = content
	}
	return m
}

// imagePart builds a data-URL image content part.
func imagePart(img *types.ImageBlock) map[string]interface{} {
	return map[string]interface{}{
		"type": "image_url",
		"image_url": map[string]interface{}{
			"url": fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data),
		},
	}
}
