// Package types defines the shared data model for PagePilot: conversation
// messages and their content blocks, token usage, model metadata, and the
// event stream emitted by the agent loop.
//
// Messages follow the content-block shapes of the model provider: a message
// is an ordered list of text, image, tool_use, and tool_result blocks.
package types

import (
	"encoding/json"
	"strings"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeImage      BlockType = "image"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
)

// ImageBlock holds image content as base64 data plus its media type.
type ImageBlock struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ToolUseBlock is one model-issued request to execute a named capability.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResultBlock carries the outcome of a tool invocation back to the model.
type ToolResultBlock struct {
	ToolUseID string      `json:"tool_use_id"`
	Content   string      `json:"content,omitempty"`
	Image     *ImageBlock `json:"image,omitempty"`
	IsError   bool        `json:"is_error,omitempty"`
}

// ContentBlock is a tagged union over the four block kinds. Exactly one of
// the pointer fields is set for non-text blocks; Text is used for text blocks.
type ContentBlock struct {
	Type       BlockType        `json:"type"`
	Text       string           `json:"text,omitempty"`
	Image      *ImageBlock      `json:"image,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// ImageContentBlock creates an image content block from base64 data.
func ImageContentBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockTypeImage, Image: &ImageBlock{MediaType: mediaType, Data: data}}
}

// ToolUseContentBlock creates a tool_use content block.
func ToolUseContentBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockTypeToolUse, ToolUse: &ToolUseBlock{ID: id, Name: name, Input: input}}
}

// ToolResultContentBlock creates a tool_result content block.
func ToolResultContentBlock(result ToolResultBlock) ContentBlock {
	r := result
	return ContentBlock{Type: BlockTypeToolResult, ToolResult: &r}
}

// Usage holds the provider-reported token counts for one model response.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// Message is one turn of conversation content. Assistant messages accumulate
// streamed text in place until the provider signals completion.
type Message struct {
	Role    MessageRole    `json:"role"`
	Content []ContentBlock `json:"content"`
	Usage   *Usage         `json:"usage,omitempty"`
	TraceID string         `json:"trace_id,omitempty"`
}

// NewUserMessage creates a user message with a single text block.
func NewUserMessage(text string) *Message {
	return &Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// NewAssistantMessage creates an assistant message with a single text block.
func NewAssistantMessage(text string) *Message {
	return &Message{Role: RoleAssistant, Content: []ContentBlock{TextBlock(text)}}
}

// Text returns the concatenated text of all text blocks.
func (m *Message) Text() string {
	var b strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockTypeText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// AppendText appends a streamed text delta, extending the trailing text
// block when one exists so the message grows in place.
func (m *Message) AppendText(delta string) {
	if n := len(m.Content); n > 0 && m.Content[n-1].Type == BlockTypeText {
		m.Content[n-1].Text += delta
		return
	}
	m.Content = append(m.Content, TextBlock(delta))
}

// ToolUses returns all tool_use blocks in order of appearance.
func (m *Message) ToolUses() []*ToolUseBlock {
	var uses []*ToolUseBlock
	for i := range m.Content {
		if m.Content[i].Type == BlockTypeToolUse && m.Content[i].ToolUse != nil {
			uses = append(uses, m.Content[i].ToolUse)
		}
	}
	return uses
}

// HasToolUse reports whether the message contains at least one tool_use block.
func (m *Message) HasToolUse() bool {
	return len(m.ToolUses()) > 0
}

// HasImage reports whether the message contains at least one image block,
// either directly or embedded in a tool result.
func (m *Message) HasImage() bool {
	for _, block := range m.Content {
		if block.Type == BlockTypeImage {
			return true
		}
		if block.Type == BlockTypeToolResult && block.ToolResult != nil && block.ToolResult.Image != nil {
			return true
		}
	}
	return false
}

// ImageBlocks returns the message's image blocks, including images embedded
// in tool results, in order of appearance.
func (m *Message) ImageBlocks() []ContentBlock {
	var images []ContentBlock
	for _, block := range m.Content {
		switch {
		case block.Type == BlockTypeImage:
			images = append(images, block)
		case block.Type == BlockTypeToolResult && block.ToolResult != nil && block.ToolResult.Image != nil:
			images = append(images, ContentBlock{Type: BlockTypeImage, Image: block.ToolResult.Image})
		}
	}
	return images
}

// ModelInfo describes the model behind a provider.
type ModelInfo struct {
	Provider          string
	Name              string
	ContextWindow     int
	MaxOutputTokens   int
	SupportsStreaming bool
	Metadata          map[string]interface{}
}
