// Package tokenizer provides token counting for budget tracking.
//
// Counts are estimates: the exact tokenization depends on the serving model,
// but cl100k_base tracks closely enough for window management. When the
// encoding cannot be loaded (offline first run, since tiktoken fetches its
// BPE ranks), counting falls back to a bytes/4 heuristic.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/pagepilot/pagepilot/pkg/types"
)

// imageTokenEstimate is the flat per-image cost used when estimating
// message sizes. Actual image cost depends on rendered dimensions, which
// are only known at capture time.
const imageTokenEstimate = 1600

// Tokenizer counts tokens using the cl100k_base encoding.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New creates a tokenizer. The returned tokenizer is usable even when the
// encoding fails to load; it degrades to heuristic counting.
func New() *Tokenizer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Tokenizer{}
	}
	return &Tokenizer{encoding: enc}
}

// CountTokens returns the token count for a string.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.encoding == nil {
		return heuristicCount(text)
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// CountMessageTokens estimates the token cost of a single message,
// including a flat estimate for each embedded image.
func (t *Tokenizer) CountMessageTokens(msg *types.Message) int {
	if msg == nil {
		return 0
	}
	total := 0
	for _, block := range msg.Content {
		switch block.Type {
		case types.BlockTypeText:
			total += t.CountTokens(block.Text)
		case types.BlockTypeImage:
			total += imageTokenEstimate
		case types.BlockTypeToolUse:
			if block.ToolUse != nil {
				total += t.CountTokens(block.ToolUse.Name)
				total += t.CountTokens(string(block.ToolUse.Input))
			}
		case types.BlockTypeToolResult:
			if block.ToolResult != nil {
				total += t.CountTokens(block.ToolResult.Content)
				if block.ToolResult.Image != nil {
					total += imageTokenEstimate
				}
			}
		}
	}
	return total
}

// CountMessagesTokens estimates the total token cost of a conversation.
func (t *Tokenizer) CountMessagesTokens(msgs []*types.Message) int {
	total := 0
	for _, msg := range msgs {
		total += t.CountMessageTokens(msg)
	}
	return total
}

// heuristicCount approximates token count as bytes/4, rounding up.
func heuristicCount(text string) int {
	return (len(text) + 3) / 4
}
