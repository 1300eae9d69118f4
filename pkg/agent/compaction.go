package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/types"
)

const (
	// CompactCommand is the literal user prompt that triggers manual
	// compaction.
	CompactCommand = "/compact"

	// maxPreservedImages bounds how many recent image-bearing user
	// messages survive compaction.
	maxPreservedImages = 3

	// compactionImageEstimate is the flat per-image token estimate used
	// when computing tokens saved.
	compactionImageEstimate = 1600
)

// summaryInstruction is the fixed prompt appended to the history when
// asking the model to condense it.
const summaryInstruction = `Summarize this conversation so it can replace the full history. Structure the summary as:

1. Task: what the user asked for, including any constraints they stated.
2. Progress: pages visited, actions taken, and their outcomes.
3. Current state: the page currently open and anything pending.
4. Next steps: what remains to be done.

Be specific about URLs, element references, and values entered. Respond with only the summary.`

// summaryPreamble prefixes the generated summary in the replacement history.
const summaryPreamble = "Summary of the conversation so far:"

// autoContinueSuffix is appended when compaction ran automatically
// mid-task so the model resumes instead of waiting for input.
const autoContinueSuffix = "Continue the task from this summary, continuing without further questions."

// CompactionResult is the replacement history plus an estimate of the
// context reclaimed. Ephemeral: it is applied to the live session and never
// persisted.
type CompactionResult struct {
	Messages    []*types.Message
	TokensSaved int
}

// Compactor condenses a conversation into a model-generated summary,
// preserving the most recent screenshots so the model keeps its view of the
// current page.
type Compactor struct {
	provider llm.Provider
}

// NewCompactor creates a compactor backed by the given provider.
func NewCompactor(provider llm.Provider) *Compactor {
	return &Compactor{provider: provider}
}

// Compact summarizes messages into a condensed replacement history. On any
// failure it returns an error and the caller keeps the original history.
//
// The replacement is ordered: synthetic compaction notice, summary, then up
// to three preserved image messages, most recent first.
func (c *Compactor) Compact(ctx context.Context, messages []*types.Message, continueAutomatically bool) (*CompactionResult, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("nothing to compact")
	}

	request := append(append([]*types.Message{}, messages...), types.NewUserMessage(summaryInstruction))
	response, err := c.provider.Complete(ctx, &llm.Request{Messages: request})
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}
	summary := strings.TrimSpace(response.Text())
	if summary == "" {
		return nil, fmt.Errorf("model returned an empty summary")
	}

	var b strings.Builder
	b.WriteString(summaryPreamble)
	b.WriteString("\n\n")
	b.WriteString(summary)
	if continueAutomatically {
		b.WriteString("\n\n")
		b.WriteString(autoContinueSuffix)
	}

	notice := types.NewAssistantMessage("[Earlier conversation compacted to stay within the context window.]")
	compacted := []*types.Message{notice, types.NewUserMessage(b.String())}
	compacted = append(compacted, preserveRecentImages(messages)...)

	saved := estimateTokens(messages) - estimateTokens(compacted)
	if saved < 0 {
		saved = 0
	}

	return &CompactionResult{Messages: compacted, TokensSaved: saved}, nil
}

// preserveRecentImages scans user messages newest-first and keeps up to
// maxPreservedImages of them, stripped to just their image content.
func preserveRecentImages(messages []*types.Message) []*types.Message {
	var preserved []*types.Message
	for i := len(messages) - 1; i >= 0 && len(preserved) < maxPreservedImages; i-- {
		msg := messages[i]
		if msg.Role != types.RoleUser || !msg.HasImage() {
			continue
		}
		preserved = append(preserved, &types.Message{
			Role:    types.RoleUser,
			Content: msg.ImageBlocks(),
		})
	}
	return preserved
}

// estimateTokens approximates a history's size: text at a character-count
// quarter, images at a flat per-image cost.
func estimateTokens(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		for _, block := range msg.Content {
			switch {
			case block.Type == types.BlockTypeText:
				total += len(block.Text) / 4
			case block.Type == types.BlockTypeImage:
				total += compactionImageEstimate
			case block.ToolUse != nil:
				total += len(block.ToolUse.Input) / 4
			case block.ToolResult != nil:
				total += len(block.ToolResult.Content) / 4
				if block.ToolResult.Image != nil {
					total += compactionImageEstimate
				}
			}
		}
	}
	return total
}
