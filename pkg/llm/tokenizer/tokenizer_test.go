package tokenizer

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pagepilot/pagepilot/pkg/types"
)

// heuristic-mode tokenizer; avoids fetching BPE ranks in tests
func heuristicTokenizer() *Tokenizer {
	return &Tokenizer{}
}

func TestCountTokensEmpty(t *testing.T) {
	tok := heuristicTokenizer()
	if got := tok.CountTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty string, got %d", got)
	}
}

func TestCountTokensHeuristic(t *testing.T) {
	tok := heuristicTokenizer()

	tests := []struct {
		text string
		want int
	}{
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := tok.CountTokens(tt.text); got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCountMessageTokensImages(t *testing.T) {
	tok := heuristicTokenizer()

	msg := &types.Message{
		Role: types.RoleUser,
		Content: []types.ContentBlock{
			types.TextBlock(strings.Repeat("y", 40)),
			types.ImageContentBlock("image/png", "base64data"),
		},
	}

	want := 10 + imageTokenEstimate
	if got := tok.CountMessageTokens(msg); got != want {
		t.Errorf("CountMessageTokens = %d, want %d", got, want)
	}
}

func TestCountMessageTokensToolBlocks(t *testing.T) {
	tok := heuristicTokenizer()

	msg := &types.Message{
		Role: types.RoleAssistant,
		Content: []types.ContentBlock{
			types.ToolUseContentBlock("call_1", "find", json.RawMessage(`{"query":"login"}`)),
		},
	}

	// name (4 bytes -> 1) + input (17 bytes -> 5)
	if got := tok.CountMessageTokens(msg); got != 6 {
		t.Errorf("CountMessageTokens = %d, want 6", got)
	}

	result := &types.Message{
		Role: types.RoleUser,
		Content: []types.ContentBlock{
			types.ToolResultContentBlock(types.ToolResultBlock{
				ToolUseID: "call_1",
				Content:   strings.Repeat("z", 8),
				Image:     &types.ImageBlock{MediaType: "image/png", Data: "aaaa"},
			}),
		},
	}
	want := 2 + imageTokenEstimate
	if got := tok.CountMessageTokens(result); got != want {
		t.Errorf("CountMessageTokens(tool result) = %d, want %d", got, want)
	}
}

func TestCountMessagesTokensNilSafe(t *testing.T) {
	tok := heuristicTokenizer()
	msgs := []*types.Message{
		nil,
		{Role: types.RoleUser, Content: []types.ContentBlock{types.TextBlock("abcd")}},
	}
	if got := tok.CountMessagesTokens(msgs); got != 1 {
		t.Errorf("CountMessagesTokens = %d, want 1", got)
	}
}
