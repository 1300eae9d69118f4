package agent

import (
	"math"
	"sync"

	"github.com/pagepilot/pagepilot/pkg/types"
)

const (
	// warningMargin is how close to the effective window the conversation
	// may grow before the budget is flagged as a warning.
	warningMargin = 20000

	// errorMargin is the hard threshold: past it the next request risks
	// overflowing the model's context.
	errorMargin = 10000

	// autoCompactMargin triggers automatic compaction before a turn starts.
	autoCompactMargin = 10000
)

// TokenMetrics is the derived view of one model response's token usage
// against the model's context limits. Never persisted.
type TokenMetrics struct {
	InputTokens     int
	OutputTokens    int
	TotalTokens     int
	ContextWindow   int
	EffectiveWindow int
	PercentUsed     int
	IsWarning       bool
	IsError         bool
}

// BudgetTracker derives token metrics from provider-reported usage. The
// effective window subtracts the model's maximum output so a full response
// always fits.
type BudgetTracker struct {
	contextWindow   int
	maxOutputTokens int

	mu   sync.Mutex
	last *TokenMetrics
}

// NewBudgetTracker creates a tracker for the given model limits.
func NewBudgetTracker(info *types.ModelInfo) *BudgetTracker {
	return &BudgetTracker{
		contextWindow:   info.ContextWindow,
		maxOutputTokens: info.MaxOutputTokens,
	}
}

// FromUsage derives metrics from one response's usage and records them as
// the tracker's latest view.
//
// Input tokens include cache creation and cache reads: cached tokens still
// occupy context even though the provider bills them differently.
func (t *BudgetTracker) FromUsage(usage *types.Usage) *TokenMetrics {
	input := usage.InputTokens + usage.CacheCreationInputTokens + usage.CacheReadInputTokens
	total := input + usage.OutputTokens
	effective := t.contextWindow - t.maxOutputTokens

	percent := 0
	if effective > 0 {
		percent = int(math.Round(float64(total) / float64(effective) * 100))
	}

	metrics := &TokenMetrics{
		InputTokens:     input,
		OutputTokens:    usage.OutputTokens,
		TotalTokens:     total,
		ContextWindow:   t.contextWindow,
		EffectiveWindow: effective,
		PercentUsed:     percent,
		IsWarning:       total >= effective-warningMargin,
		IsError:         total >= effective-errorMargin,
	}

	t.mu.Lock()
	t.last = metrics
	t.mu.Unlock()
	return metrics
}

// Last returns the most recently derived metrics, or nil before the first
// model response.
func (t *BudgetTracker) Last() *TokenMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// ShouldAutoCompact reports whether the conversation is close enough to the
// context limit that it should be compacted before the next model call.
func (t *BudgetTracker) ShouldAutoCompact() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return false
	}
	return t.last.TotalTokens >= t.last.EffectiveWindow-autoCompactMargin
}

// BudgetInfo converts metrics to the event payload shape.
func (m *TokenMetrics) BudgetInfo() *types.BudgetInfo {
	return &types.BudgetInfo{
		InputTokens:   m.InputTokens,
		OutputTokens:  m.OutputTokens,
		TotalTokens:   m.TotalTokens,
		ContextWindow: m.ContextWindow,
		PercentUsed:   m.PercentUsed,
		IsWarning:     m.IsWarning,
		IsError:       m.IsError,
	}
}
