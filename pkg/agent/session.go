// Package agent runs the conversational turn loop: it alternates model
// calls with sequential tool execution, suspends tools on permission
// prompts, tracks the token budget, and compacts history when the context
// window is nearly exhausted.
//
// One Session owns one conversation. The host communicates over channels:
// it writes Input (user prompts, cancellations, permission decisions) and
// reads AgentEvent (streamed text, tool activity, prompts, budget updates).
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagepilot/pagepilot/pkg/browser"
	"github.com/pagepilot/pagepilot/pkg/llm"
	"github.com/pagepilot/pagepilot/pkg/llm/tokenizer"
	"github.com/pagepilot/pagepilot/pkg/logging"
	"github.com/pagepilot/pagepilot/pkg/permission"
	"github.com/pagepilot/pagepilot/pkg/tools/browse"
	"github.com/pagepilot/pagepilot/pkg/types"
)

var agentDebugLog *logging.Logger

func init() {
	agentDebugLog, _ = logging.NewLogger("agent")
}

// Session is one conversational agent session driving a browsing surface.
type Session struct {
	provider  llm.Provider
	registry  *browse.Registry
	gate      *permission.Gate
	surface   *browser.Session
	channels  *types.AgentChannels
	budget    *BudgetTracker
	compactor *Compactor
	tokenizer *tokenizer.Tokenizer

	systemPrompt string
	bufferSize   int
	maxTurns     int

	msgMu    sync.Mutex
	messages []*types.Message

	cancelMu   sync.Mutex
	cancelTurn context.CancelFunc

	promptMu sync.Mutex
	prompts  map[string]chan types.PermissionChoice

	runMu   sync.Mutex
	running bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSystemPrompt sets the system prompt for model calls.
func WithSystemPrompt(prompt string) SessionOption {
	return func(s *Session) {
		s.systemPrompt = prompt
	}
}

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) SessionOption {
	return func(s *Session) {
		s.bufferSize = size
	}
}

// WithMaxTurns caps model/tool iterations within one user turn. Zero means
// no cap.
func WithMaxTurns(max int) SessionOption {
	return func(s *Session) {
		s.maxTurns = max
	}
}

// NewSession creates an agent session over the given provider and tool
// registry. The permission gate and browsing surface are taken from the
// registry's environment.
func NewSession(provider llm.Provider, registry *browse.Registry, opts ...SessionOption) *Session {
	s := &Session{
		provider:   provider,
		registry:   registry,
		gate:       registry.Env().Gate,
		surface:    registry.Env().Session,
		budget:     NewBudgetTracker(provider.GetModelInfo()),
		compactor:  NewCompactor(provider),
		tokenizer:  tokenizer.New(),
		bufferSize: 10,
		prompts:    make(map[string]chan types.PermissionChoice),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.channels = types.NewAgentChannels(s.bufferSize)
	return s
}

// Start begins the session's event loop in a goroutine.
func (s *Session) Start(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return fmt.Errorf("session is already running")
	}
	s.running = true
	s.runMu.Unlock()

	go s.eventLoop(ctx)
	return nil
}

// Shutdown stops the session and waits for the event loop to exit.
func (s *Session) Shutdown(ctx context.Context) error {
	close(s.channels.Shutdown)

	select {
	case <-s.channels.Done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetChannels returns the session's communication channels.
func (s *Session) GetChannels() *types.AgentChannels {
	return s.channels
}

// Messages returns a copy of the live conversation history.
func (s *Session) Messages() []*types.Message {
	s.msgMu.Lock()
	defer s.msgMu.Unlock()
	return append([]*types.Message{}, s.messages...)
}

func (s *Session) history() []*types.Message {
	return s.Messages()
}

func (s *Session) appendMessage(msg *types.Message) {
	s.msgMu.Lock()
	s.messages = append(s.messages, msg)
	s.msgMu.Unlock()
}

func (s *Session) replaceMessages(msgs []*types.Message) {
	s.msgMu.Lock()
	s.messages = msgs
	s.msgMu.Unlock()
}

// eventLoop is the session's main processing loop. Cancellations and
// permission decisions are handled synchronously so they can interrupt or
// unblock a turn running in its own goroutine.
func (s *Session) eventLoop(ctx context.Context) {
	defer s.channels.Close()
	defer func() {
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			s.emitEvent(types.NewErrorEvent(ctx.Err()))
			return

		case <-s.channels.Shutdown:
			return

		case input := <-s.channels.Input:
			if input == nil {
				return
			}
			switch {
			case input.IsCancel():
				s.handleCancel()
			case input.IsPermissionDecision():
				s.resolvePermission(input.Decision)
			case input.IsUserInput():
				go s.processUserInput(ctx, input.Content)
			}
		}
	}
}

// handleCancel aborts the in-flight turn. Pending permission prompts are
// resolved as denied so suspended tools settle instead of hanging.
func (s *Session) handleCancel() {
	agentDebugLog.Infof("turn cancellation requested")

	s.promptMu.Lock()
	for id, ch := range s.prompts {
		select {
		case ch <- types.PermissionDenyOnce:
		default:
		}
		delete(s.prompts, id)
	}
	s.promptMu.Unlock()

	s.cancelMu.Lock()
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
	s.cancelMu.Unlock()
}

// processUserInput runs one conversational turn for a user prompt.
func (s *Session) processUserInput(ctx context.Context, content string) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cancelMu.Lock()
	s.cancelTurn = cancel
	s.cancelMu.Unlock()
	defer func() {
		s.cancelMu.Lock()
		s.cancelTurn = nil
		s.cancelMu.Unlock()
	}()

	s.emitEvent(types.NewUpdateBusyEvent(true))
	defer s.emitEvent(types.NewTurnEndEvent())
	defer s.emitEvent(types.NewUpdateBusyEvent(false))

	// One-shot grants from an interrupted previous turn must not leak
	// into this one.
	if err := s.gate.ClearOnce(); err != nil {
		agentDebugLog.Warnf("failed to clear one-shot grants: %v", err)
	}

	if content == CompactCommand {
		s.runCompaction(turnCtx, false)
		return
	}

	if s.budget.ShouldAutoCompact() {
		s.runCompaction(turnCtx, true)
	}

	s.appendMessage(types.NewUserMessage(content))
	s.runTurn(turnCtx)

	// A cancelled turn releases the surface: the next turn re-attaches.
	if turnCtx.Err() != nil && ctx.Err() == nil {
		if err := s.surface.Detach(context.Background()); err != nil {
			agentDebugLog.Warnf("detach after cancellation failed: %v", err)
		}
	}
}

// runCompaction condenses the history. On failure the pre-compaction
// history is left untouched and the turn proceeds with it.
func (s *Session) runCompaction(ctx context.Context, automatic bool) {
	before := s.history()
	if len(before) == 0 {
		return
	}

	s.emitEvent(types.NewCompactionStartEvent(automatic, len(before)))
	start := nowFunc()

	result, err := s.compactor.Compact(ctx, before, automatic)
	if err != nil {
		agentDebugLog.Warnf("compaction failed: %v", err)
		s.emitEvent(types.NewCompactionErrorEvent(automatic, err))
		return
	}

	s.replaceMessages(result.Messages)
	s.emitEvent(types.NewCompactionCompleteEvent(
		automatic,
		result.TokensSaved,
		len(before),
		len(result.Messages),
		nowFunc().Sub(start).Round(timeRounding).String(),
	))
}

// emitEvent sends an event to the host. A turn goroutine can outlive the
// event loop when the host shuts down mid-turn; a send that races the
// channel close is dropped instead of crashing the session.
func (s *Session) emitEvent(event *types.AgentEvent) {
	defer func() {
		if r := recover(); r != nil {
			agentDebugLog.Debugf("event dropped during shutdown: %v", r)
		}
	}()
	select {
	case s.channels.Event <- event:
	case <-s.channels.Shutdown:
	}
}
