// Package cli provides a terminal executor for agent sessions: it reads
// user prompts, renders streamed agent events, and walks the user through
// permission prompts raised by suspended tools.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pagepilot/pagepilot/pkg/agent"
	"github.com/pagepilot/pagepilot/pkg/types"
)

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
	permTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
)

// Executor runs a turn-by-turn conversation with an agent session through
// terminal input/output.
type Executor struct {
	session *agent.Session
	reader  *bufio.Reader
	writer  io.Writer

	messageOpen bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWriter sets a custom output writer (default os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
	}
}

// NewExecutor creates a terminal executor for the given session.
func NewExecutor(session *agent.Session, opts ...ExecutorOption) *Executor {
	e := &Executor{
		session: session,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the session and begins the conversation loop. Returns when
// the user exits or the context is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	if err := e.session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	channels := e.session.GetChannels()

	turnEnd := make(chan struct{}, 1)
	permRequests := make(chan *types.PermissionRequestInfo, 1)
	eventsDone := make(chan struct{})
	go e.handleEvents(channels.Event, eventsDone, turnEnd, permRequests)

	fmt.Fprintln(e.writer, promptStyle.Render("pagepilot"))
	fmt.Fprintln(e.writer, dimStyle.Render("Type a message and press Enter. '/compact' condenses history; 'exit' quits."))
	fmt.Fprintln(e.writer)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			<-eventsDone
			return ctx.Err()
		default:
		}

		fmt.Fprint(e.writer, promptStyle.Render("> "))
		line, err := e.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				e.shutdown()
				<-eventsDone
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			e.shutdown()
			<-eventsDone
			return nil
		}

		channels.Input <- types.NewUserInput(line)
		e.waitForTurn(ctx, channels, turnEnd, permRequests)
	}
}

// waitForTurn blocks until the turn ends, answering permission prompts as
// they arrive.
func (e *Executor) waitForTurn(ctx context.Context, channels *types.AgentChannels, turnEnd chan struct{}, permRequests chan *types.PermissionRequestInfo) {
	for {
		select {
		case <-turnEnd:
			return
		case req := <-permRequests:
			choice := e.promptPermission(req)
			channels.Input <- types.NewPermissionDecisionInput(req.InvocationID, choice)
		case <-ctx.Done():
			channels.Input <- types.NewCancelInput()
			return
		}
	}
}

// promptPermission renders a consent prompt and reads the user's choice.
func (e *Executor) promptPermission(req *types.PermissionRequestInfo) types.PermissionChoice {
	fmt.Fprintln(e.writer)
	fmt.Fprintln(e.writer, permTitleStyle.Render("Permission needed"))
	fmt.Fprintf(e.writer, "  Tool: %s\n", req.ToolName)
	fmt.Fprintf(e.writer, "  Site: %s\n", req.Host)
	if req.PreviewText != "" {
		fmt.Fprintf(e.writer, "  Action: %s\n", req.PreviewText)
	}

	for {
		fmt.Fprint(e.writer, "Allow? [y]es once / [a]lways / [n]o / [d]eny always: ")
		line, err := e.reader.ReadString('\n')
		if err != nil {
			return types.PermissionDenyOnce
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return types.PermissionAllowOnce
		case "a", "always":
			return types.PermissionAllowAlways
		case "n", "no":
			return types.PermissionDenyOnce
		case "d", "deny":
			return types.PermissionDenyAlways
		}
	}
}

func (e *Executor) handleEvents(events chan *types.AgentEvent, done chan struct{}, turnEnd chan struct{}, permRequests chan *types.PermissionRequestInfo) {
	defer close(done)
	for event := range events {
		e.handleEvent(event, turnEnd, permRequests)
	}
}

func (e *Executor) handleEvent(event *types.AgentEvent, turnEnd chan struct{}, permRequests chan *types.PermissionRequestInfo) {
	switch event.Type {
	case types.EventTypeMessageStart:
		e.messageOpen = false

	case types.EventTypeMessageContent:
		if !e.messageOpen && event.Content != "" {
			fmt.Fprintln(e.writer)
			e.messageOpen = true
		}
		fmt.Fprint(e.writer, event.Content)

	case types.EventTypeMessageEnd:
		if e.messageOpen {
			fmt.Fprintln(e.writer)
		}

	case types.EventTypeToolCall:
		fmt.Fprintln(e.writer, toolStyle.Render(fmt.Sprintf("» %s", event.ToolName)))

	case types.EventTypeToolResultError:
		fmt.Fprintln(e.writer, errorStyle.Render(fmt.Sprintf("✗ %s: %v", event.ToolName, event.Error)))

	case types.EventTypePermissionRequest:
		select {
		case permRequests <- event.Permission:
		default:
		}

	case types.EventTypeTokenUsage:
		if event.Budget != nil && event.Budget.IsWarning {
			level := "context window is getting full"
			if event.Budget.IsError {
				level = "context window is nearly exhausted"
			}
			fmt.Fprintln(e.writer, warnStyle.Render(
				fmt.Sprintf("⚠ %s (%d%% used); '/compact' condenses history", level, event.Budget.PercentUsed)))
		}

	case types.EventTypeCompactionStart:
		fmt.Fprintln(e.writer, dimStyle.Render("Compacting conversation history..."))

	case types.EventTypeCompactionComplete:
		if event.Compaction != nil {
			fmt.Fprintln(e.writer, dimStyle.Render(
				fmt.Sprintf("Compacted: %d → %d messages, ~%d tokens reclaimed",
					event.Compaction.MessagesBefore, event.Compaction.MessagesAfter, event.Compaction.TokensSaved)))
		}

	case types.EventTypeCompactionError:
		fmt.Fprintln(e.writer, errorStyle.Render(fmt.Sprintf("Compaction failed: %v", event.Error)))

	case types.EventTypeError:
		fmt.Fprintln(e.writer, errorStyle.Render(fmt.Sprintf("Error: %v", event.Error)))

	case types.EventTypeTurnEnd:
		select {
		case turnEnd <- struct{}{}:
		default:
		}
	}
}

func (e *Executor) shutdown() {
	fmt.Fprintln(e.writer, dimStyle.Render("\nShutting down..."))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.session.Shutdown(ctx); err != nil {
		fmt.Fprintf(e.writer, "shutdown error: %v\n", err)
	}
}
