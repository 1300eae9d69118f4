package types

// AgentEventType defines the type of event emitted by the agent.
type AgentEventType string

const (
	EventTypeMessageStart       AgentEventType = "message_start"        // EventTypeMessageStart indicates the agent is starting to compose a message.
	EventTypeMessageContent     AgentEventType = "message_content"      // EventTypeMessageContent indicates streamed text content from the agent's message.
	EventTypeMessageEnd         AgentEventType = "message_end"          // EventTypeMessageEnd indicates the agent has finished composing the message.
	EventTypeToolCall           AgentEventType = "tool_call"            // EventTypeToolCall indicates the agent is invoking a tool.
	EventTypeToolResult         AgentEventType = "tool_result"          // EventTypeToolResult indicates a successful tool invocation result.
	EventTypeToolResultError    AgentEventType = "tool_result_error"    // EventTypeToolResultError indicates a tool invocation resulted in an error.
	EventTypePermissionRequest  AgentEventType = "permission_request"   // EventTypePermissionRequest indicates a tool is suspended pending a user decision.
	EventTypePermissionResolved AgentEventType = "permission_resolved"  // EventTypePermissionResolved indicates a pending permission request was decided.
	EventTypeAPICallStart       AgentEventType = "api_call_start"       // EventTypeAPICallStart indicates the agent is making a model request.
	EventTypeAPICallEnd         AgentEventType = "api_call_end"         // EventTypeAPICallEnd indicates a model request has completed.
	EventTypeTokenUsage         AgentEventType = "token_usage"          // EventTypeTokenUsage carries token budget metrics from the latest response.
	EventTypeCompactionStart    AgentEventType = "compaction_start"     // EventTypeCompactionStart indicates conversation compaction has started.
	EventTypeCompactionComplete AgentEventType = "compaction_complete"  // EventTypeCompactionComplete indicates conversation compaction finished.
	EventTypeCompactionError    AgentEventType = "compaction_error"     // EventTypeCompactionError indicates conversation compaction failed.
	EventTypeUpdateBusy         AgentEventType = "update_busy"          // EventTypeUpdateBusy indicates a change in the agent's busy status.
	EventTypeTurnEnd            AgentEventType = "turn_end"             // EventTypeTurnEnd indicates the agent has finished processing the current turn.
	EventTypeError              AgentEventType = "error"                // EventTypeError indicates an error occurred during agent processing.
)

// AgentEvent represents an event emitted by the agent during execution.
type AgentEvent struct {
	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}

	// ToolInput is the input being sent to the tool (for tool call events).
	ToolInput map[string]interface{}

	// ToolOutput is the result from the tool (for tool result events).
	ToolOutput interface{}

	// Error contains error information for error events.
	Error error

	// Content holds text content for content-type events.
	Content string

	// ToolName is the name of the tool being called (for tool events).
	ToolName string

	// Type indicates the kind of event.
	Type AgentEventType

	// IsBusy indicates if the agent is busy (for busy status events).
	IsBusy bool

	// Permission holds permission request details (for permission events).
	Permission *PermissionRequestInfo

	// Budget contains token budget metrics (for token usage events).
	Budget *BudgetInfo

	// Compaction contains compaction information (for compaction events).
	Compaction *CompactionInfo

	// APICallInfo contains context sizing for model requests.
	APICallInfo *APICallInfo
}

// PermissionRequestInfo describes a tool suspended pending a user decision.
type PermissionRequestInfo struct {
	// InvocationID is the model-issued tool invocation identifier.
	InvocationID string

	// ToolName is the tool awaiting permission.
	ToolName string

	// URL is the page the action would apply to.
	URL string

	// Host is the normalized permission host for the URL.
	Host string

	// PreviewText holds the literal text about to be typed, when relevant.
	PreviewText string

	// PreviewImage holds a screenshot preview for pointer actions, base64 PNG.
	PreviewImage string
}

// BudgetInfo mirrors the token budget metrics derived from a model response.
type BudgetInfo struct {
	InputTokens   int
	OutputTokens  int
	TotalTokens   int
	ContextWindow int
	PercentUsed   int
	IsWarning     bool
	IsError       bool
}

// CompactionInfo contains information about a conversation compaction pass.
type CompactionInfo struct {
	// Automatic is true when compaction was triggered by the token budget
	// rather than an explicit user command.
	Automatic bool

	// TokensSaved is the estimated number of tokens reclaimed.
	TokensSaved int

	// MessagesBefore and MessagesAfter count the live history either side
	// of the compaction.
	MessagesBefore int
	MessagesAfter  int

	// Duration is how long the compaction took.
	Duration string

	// ErrorMessage contains error details if compaction failed.
	ErrorMessage string
}

// APICallInfo contains information about a model request.
type APICallInfo struct {
	// ContextTokens is the current conversation context size in tokens.
	ContextTokens int

	// MaxContextTokens is the configured maximum context limit in tokens.
	MaxContextTokens int
}

// NewMessageStartEvent creates a message start event.
func NewMessageStartEvent() *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeMessageStart,
		Metadata: make(map[string]interface{}),
	}
}

// NewMessageContentEvent creates a message content event.
func NewMessageContentEvent(content string) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeMessageContent,
		Content:  content,
		Metadata: make(map[string]interface{}),
	}
}

// NewMessageEndEvent creates a message end event.
func NewMessageEndEvent() *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeMessageEnd,
		Metadata: make(map[string]interface{}),
	}
}

// NewToolCallEvent creates a tool call event.
func NewToolCallEvent(toolName string, toolInput map[string]interface{}) *AgentEvent {
	return &AgentEvent{
		Type:      EventTypeToolCall,
		ToolName:  toolName,
		ToolInput: toolInput,
		Metadata:  make(map[string]interface{}),
	}
}

// NewToolResultEvent creates a tool result event.
func NewToolResultEvent(toolName string, output interface{}) *AgentEvent {
	return &AgentEvent{
		Type:       EventTypeToolResult,
		ToolName:   toolName,
		ToolOutput: output,
		Metadata:   make(map[string]interface{}),
	}
}

// NewToolResultErrorEvent creates a tool result error event.
func NewToolResultErrorEvent(toolName string, err error) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeToolResultError,
		ToolName: toolName,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// NewPermissionRequestEvent creates a permission request event.
func NewPermissionRequestEvent(info *PermissionRequestInfo) *AgentEvent {
	return &AgentEvent{
		Type:       EventTypePermissionRequest,
		ToolName:   info.ToolName,
		Permission: info,
		Metadata:   make(map[string]interface{}),
	}
}

// NewPermissionResolvedEvent creates a permission resolved event.
func NewPermissionResolvedEvent(invocationID, toolName string, allowed bool) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypePermissionResolved,
		ToolName: toolName,
		Permission: &PermissionRequestInfo{
			InvocationID: invocationID,
			ToolName:     toolName,
		},
		Metadata: map[string]interface{}{"allowed": allowed},
	}
}

// NewAPICallStartEvent creates a model request start event with context token information.
func NewAPICallStartEvent(apiName string, contextTokens, maxContextTokens int) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeAPICallStart,
		Metadata: map[string]interface{}{"api_name": apiName},
		APICallInfo: &APICallInfo{
			ContextTokens:    contextTokens,
			MaxContextTokens: maxContextTokens,
		},
	}
}

// NewAPICallEndEvent creates a model request end event.
func NewAPICallEndEvent(apiName string) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeAPICallEnd,
		Metadata: map[string]interface{}{"api_name": apiName},
	}
}

// NewTokenUsageEvent creates a token usage event.
func NewTokenUsageEvent(budget *BudgetInfo) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeTokenUsage,
		Budget:   budget,
		Metadata: make(map[string]interface{}),
	}
}

// NewUpdateBusyEvent creates a busy status update event.
func NewUpdateBusyEvent(isBusy bool) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeUpdateBusy,
		IsBusy:   isBusy,
		Metadata: make(map[string]interface{}),
	}
}

// NewTurnEndEvent creates a turn end event.
func NewTurnEndEvent() *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeTurnEnd,
		Metadata: make(map[string]interface{}),
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err error) *AgentEvent {
	return &AgentEvent{
		Type:     EventTypeError,
		Error:    err,
		Metadata: make(map[string]interface{}),
	}
}

// NewCompactionStartEvent creates a compaction start event.
func NewCompactionStartEvent(automatic bool, messagesBefore int) *AgentEvent {
	return &AgentEvent{
		Type: EventTypeCompactionStart,
		Compaction: &CompactionInfo{
			Automatic:      automatic,
			MessagesBefore: messagesBefore,
		},
		Metadata: make(map[string]interface{}),
	}
}

// NewCompactionCompleteEvent creates a compaction complete event.
func NewCompactionCompleteEvent(automatic bool, tokensSaved, messagesBefore, messagesAfter int, duration string) *AgentEvent {
	return &AgentEvent{
		Type: EventTypeCompactionComplete,
		Compaction: &CompactionInfo{
			Automatic:      automatic,
			TokensSaved:    tokensSaved,
			MessagesBefore: messagesBefore,
			MessagesAfter:  messagesAfter,
			Duration:       duration,
		},
		Metadata: make(map[string]interface{}),
	}
}

// NewCompactionErrorEvent creates a compaction error event.
func NewCompactionErrorEvent(automatic bool, err error) *AgentEvent {
	return &AgentEvent{
		Type:  EventTypeCompactionError,
		Error: err,
		Compaction: &CompactionInfo{
			Automatic:    automatic,
			ErrorMessage: err.Error(),
		},
		Metadata: make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *AgentEvent) WithMetadata(key string, value interface{}) *AgentEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsMessageEvent returns true if this is any message-related event.
func (e *AgentEvent) IsMessageEvent() bool {
	return e.Type == EventTypeMessageStart ||
		e.Type == EventTypeMessageContent ||
		e.Type == EventTypeMessageEnd
}

// IsToolEvent returns true if this is any tool-related event.
func (e *AgentEvent) IsToolEvent() bool {
	return e.Type == EventTypeToolCall ||
		e.Type == EventTypeToolResult ||
		e.Type == EventTypeToolResultError
}

// IsPermissionEvent returns true if this is any permission-related event.
func (e *AgentEvent) IsPermissionEvent() bool {
	return e.Type == EventTypePermissionRequest ||
		e.Type == EventTypePermissionResolved
}

// IsCompactionEvent returns true if this is any compaction-related event.
func (e *AgentEvent) IsCompactionEvent() bool {
	return e.Type == EventTypeCompactionStart ||
		e.Type == EventTypeCompactionComplete ||
		e.Type == EventTypeCompactionError
}

// IsErrorEvent returns true if this is an error event.
func (e *AgentEvent) IsErrorEvent() bool {
	return e.Type == EventTypeError
}
