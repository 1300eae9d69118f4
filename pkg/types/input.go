package types

// InputType defines the type of input being sent to the agent.
type InputType string

const (
	InputTypeCancel             InputType = "cancel"              // InputTypeCancel indicates a cancellation request.
	InputTypeUserInput          InputType = "user_input"          // InputTypeUserInput indicates a text prompt from the user.
	InputTypePermissionDecision InputType = "permission_decision" // InputTypePermissionDecision resolves a pending permission request.
)

// PermissionChoice is the user's answer to a permission prompt.
type PermissionChoice string

const (
	PermissionAllowOnce   PermissionChoice = "allow_once"
	PermissionAllowAlways PermissionChoice = "allow_always"
	PermissionDenyOnce    PermissionChoice = "deny_once"
	PermissionDenyAlways  PermissionChoice = "deny_always"
)

// PermissionDecision resolves a pending permission request for one tool
// invocation.
type PermissionDecision struct {
	// InvocationID identifies the suspended tool invocation.
	InvocationID string

	// Choice is the user's answer.
	Choice PermissionChoice
}

// Input represents the inputs that can be sent to an agent session.
type Input struct {
	// Metadata holds optional additional information about the input.
	Metadata map[string]interface{}

	// Content is the text content for user input.
	Content string

	// Decision resolves a pending permission request.
	// Only populated when Type is InputTypePermissionDecision.
	Decision *PermissionDecision

	// Type indicates the kind of input.
	Type InputType
}

// NewCancelInput creates a new cancellation input.
func NewCancelInput() *Input {
	return &Input{
		Type:     InputTypeCancel,
		Metadata: make(map[string]interface{}),
	}
}

// NewUserInput creates a new user text input.
func NewUserInput(content string) *Input {
	return &Input{
		Type:     InputTypeUserInput,
		Content:  content,
		Metadata: make(map[string]interface{}),
	}
}

// NewPermissionDecisionInput creates an input resolving a permission request.
func NewPermissionDecisionInput(invocationID string, choice PermissionChoice) *Input {
	return &Input{
		Type: InputTypePermissionDecision,
		Decision: &PermissionDecision{
			InvocationID: invocationID,
			Choice:       choice,
		},
		Metadata: make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the input and returns the input for chaining.
func (i *Input) WithMetadata(key string, value interface{}) *Input {
	if i.Metadata == nil {
		i.Metadata = make(map[string]interface{})
	}
	i.Metadata[key] = value
	return i
}

// IsCancel returns true if this is a cancellation input.
func (i *Input) IsCancel() bool {
	return i.Type == InputTypeCancel
}

// IsUserInput returns true if this is a user text input.
func (i *Input) IsUserInput() bool {
	return i.Type == InputTypeUserInput
}

// IsPermissionDecision returns true if this input resolves a permission request.
func (i *Input) IsPermissionDecision() bool {
	return i.Type == InputTypePermissionDecision && i.Decision != nil
}
