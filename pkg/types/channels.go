package types

// AgentChannels bundles the communication channels between an agent session
// and its host. The host writes Input, reads Event, and closes Shutdown to
// stop the session; the session closes Done when it has fully stopped.
type AgentChannels struct {
	Input    chan *Input
	Event    chan *AgentEvent
	Shutdown chan struct{}
	Done     chan struct{}
}

// NewAgentChannels creates a channel set with the given buffer size for the
// input and event channels.
func NewAgentChannels(bufferSize int) *AgentChannels {
	return &AgentChannels{
		Input:    make(chan *Input, bufferSize),
		Event:    make(chan *AgentEvent, bufferSize),
		Shutdown: make(chan struct{}),
		Done:     make(chan struct{}),
	}
}

// Close closes the outbound channels. Safe to call once, from the session's
// event loop on exit.
func (c *AgentChannels) Close() {
	close(c.Event)
	close(c.Done)
}
