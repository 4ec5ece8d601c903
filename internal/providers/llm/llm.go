package llm

import "context"

// Request is one chat turn sent upstream.
type Request struct {
	Query          string
	UserID         string
	ConversationID string
	Inputs         map[string]any
}

// ToolEvent is a completed tool call reported by an agent-style upstream.
type ToolEvent struct {
	Name     string `json:"tool_call_name"`
	Response any    `json:"tool_response"`
}

// Chunk is one decoded upstream event. Exactly one of Text, Tool or End is
// meaningful; the ids may accompany any of them.
type Chunk struct {
	Text           string
	Tool           *ToolEvent
	End            bool
	ConversationID string
	MessageID      string
}

type Provider interface {
	// StreamAnswer returns a stream of incremental chunks. errs receives at
	// most one error and is closed before chunks.
	StreamAnswer(ctx context.Context, req Request) (chunks <-chan Chunk, errs <-chan error)
	Close() error
}
