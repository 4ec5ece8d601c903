// Package message defines the values threaded through the module chain and
// the values delivered to a request's client-facing queue.
package message

import "time"

// Kind tags the payload carried by a Message or an Output.
type Kind string

const (
	KindText  Kind = "text"
	KindAudio Kind = "audio"
	KindInfo  Kind = "info"
	KindError Kind = "error"
	KindTool  Kind = "tool"
	KindEnd   Kind = "end"
)

// EndBody is the body of the terminal end Output.
const EndBody = "[DONE]"

// Message is handed from one stage to the next for a single request.
type Message struct {
	Kind      Kind
	Body      any
	UserID    string
	RequestID string
	StartedAt time.Time
}

// Derive returns a copy of m carrying a new kind and body.
func (m Message) Derive(kind Kind, body any) *Message {
	m.Kind = kind
	m.Body = body
	return &m
}

// Output is one unit placed on a request queue for client delivery.
type Output struct {
	Kind      Kind
	Body      any
	UserID    string
	RequestID string
}

// OutputFor builds an Output addressed to the same request as m.
func OutputFor(m *Message, kind Kind, body any) *Output {
	return &Output{Kind: kind, Body: body, UserID: m.UserID, RequestID: m.RequestID}
}

// End builds the terminal Output for a request.
func End(userID, requestID string) Output {
	return Output{Kind: KindEnd, Body: EndBody, UserID: userID, RequestID: requestID}
}

// Error builds an error Output carrying a client-safe description.
func Error(userID, requestID, description string) Output {
	return Output{Kind: KindError, Body: description, UserID: userID, RequestID: requestID}
}
