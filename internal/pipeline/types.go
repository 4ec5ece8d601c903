// Package pipeline wires stages into a statically typed chain and drives one
// request through it, fanning every processed chunk out to the request queue
// and to the next stage.
package pipeline

import (
	"context"

	"github.com/yoockh/voicechain/internal/message"
)

// DataType is the declared payload type a stage consumes or produces.
type DataType string

const (
	TypeText  DataType = "text"
	TypeAudio DataType = "audio"
)

// Kind is the message kind a stage of this input type is entered with.
func (t DataType) Kind() message.Kind {
	if t == TypeAudio {
		return message.KindAudio
	}
	return message.KindText
}

// Module is one stage of the chain. Implementations are long-lived and shared
// by all requests; per-request state lives in the Run scratch space.
type Module interface {
	Name() string
	InputType() DataType
	OutputType() DataType

	// ExtractInput derives the stage input from msg and the request payload.
	// ok=false skips the stage for this request without error.
	ExtractInput(ctx context.Context, run *Run, msg *message.Message) (input any, ok bool, err error)

	// OpenGenerator starts the upstream call. A nil Generator is a no-op.
	OpenGenerator(ctx context.Context, run *Run, msg *message.Message, input any) (Generator, error)

	// TransformChunk decodes one raw chunk into zero or more domain chunks.
	TransformChunk(ctx context.Context, run *Run, raw any) ([]any, error)

	// WrapForOutput builds the client-facing output; nil keeps the chunk off
	// the request queue.
	WrapForOutput(run *Run, msg *message.Message, chunk any) *message.Output

	// WrapForNext builds the message for the next stage; nil or a nil Body
	// stops forwarding.
	WrapForNext(run *Run, msg *message.Message, chunk any) *message.Message

	// Finalize runs once per invocation whatever the outcome. Chunks it
	// returns are delivered like streamed chunks when the invocation
	// succeeded and dropped otherwise.
	Finalize(ctx context.Context, run *Run, msg *message.Message) ([]any, error)
}

// Heartbeater is implemented by stages that can warm up or probe their
// upstream outside of a request.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// StageInfo describes one linked stage.
type StageInfo struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Input  DataType `json:"input"`
	Output DataType `json:"output"`
	Next   string   `json:"next,omitempty"`
}

// StageHealth is the outcome of one stage heartbeat.
type StageHealth struct {
	Module string `json:"module"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}
