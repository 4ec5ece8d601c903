// Package modules holds the concrete stages that can be linked into a
// pipeline.
package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/providers/llm"
	"github.com/yoockh/voicechain/internal/sentence"
)

const NameLLM = "LLM"

// Sentence is a batched text unit released by the sentence buffer.
type Sentence string

// ToolCall is a tool event surfaced to the client only.
type ToolCall llm.ToolEvent

// Aggregate is the closing summary of a response, surfaced to the client
// only.
type Aggregate sentence.Summary

// LLM streams a chat answer and batches it into sentences for the next
// stage.
type LLM struct {
	provider llm.Provider
	log      *logrus.Logger
}

func NewLLM(provider llm.Provider, log *logrus.Logger) *LLM {
	return &LLM{provider: provider, log: log}
}

func (m *LLM) Name() string                  { return NameLLM }
func (m *LLM) InputType() pipeline.DataType  { return pipeline.TypeText }
func (m *LLM) OutputType() pipeline.DataType { return pipeline.TypeText }

func (m *LLM) buffer(run *pipeline.Run) *sentence.Buffer {
	sec, _ := run.Payload().Section(NameLLM)
	return run.Scratch(NameLLM, func() any {
		return sentence.New(sec.Int("min_sentences", sentence.DefaultMinSentences))
	}).(*sentence.Buffer)
}

func (m *LLM) ExtractInput(_ context.Context, run *pipeline.Run, msg *message.Message) (any, bool, error) {
	if !run.Payload().Enabled(NameLLM, true) {
		return nil, false, nil
	}
	text, ok := msg.Body.(string)
	if !ok || text == "" {
		return nil, false, nil
	}
	return text, true, nil
}

func (m *LLM) OpenGenerator(ctx context.Context, run *pipeline.Run, _ *message.Message, input any) (pipeline.Generator, error) {
	payload := run.Payload()
	req := llm.Request{
		Query:          input.(string),
		UserID:         run.UserID(),
		ConversationID: payload.String("conversation_id"),
	}
	if sec, ok := payload.Section(NameLLM); ok {
		if inputs, ok := sec.Section("inputs"); ok {
			req.Inputs = inputs
		}
	}
	m.buffer(run)
	out, errs := m.provider.StreamAnswer(ctx, req)
	return pipeline.FromChannels(out, errs), nil
}

func (m *LLM) TransformChunk(_ context.Context, run *pipeline.Run, raw any) ([]any, error) {
	c, ok := raw.(llm.Chunk)
	if !ok {
		return nil, fmt.Errorf("llm: unexpected chunk %T", raw)
	}
	buf := m.buffer(run)
	buf.Observe(c.ConversationID, c.MessageID)

	switch {
	case c.Tool != nil:
		return []any{ToolCall(*c.Tool)}, nil
	case c.End:
		return nil, nil
	case c.Text == "":
		return nil, nil
	}

	// One push per fragment; a released batch travels downstream as one unit.
	units := buf.Push(c.Text)
	if len(units) == 0 {
		return nil, nil
	}
	return []any{Sentence(strings.Join(units, ""))}, nil
}

func (m *LLM) WrapForOutput(_ *pipeline.Run, msg *message.Message, chunk any) *message.Output {
	switch c := chunk.(type) {
	case Sentence:
		return message.OutputFor(msg, message.KindText, string(c))
	case ToolCall:
		return message.OutputFor(msg, message.KindTool, llm.ToolEvent(c))
	case Aggregate:
		return message.OutputFor(msg, message.KindInfo, sentence.Summary(c))
	}
	return nil
}

func (m *LLM) WrapForNext(_ *pipeline.Run, msg *message.Message, chunk any) *message.Message {
	if s, ok := chunk.(Sentence); ok {
		return msg.Derive(message.KindText, string(s))
	}
	return nil
}

// Finalize releases the unterminated remainder and the response summary.
func (m *LLM) Finalize(_ context.Context, run *pipeline.Run, _ *message.Message) ([]any, error) {
	v := run.Scratch(NameLLM, nil)
	if v == nil {
		return nil, nil
	}
	buf := v.(*sentence.Buffer)
	var out []any
	if rest := buf.Flush(); rest != "" {
		out = append(out, Sentence(rest))
	}
	summary := buf.Summary()
	if m.log != nil {
		m.log.WithFields(logrus.Fields{
			"request_id":      run.RequestID(),
			"conversation_id": summary.ConversationID,
			"sentences":       len(buf.Sentences()),
		}).Debug("llm response complete")
	}
	return append(out, Aggregate(summary)), nil
}
