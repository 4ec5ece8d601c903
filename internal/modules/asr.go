package modules

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/providers/stt"
	"github.com/yoockh/voicechain/internal/utils"
)

const NameASR = "ASR"

// Transcript is a recognised utterance.
type Transcript stt.Result

// ASR turns an uploaded utterance into text for the next stage and reports
// the transcript to the client as info.
type ASR struct {
	provider stt.Provider
}

func NewASR(provider stt.Provider) *ASR {
	return &ASR{provider: provider}
}

func (m *ASR) Name() string                  { return NameASR }
func (m *ASR) InputType() pipeline.DataType  { return pipeline.TypeAudio }
func (m *ASR) OutputType() pipeline.DataType { return pipeline.TypeText }

// ExtractInput accepts raw bytes or base64 text.
func (m *ASR) ExtractInput(_ context.Context, run *pipeline.Run, msg *message.Message) (any, bool, error) {
	const op = "ASR.ExtractInput"
	if !run.Payload().Enabled(NameASR, true) {
		return nil, false, nil
	}
	switch b := msg.Body.(type) {
	case []byte:
		if len(b) == 0 {
			return nil, false, nil
		}
		return b, true, nil
	case string:
		s := strings.TrimSpace(b)
		if i := strings.Index(s, ";base64,"); i >= 0 {
			s = s[i+len(";base64,"):]
		}
		if s == "" {
			return nil, false, nil
		}
		audio, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, false, utils.E(utils.CodeInvalidArgument, op, "audio input is not valid base64", err)
		}
		return audio, true, nil
	}
	return nil, false, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("unsupported audio input %T", msg.Body), nil)
}

func (m *ASR) OpenGenerator(_ context.Context, run *pipeline.Run, _ *message.Message, input any) (pipeline.Generator, error) {
	const op = "ASR.OpenGenerator"
	audio := input.([]byte)
	sec, _ := run.Payload().Section(NameASR)
	lang := sec.String("language")

	return pipeline.Once(func(ctx context.Context) (any, error) {
		res, err := m.provider.Transcribe(ctx, audio, lang)
		if err != nil {
			return nil, utils.E(utils.CodeUpstream, op, "speech recognition failed", err)
		}
		return res, nil
	}), nil
}

func (m *ASR) TransformChunk(_ context.Context, _ *pipeline.Run, raw any) ([]any, error) {
	res, ok := raw.(stt.Result)
	if !ok {
		return nil, fmt.Errorf("asr: unexpected chunk %T", raw)
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, nil
	}
	return []any{Transcript(res)}, nil
}

func (m *ASR) WrapForOutput(_ *pipeline.Run, msg *message.Message, chunk any) *message.Output {
	if t, ok := chunk.(Transcript); ok {
		return message.OutputFor(msg, message.KindInfo, map[string]any{
			"transcript": t.Text,
			"confidence": t.Confidence,
			"language":   t.Language,
		})
	}
	return nil
}

func (m *ASR) WrapForNext(_ *pipeline.Run, msg *message.Message, chunk any) *message.Message {
	if t, ok := chunk.(Transcript); ok {
		return msg.Derive(message.KindText, t.Text)
	}
	return nil
}

func (m *ASR) Finalize(context.Context, *pipeline.Run, *message.Message) ([]any, error) {
	return nil, nil
}
