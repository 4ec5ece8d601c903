package modules

import (
	"context"
	"strings"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/providers/avatar"
	"github.com/yoockh/voicechain/internal/utils"
)

const NameAvatar = "Avatar"

// Avatar makes a digital human speak each sentence and passes the text on
// unchanged. It writes nothing to the client.
type Avatar struct {
	driver avatar.Driver
}

func NewAvatar(driver avatar.Driver) *Avatar {
	return &Avatar{driver: driver}
}

func (m *Avatar) Name() string                  { return NameAvatar }
func (m *Avatar) InputType() pipeline.DataType  { return pipeline.TypeText }
func (m *Avatar) OutputType() pipeline.DataType { return pipeline.TypeText }

func (m *Avatar) ExtractInput(_ context.Context, run *pipeline.Run, msg *message.Message) (any, bool, error) {
	text, _ := msg.Body.(string)
	if strings.TrimSpace(text) == "" {
		return nil, false, nil
	}
	if !run.Payload().Enabled(NameAvatar, true) {
		// Disabled avatars still hand the text to later stages.
		return text, true, nil
	}
	sec, _ := run.Payload().Section(NameAvatar)
	ttsSec, _ := run.Payload().Section(NameTTS)
	req := avatar.SpeakRequest{
		Text:      text,
		SessionID: sec.Int("sessionid", 0),
		Voice:     firstNonEmpty(sec.String("voice"), ttsSec.String("voice")),
		Emotion:   firstNonEmpty(sec.String("emotion"), ttsSec.String("emotion")),
		Interrupt: sec.Bool("interrupt", false),
	}
	return req, true, nil
}

func (m *Avatar) OpenGenerator(_ context.Context, _ *pipeline.Run, _ *message.Message, input any) (pipeline.Generator, error) {
	const op = "Avatar.OpenGenerator"
	switch in := input.(type) {
	case string:
		return pipeline.FromSlice(in), nil
	case avatar.SpeakRequest:
		return pipeline.Once(func(ctx context.Context) (any, error) {
			if err := m.driver.Speak(ctx, in); err != nil {
				return nil, utils.E(utils.CodeUpstream, op, "avatar speak failed", err)
			}
			return in.Text, nil
		}), nil
	}
	return nil, nil
}

func (m *Avatar) TransformChunk(_ context.Context, _ *pipeline.Run, raw any) ([]any, error) {
	if s, ok := raw.(string); ok {
		return []any{s}, nil
	}
	return nil, nil
}

func (m *Avatar) WrapForOutput(*pipeline.Run, *message.Message, any) *message.Output { return nil }

func (m *Avatar) WrapForNext(_ *pipeline.Run, msg *message.Message, chunk any) *message.Message {
	s, _ := chunk.(string)
	if s == "" {
		return nil
	}
	return msg.Derive(message.KindText, s)
}

func (m *Avatar) Finalize(context.Context, *pipeline.Run, *message.Message) ([]any, error) {
	return nil, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
