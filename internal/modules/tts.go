package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/internal/cache"
	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/providers/tts"
	"github.com/yoockh/voicechain/internal/utils"
	"github.com/yoockh/voicechain/internal/voices"
)

const NameTTS = "TTS"

// heartbeatText is a one-character clip that keeps the synthesis backend warm.
const heartbeatText = "一"

// Audio is one synthesised clip.
type Audio []byte

type TTSOptions struct {
	DefaultVoice string
	CacheTTL     time.Duration
}

// TTS synthesises every incoming sentence in the voice selected by the
// request's TTS section. The stage is skipped for requests without one.
type TTS struct {
	provider tts.Provider
	catalog  voices.Catalog
	cache    cache.Cache
	opts     TTSOptions
	log      *logrus.Logger
}

func NewTTS(provider tts.Provider, catalog voices.Catalog, c cache.Cache, opts TTSOptions, log *logrus.Logger) *TTS {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	return &TTS{provider: provider, catalog: catalog, cache: c, opts: opts, log: log}
}

func (m *TTS) Name() string                  { return NameTTS }
func (m *TTS) InputType() pipeline.DataType  { return pipeline.TypeText }
func (m *TTS) OutputType() pipeline.DataType { return pipeline.TypeAudio }

type ttsInput struct {
	text    string
	voice   string
	emotion string
	speed   float64
}

func (m *TTS) ExtractInput(_ context.Context, run *pipeline.Run, msg *message.Message) (any, bool, error) {
	if !run.Payload().Enabled(NameTTS, false) {
		return nil, false, nil
	}
	text, _ := msg.Body.(string)
	if strings.TrimSpace(text) == "" {
		return nil, false, nil
	}
	sec, _ := run.Payload().Section(NameTTS)
	in := ttsInput{
		text:    text,
		voice:   sec.String("voice"),
		emotion: sec.String("emotion"),
	}
	if in.voice == "" {
		in.voice = m.opts.DefaultVoice
	}
	if v, ok := sec["speed"].(float64); ok {
		in.speed = v
	}
	return in, true, nil
}

func (m *TTS) OpenGenerator(ctx context.Context, _ *pipeline.Run, _ *message.Message, input any) (pipeline.Generator, error) {
	const op = "TTS.OpenGenerator"
	in := input.(ttsInput)

	voice, err := m.catalog.Get(ctx, in.voice)
	if err != nil {
		return nil, err
	}
	ref, err := voice.Resolve(in.emotion)
	if err != nil {
		return nil, err
	}
	req := tts.Request{
		Text:         in.text,
		TextLang:     ref.Lang,
		RefAudioPath: ref.RefFile,
		PromptText:   ref.RefText,
		PromptLang:   ref.Lang,
		SpeedFactor:  in.speed,
	}
	key := cache.Key("tts", voice.Name, in.emotion, fmt.Sprint(in.speed), in.text)

	return pipeline.Once(func(ctx context.Context) (any, error) {
		if m.cache != nil {
			if b, hit, err := m.cache.GetBytes(ctx, key); err == nil && hit {
				return b, nil
			}
		}
		audio, err := m.provider.Synthesize(ctx, req)
		if err != nil {
			return nil, utils.E(utils.CodeUpstream, op, "speech synthesis failed", err)
		}
		if m.cache != nil {
			if err := m.cache.SetBytes(ctx, key, audio, m.opts.CacheTTL); err != nil && m.log != nil {
				m.log.WithError(err).Warn("tts cache write failed")
			}
		}
		return audio, nil
	}), nil
}

func (m *TTS) TransformChunk(_ context.Context, _ *pipeline.Run, raw any) ([]any, error) {
	b, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("tts: unexpected chunk %T", raw)
	}
	if len(b) == 0 {
		return nil, nil
	}
	return []any{Audio(b)}, nil
}

func (m *TTS) WrapForOutput(_ *pipeline.Run, msg *message.Message, chunk any) *message.Output {
	if a, ok := chunk.(Audio); ok {
		return message.OutputFor(msg, message.KindAudio, []byte(a))
	}
	return nil
}

func (m *TTS) WrapForNext(_ *pipeline.Run, msg *message.Message, chunk any) *message.Message {
	if a, ok := chunk.(Audio); ok {
		return msg.Derive(message.KindAudio, []byte(a))
	}
	return nil
}

func (m *TTS) Finalize(context.Context, *pipeline.Run, *message.Message) ([]any, error) {
	return nil, nil
}

// Heartbeat synthesises a short clip in the default voice, bypassing the
// cache.
func (m *TTS) Heartbeat(ctx context.Context) error {
	const op = "TTS.Heartbeat"
	voice, err := m.catalog.Get(ctx, m.opts.DefaultVoice)
	if err != nil {
		return err
	}
	ref, err := voice.Resolve("")
	if err != nil {
		return err
	}
	if _, err := m.provider.Synthesize(ctx, tts.Request{
		Text:         heartbeatText,
		RefAudioPath: ref.RefFile,
		PromptText:   ref.RefText,
		PromptLang:   ref.Lang,
	}); err != nil {
		return utils.E(utils.CodeUpstream, op, "warm-up synthesis failed", err)
	}
	return nil
}
