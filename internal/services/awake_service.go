package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/yoockh/voicechain/internal/sentence"
	"github.com/yoockh/voicechain/internal/storage"
	"github.com/yoockh/voicechain/internal/utils"
	"github.com/yoockh/voicechain/internal/voices"
)

type AwakeService interface {
	// Greet emits the voice's awake text as a finished aggregate followed by
	// its greeting clip. A missing clip becomes an error frame.
	Greet(ctx context.Context, user, voice string, emit func(Frame) error) error
}

type awakeService struct {
	voices       voices.Catalog
	assets       storage.AssetStore
	defaultVoice string
}

func NewAwakeService(catalog voices.Catalog, assets storage.AssetStore, defaultVoice string) AwakeService {
	return &awakeService{voices: catalog, assets: assets, defaultVoice: defaultVoice}
}

func (s *awakeService) Greet(ctx context.Context, user, voice string, emit func(Frame) error) error {
	const op = "AwakeService.Greet"

	if strings.TrimSpace(user) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "user is required", nil)
	}
	if voice == "" {
		voice = s.defaultVoice
	}
	v, err := s.voices.Get(ctx, voice)
	if err != nil {
		return err
	}

	summary, err := json.Marshal(sentence.Summary{Response: v.AwakeText, IsEnd: true})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "encode greeting", err)
	}
	if err := emit(Frame{Type: FrameText, Chunk: string(summary)}); err != nil {
		return err
	}

	if s.assets == nil || v.AwakeAudio == "" {
		return emit(Frame{Type: FrameError, Chunk: "awake audio not configured for voice " + v.Name})
	}
	audio, err := s.assets.Read(ctx, v.AwakeAudio)
	if err != nil {
		return emit(Frame{Type: FrameError, Chunk: utils.SafeMessage(err)})
	}
	return emit(Frame{Type: FrameAudio, Chunk: base64.StdEncoding.EncodeToString(audio)})
}
