package modules

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/internal/cache"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/providers/avatar"
	"github.com/yoockh/voicechain/internal/providers/llm"
	"github.com/yoockh/voicechain/internal/providers/stt"
	"github.com/yoockh/voicechain/internal/providers/tts"
	"github.com/yoockh/voicechain/internal/utils"
	"github.com/yoockh/voicechain/internal/voices"
)

// Deps are the collaborators stages may need. Only the ones used by the
// requested stages must be set.
type Deps struct {
	LLM        llm.Provider
	TTS        tts.Provider
	Voices     voices.Catalog
	Cache      cache.Cache
	TTSOptions TTSOptions
	Avatar     avatar.Driver
	STT        stt.Provider
	Log        *logrus.Logger
}

type factory func(d Deps) (pipeline.Module, error)

var factories = map[string]factory{
	NameLLM: func(d Deps) (pipeline.Module, error) {
		if d.LLM == nil {
			return nil, missing(NameLLM, "llm provider")
		}
		return NewLLM(d.LLM, d.Log), nil
	},
	NameTTS: func(d Deps) (pipeline.Module, error) {
		if d.TTS == nil || d.Voices == nil {
			return nil, missing(NameTTS, "tts provider and voice catalog")
		}
		return NewTTS(d.TTS, d.Voices, d.Cache, d.TTSOptions, d.Log), nil
	},
	NameAvatar: func(d Deps) (pipeline.Module, error) {
		if d.Avatar == nil {
			return nil, missing(NameAvatar, "avatar driver")
		}
		return NewAvatar(d.Avatar), nil
	},
	NameASR: func(d Deps) (pipeline.Module, error) {
		if d.STT == nil {
			return nil, missing(NameASR, "speech recognition provider")
		}
		return NewASR(d.STT), nil
	},
}

func missing(stage, what string) error {
	return utils.E(utils.CodeConfiguration, "modules.Build", stage+" requires "+what, nil)
}

// Build instantiates the named stages in order.
func Build(names []string, d Deps) ([]pipeline.Module, error) {
	const op = "modules.Build"
	out := make([]pipeline.Module, 0, len(names))
	for _, n := range names {
		f, ok := factories[n]
		if !ok {
			return nil, utils.E(utils.CodeConfiguration, op, "unknown module "+n, nil)
		}
		m, err := f(d)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Known lists the stage names Build accepts.
func Known() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
