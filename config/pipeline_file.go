package config

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/yoockh/voicechain/internal/utils"
)

// DefaultModules is the chain used when no pipeline file is configured.
var DefaultModules = []string{"LLM", "TTS"}

// PipelineFile describes the module chain and where its voices live.
//
//	modules: [ASR, LLM, TTS]
//	voices_file: voices.yaml
//	default_voice: alice
type PipelineFile struct {
	Modules      []string `yaml:"modules"`
	VoicesFile   string   `yaml:"voices_file"`
	DefaultVoice string   `yaml:"default_voice"`
}

// LoadPipelineFile reads path. An empty path yields the defaults. A relative
// voices_file is resolved against the pipeline file's directory.
func LoadPipelineFile(path string) (PipelineFile, error) {
	const op = "config.LoadPipelineFile"
	if path == "" {
		return PipelineFile{Modules: append([]string(nil), DefaultModules...)}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return PipelineFile{}, utils.E(utils.CodeConfiguration, op, "read pipeline file", err)
	}
	var f PipelineFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return PipelineFile{}, utils.E(utils.CodeConfiguration, op, "parse pipeline file", err)
	}
	if len(f.Modules) == 0 {
		f.Modules = append([]string(nil), DefaultModules...)
	}
	if f.VoicesFile != "" && !filepath.IsAbs(f.VoicesFile) {
		f.VoicesFile = filepath.Join(filepath.Dir(path), f.VoicesFile)
	}
	return f, nil
}
