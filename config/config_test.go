package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicechain/internal/utils"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	c, err := load(envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 5*time.Second, c.QueueSweepInterval)
	assert.Equal(t, 60*time.Second, c.QueueMaxIdle)
	assert.Equal(t, "dify", c.LLMProvider)
	assert.Equal(t, "yaml", c.VoiceBackend)
	assert.Zero(t, c.HeartbeatInterval)
}

func TestLoadOverrides(t *testing.T) {
	c, err := load(envOf(map[string]string{
		"QUEUE_MAX_IDLE":     "2m",
		"LLM_PROVIDER":       "OpenAI",
		"STT_ENABLED":        "true",
		"REDIS_URL":          "redis://cache:6379/0",
		"HEARTBEAT_INTERVAL": "30s",
	}))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, c.QueueMaxIdle)
	assert.Equal(t, "openai", c.LLMProvider)
	assert.True(t, c.STTEnabled)
	assert.Equal(t, "redis://cache:6379/0", c.RedisAddr)
	assert.Equal(t, 30*time.Second, c.HeartbeatInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for _, env := range []map[string]string{
		{"QUEUE_SWEEP_INTERVAL": "soon"},
		{"LLM_PROVIDER": "eliza"},
		{"VOICE_BACKEND": "postgres"},
		{"STT_SAMPLE_RATE": "fast"},
	} {
		_, err := load(envOf(env))
		assert.True(t, utils.IsCode(err, utils.CodeConfiguration), "%v", env)
	}
}

func TestLoadPipelineFile(t *testing.T) {
	f, err := LoadPipelineFile("")
	require.NoError(t, err)
	assert.Equal(t, []string{"LLM", "TTS"}, f.Modules)

	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modules: [ASR, LLM, Avatar, TTS]\nvoices_file: voices.yaml\ndefault_voice: alice\n"), 0o644))

	f, err = LoadPipelineFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ASR", "LLM", "Avatar", "TTS"}, f.Modules)
	assert.Equal(t, filepath.Join(dir, "voices.yaml"), f.VoicesFile)
	assert.Equal(t, "alice", f.DefaultVoice)

	require.NoError(t, os.WriteFile(path, []byte("modules: [LLM\n"), 0o644))
	_, err = LoadPipelineFile(path)
	assert.True(t, utils.IsCode(err, utils.CodeConfiguration))
}
