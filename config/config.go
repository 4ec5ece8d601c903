package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/voicechain/internal/utils"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	QueueSweepInterval time.Duration
	QueueMaxIdle       time.Duration
	QueuePollTimeout   time.Duration

	PipelineFile string

	LLMProvider     string // dify|vertex|openai|mock
	LLMSystemPrompt string
	DifyBaseURL     string
	DifyAPIKey      string
	DifyTimeout     time.Duration
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	VertexProject   string
	VertexLocation  string
	VertexModel     string

	TTSEndpoint     string
	TTSTimeout      time.Duration
	TTSCacheTTL     time.Duration
	TTSDefaultVoice string

	AvatarURL     string
	AvatarTimeout time.Duration

	STTEnabled    bool
	STTLanguage   string
	STTSampleRate int

	RedisAddr             string
	MemoryCacheMaxEntries int
	MemoryCacheSweep      time.Duration
	MongoURI              string
	MongoDB               string
	RunLogTTL             time.Duration
	PostgresURI           string

	VoiceBackend  string // yaml|postgres
	VoiceCacheTTL time.Duration

	AssetsDir    string
	AssetsBucket string
	AssetsPrefix string

	HeartbeatInterval time.Duration
}

// Load reads Config from the environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	const op = "config.Load"
	e := envReader{get: getenv}

	c := Config{
		Port:      e.str("PORT", "8080"),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),

		QueueSweepInterval: e.dur("QUEUE_SWEEP_INTERVAL", 5*time.Second),
		QueueMaxIdle:       e.dur("QUEUE_MAX_IDLE", 60*time.Second),
		QueuePollTimeout:   e.dur("QUEUE_POLL_TIMEOUT", 10*time.Second),

		PipelineFile: e.str("PIPELINE_CONFIG", ""),

		LLMProvider:     strings.ToLower(e.str("LLM_PROVIDER", "dify")),
		LLMSystemPrompt: e.str("LLM_SYSTEM_PROMPT", ""),
		DifyBaseURL:     e.str("DIFY_BASE_URL", "http://localhost/v1"),
		DifyAPIKey:      e.str("DIFY_API_KEY", ""),
		DifyTimeout:     e.dur("DIFY_TIMEOUT", 120*time.Second),
		OpenAIAPIKey:    e.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   e.str("OPENAI_BASE_URL", ""),
		OpenAIModel:     e.str("OPENAI_MODEL", "gpt-4o-mini"),
		VertexProject:   e.str("VERTEX_PROJECT", ""),
		VertexLocation:  e.str("VERTEX_LOCATION", "us-central1"),
		VertexModel:     e.str("VERTEX_MODEL", "gemini-2.0-flash"),

		TTSEndpoint:     e.str("TTS_ENDPOINT", "http://127.0.0.1:9880/tts"),
		TTSTimeout:      e.dur("TTS_TIMEOUT", 60*time.Second),
		TTSCacheTTL:     e.dur("TTS_CACHE_TTL", 24*time.Hour),
		TTSDefaultVoice: e.str("TTS_DEFAULT_VOICE", ""),

		AvatarURL:     e.str("AVATAR_URL", ""),
		AvatarTimeout: e.dur("AVATAR_TIMEOUT", 30*time.Second),

		STTEnabled:    e.boolean("STT_ENABLED", false),
		STTLanguage:   e.str("STT_LANGUAGE", "zh-CN"),
		STTSampleRate: e.integer("STT_SAMPLE_RATE", 16000),

		RedisAddr:             firstSet(getenv, "REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		MemoryCacheMaxEntries: e.integer("MEMORY_CACHE_MAX_ENTRIES", 2048),
		MemoryCacheSweep:      e.dur("MEMORY_CACHE_SWEEP_INTERVAL", time.Minute),
		MongoURI:              e.str("MONGO_URI", ""),
		MongoDB:               e.str("MONGO_DB", "voicechain"),
		RunLogTTL:             e.dur("RUN_LOG_TTL", 7*24*time.Hour),
		PostgresURI:           e.str("POSTGRES_URI", ""),

		VoiceBackend:  strings.ToLower(e.str("VOICE_BACKEND", "yaml")),
		VoiceCacheTTL: e.dur("VOICE_CACHE_TTL", 10*time.Minute),

		AssetsDir:    e.str("ASSETS_DIR", "assets"),
		AssetsBucket: e.str("ASSETS_BUCKET", ""),
		AssetsPrefix: e.str("ASSETS_PREFIX", ""),

		HeartbeatInterval: e.dur("HEARTBEAT_INTERVAL", 0),
	}
	if e.err != nil {
		return Config{}, utils.E(utils.CodeConfiguration, op, "invalid environment", e.err)
	}

	switch c.LLMProvider {
	case "dify", "vertex", "openai", "mock":
	default:
		return Config{}, utils.E(utils.CodeConfiguration, op, "unknown LLM_PROVIDER "+c.LLMProvider, nil)
	}
	switch c.VoiceBackend {
	case "yaml":
	case "postgres":
		if c.PostgresURI == "" {
			return Config{}, utils.E(utils.CodeConfiguration, op, "VOICE_BACKEND=postgres requires POSTGRES_URI", nil)
		}
	default:
		return Config{}, utils.E(utils.CodeConfiguration, op, "unknown VOICE_BACKEND "+c.VoiceBackend, nil)
	}
	return c, nil
}

type envReader struct {
	get func(string) string
	err error
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) dur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) integer(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = utils.E(utils.CodeConfiguration, "config.env", key, err)
	}
}

func firstSet(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
