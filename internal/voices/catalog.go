// Package voices resolves synthesis voices and their per-emotion reference
// clips.
package voices

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/yoockh/voicechain/internal/cache"
	"github.com/yoockh/voicechain/internal/models"
	"github.com/yoockh/voicechain/internal/repositories/postgres"
	"github.com/yoockh/voicechain/internal/utils"
)

// Emotion is the reference clip and its transcript for one emotion.
type Emotion struct {
	RefFile string `json:"reffile" yaml:"reffile"`
	RefText string `json:"reftext" yaml:"reftext"`
	Lang    string `json:"lang,omitempty" yaml:"lang"`
}

type Voice struct {
	Name           string             `json:"name" yaml:"name"`
	DisplayName    string             `json:"display_name,omitempty" yaml:"display_name"`
	DefaultEmotion string             `json:"default_emotion,omitempty" yaml:"default_emotion"`
	AwakeText      string             `json:"awake_text,omitempty" yaml:"awake_text"`
	AwakeAudio     string             `json:"awake_audio,omitempty" yaml:"awake_audio"`
	Tags           []string           `json:"tags,omitempty" yaml:"tags"`
	Emotions       map[string]Emotion `json:"emotions" yaml:"emotions"`
}

// Resolve picks the clip for emotion, falling back to the voice's default
// emotion when emotion is empty.
func (v *Voice) Resolve(emotion string) (Emotion, error) {
	const op = "Voice.Resolve"
	if emotion == "" {
		emotion = v.DefaultEmotion
	}
	if e, ok := v.Emotions[emotion]; ok {
		return e, nil
	}
	if emotion == "" && len(v.Emotions) == 1 {
		for _, e := range v.Emotions {
			return e, nil
		}
	}
	return Emotion{}, utils.E(utils.CodeNotFound, op, "voice "+v.Name+" has no emotion "+emotion, nil)
}

type Catalog interface {
	Get(ctx context.Context, name string) (*Voice, error)
	List(ctx context.Context) ([]Voice, error)
}

// Static is an in-memory catalog, usually loaded from YAML.
type Static struct {
	mu     sync.RWMutex
	voices map[string]Voice
}

func NewStatic(vs ...Voice) *Static {
	s := &Static{voices: make(map[string]Voice, len(vs))}
	for _, v := range vs {
		s.voices[v.Name] = v
	}
	return s
}

// File is the on-disk layout of a voice catalog.
type File struct {
	Default string  `yaml:"default"`
	Voices  []Voice `yaml:"voices"`
}

// LoadFile reads a YAML voice catalog.
func LoadFile(path string) (*Static, string, error) {
	const op = "voices.LoadFile"
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", utils.E(utils.CodeConfiguration, op, "read voice catalog", err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, "", utils.E(utils.CodeConfiguration, op, "parse voice catalog", err)
	}
	return NewStatic(f.Voices...), f.Default, nil
}

func (s *Static) Get(_ context.Context, name string) (*Voice, error) {
	const op = "Static.Get"
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.voices[name]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "unknown voice "+name, nil)
	}
	return &v, nil
}

func (s *Static) List(context.Context) ([]Voice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Voice, 0, len(s.voices))
	for _, v := range s.voices {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Postgres reads voices from the voices table.
type Postgres struct {
	repo postgres.VoiceRepository
}

func NewPostgres(repo postgres.VoiceRepository) *Postgres {
	return &Postgres{repo: repo}
}

func (p *Postgres) Get(ctx context.Context, name string) (*Voice, error) {
	const op = "Postgres.Get"
	row, err := p.repo.GetByName(ctx, name)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "unknown voice "+name, err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "load voice", err)
	}
	return FromModel(row)
}

func (p *Postgres) List(ctx context.Context) ([]Voice, error) {
	const op = "Postgres.List"
	rows, err := p.repo.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "list voices", err)
	}
	out := make([]Voice, 0, len(rows))
	for i := range rows {
		v, err := FromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// FromModel decodes a voice row.
func FromModel(m *models.Voice) (*Voice, error) {
	const op = "voices.FromModel"
	v := &Voice{
		Name:           m.Name,
		DisplayName:    m.DisplayName,
		DefaultEmotion: m.DefaultEmotion,
		AwakeText:      m.AwakeText,
		AwakeAudio:     m.AwakeAudio,
		Tags:           []string(m.Tags),
		Emotions:       map[string]Emotion{},
	}
	if len(m.Emotions) > 0 {
		if err := json.Unmarshal(m.Emotions, &v.Emotions); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "decode emotions of "+m.Name, err)
		}
	}
	return v, nil
}

// ToModel encodes v as a voice row.
func ToModel(v Voice) (*models.Voice, error) {
	emotions, err := json.Marshal(v.Emotions)
	if err != nil {
		return nil, err
	}
	return &models.Voice{
		Name:           v.Name,
		DisplayName:    v.DisplayName,
		DefaultEmotion: v.DefaultEmotion,
		AwakeText:      v.AwakeText,
		AwakeAudio:     v.AwakeAudio,
		Tags:           v.Tags,
		Emotions:       emotions,
	}, nil
}

// Seed upserts vs into the voices table.
func Seed(ctx context.Context, repo postgres.VoiceRepository, vs []Voice) error {
	const op = "voices.Seed"
	for _, v := range vs {
		row, err := ToModel(v)
		if err != nil {
			return utils.E(utils.CodeInternal, op, "encode voice "+v.Name, err)
		}
		if err := repo.Upsert(ctx, row); err != nil {
			return utils.E(utils.CodeUnavailable, op, "upsert voice "+v.Name, err)
		}
	}
	return nil
}

// Cached memoises Get lookups of another catalog.
type Cached struct {
	inner Catalog
	cache cache.Cache
	ttl   time.Duration
}

func NewCached(inner Catalog, c cache.Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

func cacheKey(name string) string { return "voice:" + name }

func (c *Cached) Get(ctx context.Context, name string) (*Voice, error) {
	var v Voice
	if hit, err := c.cache.GetJSON(ctx, cacheKey(name), &v); err == nil && hit {
		return &v, nil
	}
	got, err := c.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, cacheKey(name), got, c.ttl)
	return got, nil
}

func (c *Cached) List(ctx context.Context) ([]Voice, error) { return c.inner.List(ctx) }

// Invalidate drops cached entries for names.
func (c *Cached) Invalidate(ctx context.Context, names ...string) error {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = cacheKey(n)
	}
	return c.cache.Del(ctx, keys...)
}
