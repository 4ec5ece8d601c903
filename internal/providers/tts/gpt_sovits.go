package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GPTSovits calls the GPT-SoVITS v2 inference API.
type GPTSovits struct {
	endpoint string
	http     *http.Client
}

// NewGPTSovits takes the full synthesis URL, e.g. http://host:9880/tts.
func NewGPTSovits(endpoint string, timeout time.Duration) *GPTSovits {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &GPTSovits{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

type sovitsPayload struct {
	Text              string   `json:"text"`
	TextLang          string   `json:"text_lang"`
	RefAudioPath      string   `json:"ref_audio_path"`
	AuxRefAudioPaths  []string `json:"aux_ref_audio_paths"`
	PromptText        string   `json:"prompt_text"`
	PromptLang        string   `json:"prompt_lang"`
	TopK              int      `json:"top_k"`
	TopP              float64  `json:"top_p"`
	Temperature       float64  `json:"temperature"`
	TextSplitMethod   string   `json:"text_split_method"`
	ReturnFragment    bool     `json:"return_fragment"`
	BatchSize         int      `json:"batch_size"`
	BatchThreshold    float64  `json:"batch_threshold"`
	SplitBucket       bool     `json:"split_bucket"`
	SpeedFactor       float64  `json:"speed_factor"`
	StreamingMode     bool     `json:"streaming_mode"`
	Seed              int      `json:"seed"`
	ParallelInfer     bool     `json:"parallel_infer"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	SampleSteps       int      `json:"sample_steps"`
}

func newSovitsPayload(req Request) sovitsPayload {
	lang := func(v string) string {
		if v == "" {
			return "zh"
		}
		return v
	}
	speed := req.SpeedFactor
	if speed <= 0 {
		speed = 1.0
	}
	return sovitsPayload{
		Text:              req.Text,
		TextLang:          lang(req.TextLang),
		RefAudioPath:      req.RefAudioPath,
		AuxRefAudioPaths:  []string{},
		PromptText:        req.PromptText,
		PromptLang:        lang(req.PromptLang),
		TopK:              5,
		TopP:              1,
		Temperature:       1,
		TextSplitMethod:   "cut6",
		BatchSize:         8,
		BatchThreshold:    0.75,
		SpeedFactor:       speed,
		Seed:              -1,
		ParallelInfer:     true,
		RepetitionPenalty: 1.35,
		SampleSteps:       16,
	}
}

func (g *GPTSovits) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(newSovitsPayload(req))
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, fmt.Errorf("gpt-sovits: status %d: %s", resp.StatusCode, strings.TrimSpace(msg))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("gpt-sovits: empty audio for %q", req.Text)
	}
	return data, nil
}
