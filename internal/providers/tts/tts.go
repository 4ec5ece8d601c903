package tts

import "context"

// Request asks for one clip in the voice described by the reference audio
// and its transcript.
type Request struct {
	Text         string
	TextLang     string
	RefAudioPath string
	PromptText   string
	PromptLang   string
	SpeedFactor  float64
}

type Provider interface {
	// Synthesize returns one complete encoded audio clip for req.Text.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
