package stt

import "context"

// Result is one recognised utterance.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	Segments   int     `json:"segments"`
}

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Result, error)
	Close() error
}
