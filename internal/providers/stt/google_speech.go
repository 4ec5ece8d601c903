package stt

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	Encoding        speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz    int32
	DefaultLanguage string
}

// NewGoogleSpeech expects 16-bit linear PCM at sampleRate (16000 when zero).
func NewGoogleSpeech(ctx context.Context, language string, sampleRate int32) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if language == "" {
		language = "zh-CN"
	}
	return &GoogleSpeech{
		c:               c,
		Encoding:        speechpb.RecognitionConfig_LINEAR16,
		SampleRateHz:    sampleRate,
		DefaultLanguage: language,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// language example: "zh-CN", "en-US"
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (Result, error) {
	if language == "" {
		language = g.DefaultLanguage
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Result{}, err
	}

	// Results cover consecutive portions of the audio; keep the best
	// alternative of each.
	res := Result{Language: language}
	var confSum float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		best := r.Alternatives[0]
		for _, alt := range r.Alternatives[1:] {
			if alt.Confidence > best.Confidence {
				best = alt
			}
		}
		res.Text += best.Transcript
		confSum += float64(best.Confidence)
		res.Segments++
	}
	if res.Segments > 0 {
		res.Confidence = confSum / float64(res.Segments)
	}
	return res, nil
}
