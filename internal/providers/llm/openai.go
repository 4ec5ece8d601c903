package llm

import (
	"context"
	"errors"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI streams chat completions from any OpenAI-compatible endpoint.
type OpenAI struct {
	client       openai.Client
	model        string
	systemPrompt string
}

func NewOpenAI(apiKey, baseURL, model, systemPrompt string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: systemPrompt,
	}
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) StreamAnswer(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		var msgs []openai.ChatCompletionMessageParamUnion
		if o.systemPrompt != "" {
			msgs = append(msgs, openai.SystemMessage(o.systemPrompt))
		}
		msgs = append(msgs, openai.UserMessage(req.Query))

		stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:    o.model,
			Messages: msgs,
		})
		defer stream.Close()

		var id string
		for stream.Next() {
			chunk := stream.Current()
			if id == "" {
				id = chunk.ID
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, out, Chunk{Text: chunk.Choices[0].Delta.Content, MessageID: id}) {
				return
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			errs <- err
			return
		}
		send(ctx, out, Chunk{End: true, MessageID: id})
	}()

	return out, errs
}
