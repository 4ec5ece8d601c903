package llm

import (
	"context"
	"strings"
	"time"
)

// Echo replays the query in small pieces. It backs local runs without an
// upstream model.
type Echo struct {
	Piece int
	Delay time.Duration
}

func (e *Echo) Close() error { return nil }

func (e *Echo) StreamAnswer(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		piece := e.Piece
		if piece <= 0 {
			piece = 4
		}
		runes := []rune(strings.TrimSpace(req.Query))
		for i := 0; i < len(runes); i += piece {
			end := min(i+piece, len(runes))
			if e.Delay > 0 {
				select {
				case <-time.After(e.Delay):
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if !send(ctx, out, Chunk{Text: string(runes[i:end]), ConversationID: "echo"}) {
				return
			}
		}
		send(ctx, out, Chunk{End: true, ConversationID: "echo"})
	}()

	return out, errs
}
