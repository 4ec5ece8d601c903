package pipeline

import (
	"context"

	"google.golang.org/api/iterator"
)

// Generator is a lazy finite sequence of raw chunks from an upstream call.
// Next returns iterator.Done once the sequence is exhausted.
type Generator interface {
	Next(ctx context.Context) (any, error)
}

type chanGenerator[T any] struct {
	out  <-chan T
	errs <-chan error
	// err is a trailing error held back while values were still buffered.
	err error
}

// FromChannels adapts the (values, errors) channel pair returned by the
// streaming providers. The producer sends at most one error and closes errs
// before or together with out.
func FromChannels[T any](out <-chan T, errs <-chan error) Generator {
	return &chanGenerator[T]{out: out, errs: errs}
}

func (g *chanGenerator[T]) Next(ctx context.Context) (any, error) {
	// Values already produced come before a trailing error.
	select {
	case v, ok := <-g.out:
		if ok {
			return v, nil
		}
		return nil, g.drainErr(ctx)
	default:
	}
	if g.err != nil {
		err := g.err
		g.err = nil
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err, ok := <-g.errs:
			g.errs = nil
			if !ok || err == nil {
				continue
			}
			select {
			case v, ok := <-g.out:
				if ok {
					g.err = err
					return v, nil
				}
			default:
			}
			return nil, err
		case v, ok := <-g.out:
			if ok {
				return v, nil
			}
			return nil, g.drainErr(ctx)
		}
	}
}

// drainErr reports a pending error once out is closed.
func (g *chanGenerator[T]) drainErr(ctx context.Context) error {
	if g.err != nil {
		err := g.err
		g.err = nil
		return err
	}
	if g.errs == nil {
		return iterator.Done
	}
	select {
	case err, ok := <-g.errs:
		g.errs = nil
		if ok && err != nil {
			return err
		}
		return iterator.Done
	case <-ctx.Done():
		return ctx.Err()
	}
}

type sliceGenerator struct {
	items []any
}

// FromSlice yields items in order.
func FromSlice(items ...any) Generator {
	return &sliceGenerator{items: items}
}

func (g *sliceGenerator) Next(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(g.items) == 0 {
		return nil, iterator.Done
	}
	v := g.items[0]
	g.items = g.items[1:]
	return v, nil
}

// GeneratorFunc adapts a plain function.
type GeneratorFunc func(ctx context.Context) (any, error)

func (f GeneratorFunc) Next(ctx context.Context) (any, error) { return f(ctx) }

type onceGenerator struct {
	fn   func(ctx context.Context) (any, error)
	done bool
}

// Once runs fn on the first Next and yields its result as the only chunk.
// A nil result ends the sequence without a chunk.
func Once(fn func(ctx context.Context) (any, error)) Generator {
	return &onceGenerator{fn: fn}
}

func (g *onceGenerator) Next(ctx context.Context) (any, error) {
	if g.done {
		return nil, iterator.Done
	}
	g.done = true
	v, err := g.fn(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, iterator.Done
	}
	return v, nil
}
