package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

func collect(t *testing.T, g Generator) ([]any, error) {
	t.Helper()
	var got []any
	for {
		v, err := g.Next(context.Background())
		if err == iterator.Done {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		got = append(got, v)
	}
}

func TestFromChannelsDeliversAllValues(t *testing.T) {
	out := make(chan string, 3)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		out <- "a"
		out <- "b"
		out <- "c"
	}()

	got, err := collect(t, FromChannels(out, errs))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, got)
}

func TestFromChannelsSurfacesError(t *testing.T) {
	out := make(chan string, 1)
	errs := make(chan error, 1)
	boom := errors.New("upstream closed")
	go func() {
		defer close(out)
		defer close(errs)
		errs <- boom
	}()

	_, err := collect(t, FromChannels(out, errs))
	assert.ErrorIs(t, err, boom)
}

func TestFromChannelsValueRacingTrailingError(t *testing.T) {
	boom := errors.New("stream reset")
	for i := 0; i < 500; i++ {
		out := make(chan string, 2)
		errs := make(chan error, 1)
		g := FromChannels(out, errs)
		go func() {
			out <- "a"
			out <- "b"
			errs <- boom
			close(errs)
			close(out)
		}()

		got, err := collect(t, g)
		require.ErrorIs(t, err, boom)
		require.Equal(t, []any{"a", "b"}, got)
	}
}

func TestFromChannelsHeldErrorFollowsBufferedValues(t *testing.T) {
	boom := errors.New("stream reset")
	out := make(chan string, 2)
	out <- "b"
	out <- "c"
	g := &chanGenerator[string]{out: out, err: boom}

	got, err := collect(t, g)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []any{"b", "c"}, got)
}

func TestFromChannelsNilErrs(t *testing.T) {
	out := make(chan int, 2)
	out <- 1
	out <- 2
	close(out)

	got, err := collect(t, FromChannels[int](out, nil))
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)
}

func TestFromChannelsHonoursContext(t *testing.T) {
	g := FromChannels(make(chan string), make(chan error))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromSlice(t *testing.T) {
	got, err := collect(t, FromSlice("x", 2))
	require.NoError(t, err)
	assert.Equal(t, []any{"x", 2}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FromSlice("y").Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOnceRunsLazily(t *testing.T) {
	calls := 0
	g := Once(func(context.Context) (any, error) {
		calls++
		return "clip", nil
	})
	assert.Equal(t, 0, calls)

	got, err := collect(t, g)
	require.NoError(t, err)
	assert.Equal(t, []any{"clip"}, got)
	assert.Equal(t, 1, calls)

	got, err = collect(t, Once(func(context.Context) (any, error) { return nil, nil }))
	require.NoError(t, err)
	assert.Empty(t, got)

	boom := errors.New("synth failed")
	_, err = collect(t, Once(func(context.Context) (any, error) { return nil, boom }))
	assert.ErrorIs(t, err, boom)
}
