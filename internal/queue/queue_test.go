package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/utils"
)

func text(req, body string) message.Output {
	return message.Output{Kind: message.KindText, Body: body, RequestID: req}
}

func TestQueuePutRejectsForeignRequest(t *testing.T) {
	q := New("r1", time.Second)

	err := q.Put(text("r2", "x"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
	assert.Equal(t, 0, q.Len())
}

func TestQueuePutAfterClose(t *testing.T) {
	q := New("r1", time.Second)
	q.Close()
	q.Close()

	err := q.Put(text("r1", "x"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
	assert.True(t, q.Closed())
}

func TestQueueCloseWithSealsFinalOutput(t *testing.T) {
	q := New("r1", time.Second)
	require.NoError(t, q.Put(text("r1", "a")))
	require.NoError(t, q.CloseWith(message.End("u1", "r1")))
	assert.True(t, q.Closed())

	err := q.Put(text("r1", "late"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
	err = q.CloseWith(message.End("u1", "r1"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))

	var kinds []message.Kind
	require.NoError(t, q.Consume(context.Background(), func(o message.Output) error {
		kinds = append(kinds, o.Kind)
		return nil
	}))
	assert.Equal(t, []message.Kind{message.KindText, message.KindEnd}, kinds)
}

func TestQueueCloseWithRejectsForeignRequest(t *testing.T) {
	q := New("r1", time.Second)
	err := q.CloseWith(message.End("u1", "r2"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
	assert.False(t, q.Closed())
}

func TestQueueDeliversInOrderThenDone(t *testing.T) {
	q := New("r1", time.Second)
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, q.Put(text("r1", s)))
	}
	require.NoError(t, q.Put(message.End("u", "r1")))
	q.Close()

	var got []message.Output
	err := q.Consume(context.Background(), func(out message.Output) error {
		got = append(got, out)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "a", got[0].Body)
	assert.Equal(t, "b", got[1].Body)
	assert.Equal(t, "c", got[2].Body)
	assert.Equal(t, message.KindEnd, got[3].Kind)

	_, err = q.Next(context.Background())
	assert.Equal(t, iterator.Done, err)
}

func TestQueueInterleavedProducerConsumer(t *testing.T) {
	q := New("r1", 20*time.Millisecond)
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			assert.NoError(t, q.Put(message.Output{Kind: message.KindText, Body: i, RequestID: "r1"}))
			if i%50 == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		q.Close()
	}()

	next := 0
	err := q.Consume(context.Background(), func(out message.Output) error {
		assert.Equal(t, next, out.Body)
		next++
		return nil
	})
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, n, next)
}

func TestQueueNextObservesCancellation(t *testing.T) {
	q := New("r1", 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseWakesBlockedConsumer(t *testing.T) {
	q := New("r1", time.Hour)
	done := make(chan error, 1)
	go func() {
		_, err := q.Next(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.Equal(t, iterator.Done, err)
	case <-time.After(time.Second):
		t.Fatal("consumer was not woken by Close")
	}
}

func TestParamsHelpers(t *testing.T) {
	p := Params{
		"TTS": map[string]any{"voice": "alice", "speed": 1.5},
		"LLM": map[string]any{"enable": false, "min_sentences": float64(2)},
		"off": map[string]any{"enable": "false"},
	}

	assert.True(t, p.Enabled("TTS", false))
	assert.False(t, p.Enabled("LLM", true))
	assert.False(t, p.Enabled("off", true))
	assert.True(t, p.Enabled("missing", true))
	assert.False(t, p.Enabled("missing", false))

	tts, ok := p.Section("TTS")
	require.True(t, ok)
	assert.Equal(t, "alice", tts.String("voice"))
	assert.Equal(t, "1.5", tts.String("speed"))

	llm, _ := p.Section("LLM")
	assert.Equal(t, 2, llm.Int("min_sentences", 1))
	assert.Equal(t, 7, llm.Int("absent", 7))

	var nilParams Params
	_, ok = nilParams.Section("x")
	assert.False(t, ok)
	assert.Equal(t, "", nilParams.String("x"))
}
