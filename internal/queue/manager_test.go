package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/metrics"
	"github.com/yoockh/voicechain/internal/utils"
)

func TestCreateOrGetIsIdempotent(t *testing.T) {
	m := NewManager()

	q1, err := m.CreateOrGet(RequestContext{RequestID: "r1", UserID: "u1"})
	require.NoError(t, err)
	q2, err := m.CreateOrGet(RequestContext{RequestID: "r1", UserID: "other"})
	require.NoError(t, err)

	assert.Same(t, q1, q2)
	assert.Equal(t, 1, m.Len())

	rc, err := m.Context("r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rc.UserID)
	assert.False(t, rc.CreatedAt.IsZero())
	assert.Equal(t, DefaultPollTimeout, rc.Timeout)
}

func TestCreateOrGetRequiresID(t *testing.T) {
	m := NewManager()
	_, err := m.CreateOrGet(RequestContext{})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestCreateOrGetConcurrent(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	got := make([]*Queue, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := m.CreateOrGet(RequestContext{RequestID: "shared"})
			assert.NoError(t, err)
			got[i] = q
		}(i)
	}
	wg.Wait()
	for _, q := range got {
		assert.Same(t, got[0], q)
	}
}

func TestContextNotFound(t *testing.T) {
	m := NewManager()
	_, err := m.Context("nope")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestRemoveThenPutFails(t *testing.T) {
	m := NewManager()
	q, err := m.CreateOrGet(RequestContext{RequestID: "r1"})
	require.NoError(t, err)

	require.NoError(t, m.Put(message.Output{Kind: message.KindText, Body: "hi", RequestID: "r1"}))
	assert.True(t, m.Remove("r1"))
	assert.False(t, m.Remove("r1"))

	_, ok := m.Get("r1")
	assert.False(t, ok)
	assert.True(t, q.Closed())

	err = m.Put(message.Output{Kind: message.KindText, Body: "late", RequestID: "r1"})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestRemovedHookRunsOnceBeforeClose(t *testing.T) {
	m := NewManager()
	calls := 0
	m.SetOnRemoved(func(rc RequestContext, q *Queue) {
		calls++
		assert.Equal(t, "r1", rc.RequestID)
		assert.False(t, q.Closed())
		assert.NoError(t, q.Put(message.End(rc.UserID, rc.RequestID)))
	})

	q, err := m.CreateOrGet(RequestContext{RequestID: "r1", UserID: "u1"})
	require.NoError(t, err)

	m.Remove("r1")
	m.Remove("r1")
	assert.Equal(t, 1, calls)

	out, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, message.KindEnd, out.Kind)
	assert.Equal(t, message.EndBody, out.Body)
}

func TestSweepEvictsIdleQueuesOnly(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithMaxIdle(time.Minute), WithMetrics(metrics.New(reg)))

	removed := map[string]bool{}
	m.SetOnRemoved(func(rc RequestContext, _ *Queue) { removed[rc.RequestID] = true })

	_, err := m.CreateOrGet(RequestContext{RequestID: "stale"})
	require.NoError(t, err)
	fresh, err := m.CreateOrGet(RequestContext{RequestID: "fresh"})
	require.NoError(t, err)

	// Only "fresh" is written to inside the window.
	later := time.Now().Add(2 * time.Minute)
	fresh.mu.Lock()
	fresh.lastWrite = later.Add(-10 * time.Second)
	fresh.mu.Unlock()

	evicted := m.SweepIdle(later)
	assert.Equal(t, []string{"stale"}, evicted)
	assert.True(t, removed["stale"])
	assert.False(t, removed["fresh"])

	_, ok := m.Get("stale")
	assert.False(t, ok)
	_, ok = m.Get("fresh")
	assert.True(t, ok)
}

func TestStartSweepsInBackground(t *testing.T) {
	m := NewManager(WithSweepInterval(10*time.Millisecond), WithMaxIdle(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	_, err := m.CreateOrGet(RequestContext{RequestID: "abandoned"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := m.Get("abandoned")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
