package queue

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/metrics"
	"github.com/yoockh/voicechain/internal/utils"
)

const (
	DefaultSweepInterval = 5 * time.Second
	DefaultMaxIdle       = 60 * time.Second
)

// RemovedFunc runs once for every queue leaving the registry, after it is
// unregistered and before it is closed.
type RemovedFunc func(rc RequestContext, q *Queue)

// Manager is the process-wide registry of request queues and contexts.
type Manager struct {
	sweepInterval time.Duration
	maxIdle       time.Duration
	log           *logrus.Logger
	metrics       *metrics.Metrics

	mu        sync.Mutex
	queues    map[string]*Queue
	contexts  map[string]RequestContext
	onRemoved RemovedFunc
}

type Option func(*Manager)

func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

func WithMaxIdle(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxIdle = d
		}
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sweepInterval: DefaultSweepInterval,
		maxIdle:       DefaultMaxIdle,
		queues:        make(map[string]*Queue),
		contexts:      make(map[string]RequestContext),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.New()
		m.log.SetOutput(io.Discard)
	}
	return m
}

// SetOnRemoved registers the hook run for every removed queue.
func (m *Manager) SetOnRemoved(fn RemovedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemoved = fn
}

// CreateOrGet returns the queue registered for rc.RequestID, creating it and
// storing rc when absent.
func (m *Manager) CreateOrGet(rc RequestContext) (*Queue, error) {
	const op = "Manager.CreateOrGet"

	if rc.RequestID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "request_id is required", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[rc.RequestID]; ok {
		return q, nil
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now()
	}
	if rc.Timeout <= 0 {
		rc.Timeout = DefaultPollTimeout
	}
	q := New(rc.RequestID, rc.Timeout)
	m.queues[rc.RequestID] = q
	m.contexts[rc.RequestID] = rc
	m.metrics.QueueOpened()

	m.log.WithFields(logrus.Fields{
		"request_id": rc.RequestID,
		"user_id":    rc.UserID,
	}).Debug("queue created")
	return q, nil
}

func (m *Manager) Get(requestID string) (*Queue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[requestID]
	return q, ok
}

// Context returns the stored context of a registered request.
func (m *Manager) Context(requestID string) (RequestContext, error) {
	const op = "Manager.Context"

	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.contexts[requestID]
	if !ok {
		return RequestContext{}, utils.E(utils.CodeNotFound, op, "request "+requestID+" is not registered", nil)
	}
	return rc, nil
}

// Put appends out to its request's queue. Writing to an unregistered request
// is a contract violation and fails with CodeNotFound.
func (m *Manager) Put(out message.Output) error {
	const op = "Manager.Put"

	q, ok := m.Get(out.RequestID)
	if !ok {
		return utils.E(utils.CodeNotFound, op, "no queue for request "+out.RequestID, nil)
	}
	if err := q.Put(out); err != nil {
		return err
	}
	m.metrics.FrameEnqueued(string(out.Kind))
	return nil
}

// Remove unregisters and closes the request's queue. It reports whether a
// queue was registered; the removed hook runs at most once per queue.
func (m *Manager) Remove(requestID string) bool {
	return m.remove(requestID, nil)
}

// remove is shared by explicit removal and the idle sweep. When keep is
// non-nil it is evaluated under the lock and a true result aborts removal.
func (m *Manager) remove(requestID string, keep func(*Queue) bool) bool {
	m.mu.Lock()
	q, ok := m.queues[requestID]
	if !ok || (keep != nil && keep(q)) {
		m.mu.Unlock()
		return false
	}
	rc := m.contexts[requestID]
	delete(m.queues, requestID)
	delete(m.contexts, requestID)
	hook := m.onRemoved
	m.mu.Unlock()

	if hook != nil {
		hook(rc, q)
	}
	q.Close()
	m.metrics.QueueClosed(keep != nil)

	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"evicted":    keep != nil,
	}).Debug("queue removed")
	return true
}

// SweepIdle removes every queue whose last write is older than the max idle
// age at now, and returns the evicted request ids.
func (m *Manager) SweepIdle(now time.Time) []string {
	idle := func(q *Queue) bool { return now.Sub(q.LastWrite()) > m.maxIdle }

	m.mu.Lock()
	var expired []string
	for id := range m.contexts {
		if q, ok := m.queues[id]; ok && idle(q) {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	var evicted []string
	for _, id := range expired {
		if m.remove(id, func(q *Queue) bool { return !idle(q) }) {
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		m.log.WithField("count", len(evicted)).Info("evicted idle queues")
	}
	return evicted
}

// Start runs the idle sweep in the background until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.SweepIdle(now)
			}
		}
	}()
}

// Len returns the number of registered queues.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}
