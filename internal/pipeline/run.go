package pipeline

import (
	"sync"

	"github.com/yoockh/voicechain/internal/queue"
)

type scratchKey struct {
	module    string
	requestID string
}

// scratchStore holds per-(module, request) state for every in-flight run.
type scratchStore struct {
	mu sync.Mutex
	m  map[scratchKey]any
}

func newScratchStore() *scratchStore {
	return &scratchStore{m: make(map[scratchKey]any)}
}

func (s *scratchStore) get(k scratchKey, init func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[k]; ok {
		return v
	}
	if init == nil {
		return nil
	}
	v := init()
	s.m[k] = v
	return v
}

func (s *scratchStore) clear(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.m {
		if k.requestID == requestID {
			delete(s.m, k)
		}
	}
}

func (s *scratchStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Run is the view of one request handed to every stage invocation.
type Run struct {
	rc      queue.RequestContext
	scratch *scratchStore

	mu   sync.Mutex
	seen map[string]bool
}

func newRun(rc queue.RequestContext, scratch *scratchStore) *Run {
	return &Run{rc: rc, scratch: scratch, seen: make(map[string]bool)}
}

// NewRun builds a standalone run for exercising a single stage outside a
// pipeline.
func NewRun(rc queue.RequestContext) *Run {
	return newRun(rc, newScratchStore())
}

func (r *Run) RequestID() string             { return r.rc.RequestID }
func (r *Run) UserID() string                { return r.rc.UserID }
func (r *Run) Payload() queue.Params         { return r.rc.Payload }
func (r *Run) Context() queue.RequestContext { return r.rc }

// Scratch returns the module's state for this request, creating it with init
// on first use. It returns nil when absent and init is nil.
func (r *Run) Scratch(module string, init func() any) any {
	return r.scratch.get(scratchKey{module: module, requestID: r.rc.RequestID}, init)
}

// firstOf reports whether kind is seen for the first time in this run.
func (r *Run) firstOf(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[kind] {
		return false
	}
	r.seen[kind] = true
	return true
}
