package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/metrics"
	"github.com/yoockh/voicechain/internal/queue"
	"github.com/yoockh/voicechain/internal/utils"
)

type stage struct {
	Module
	index int
	next  *stage
}

// Pipeline is an ordered chain of stages sharing one queue manager.
type Pipeline struct {
	stages  []*stage
	manager *queue.Manager
	scratch *scratchStore
	log     *logrus.Logger
	metrics *metrics.Metrics
}

type Option func(*Pipeline)

func WithLogger(l *logrus.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New links modules in order and checks that every stage's output type is
// the next stage's input type. The manager's removal hook is taken over to
// emit the terminal end output.
func New(manager *queue.Manager, modules []Module, opts ...Option) (*Pipeline, error) {
	const op = "Pipeline.New"

	if manager == nil {
		return nil, utils.E(utils.CodeConfiguration, op, "queue manager is required", nil)
	}
	if len(modules) == 0 {
		return nil, utils.E(utils.CodeConfiguration, op, "at least one module is required", nil)
	}

	p := &Pipeline{manager: manager, scratch: newScratchStore()}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logrus.New()
		p.log.SetOutput(io.Discard)
	}

	seen := make(map[string]bool, len(modules))
	for i, m := range modules {
		if m == nil {
			return nil, utils.E(utils.CodeConfiguration, op, fmt.Sprintf("module %d is nil", i), nil)
		}
		if seen[m.Name()] {
			return nil, utils.E(utils.CodeConfiguration, op, "duplicate module "+m.Name(), nil)
		}
		seen[m.Name()] = true
		p.stages = append(p.stages, &stage{Module: m, index: i})
	}
	for i := 0; i+1 < len(p.stages); i++ {
		cur, nxt := p.stages[i], p.stages[i+1]
		if cur.OutputType() != nxt.InputType() {
			return nil, utils.E(utils.CodeConfiguration, op, fmt.Sprintf(
				"type mismatch: %s outputs %s but %s accepts %s",
				cur.Name(), cur.OutputType(), nxt.Name(), nxt.InputType()), nil)
		}
		cur.next = nxt
	}

	manager.SetOnRemoved(p.emitEnd)
	return p, nil
}

// emitEnd is the queue removal hook; it runs exactly once per request and
// seals the queue behind the end output.
func (p *Pipeline) emitEnd(rc queue.RequestContext, q *queue.Queue) {
	if err := q.CloseWith(message.End(rc.UserID, rc.RequestID)); err != nil {
		p.log.WithError(err).WithField("request_id", rc.RequestID).Warn("end output not delivered")
	}
}

// Manager returns the queue manager the pipeline writes to.
func (p *Pipeline) Manager() *queue.Manager { return p.manager }

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// EntryType returns the input type of the stage at entry.
func (p *Pipeline) EntryType(entry int) (DataType, error) {
	const op = "Pipeline.EntryType"
	if entry < 0 || entry >= len(p.stages) {
		return "", utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("entry %d out of range [0,%d)", entry, len(p.stages)), nil)
	}
	return p.stages[entry].InputType(), nil
}

// ProcessRequest runs input through the chain starting at the stage at entry.
// The request queue is created if needed. Whatever the outcome, scratch state
// is cleared and the queue is removed, which emits the single end output; a
// failure is reported on the queue as one error output before that.
func (p *Pipeline) ProcessRequest(ctx context.Context, rc queue.RequestContext, input any, entry int) (err error) {
	const op = "Pipeline.ProcessRequest"

	if _, err := p.manager.CreateOrGet(rc); err != nil {
		return err
	}
	if stored, cerr := p.manager.Context(rc.RequestID); cerr == nil {
		rc = stored
	}
	run := newRun(rc, p.scratch)
	start := time.Now()
	entryLog := p.log.WithFields(logrus.Fields{
		"request_id": rc.RequestID,
		"user_id":    rc.UserID,
		"entry":      entry,
	})

	defer func() {
		if r := recover(); r != nil {
			err = utils.E(utils.CodeInternal, op, "stage panicked", fmt.Errorf("%v", r))
		}
		status := "ok"
		if err != nil {
			status = string(utils.CodeOf(err))
			if errors.Is(err, context.Canceled) {
				status = "canceled"
			}
			p.putError(rc, err)
			entryLog.WithError(err).Warn("pipeline run failed")
		}
		p.scratch.clear(rc.RequestID)
		p.manager.Remove(rc.RequestID)
		p.metrics.RequestFinished(status)
		entryLog.WithField("elapsed_ms", time.Since(start).Milliseconds()).Info("pipeline run finished")
	}()

	typ, err := p.EntryType(entry)
	if err != nil {
		return err
	}
	msg := &message.Message{
		Kind:      typ.Kind(),
		Body:      input,
		UserID:    rc.UserID,
		RequestID: rc.RequestID,
		StartedAt: rc.CreatedAt,
	}
	return p.runStage(ctx, run, p.stages[entry], msg)
}

// PutMessage appends out to its request's queue.
func (p *Pipeline) PutMessage(out message.Output) error {
	return p.manager.Put(out)
}

func (p *Pipeline) putError(rc queue.RequestContext, err error) {
	desc := utils.SafeMessage(err)
	if errors.Is(err, context.Canceled) {
		desc = "request canceled"
	}
	if perr := p.manager.Put(message.Error(rc.UserID, rc.RequestID, desc)); perr != nil {
		p.log.WithError(perr).WithField("request_id", rc.RequestID).Debug("error output not delivered")
	}
}

// runStage drives one invocation of st for msg. Downstream stages run inside
// it, depth first, before the next upstream chunk is pulled.
func (p *Pipeline) runStage(ctx context.Context, run *Run, st *stage, msg *message.Message) (err error) {
	start := time.Now()
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		chunks, ferr := st.Finalize(ctx, run, msg)
		switch {
		case err != nil:
			if ferr != nil {
				p.log.WithError(ferr).WithField("module", st.Name()).Debug("finalize after failure")
			}
		case ferr != nil:
			err = ferr
		default:
			for _, c := range chunks {
				if err = p.apply(ctx, run, st, msg, c); err != nil {
					break
				}
			}
		}
		p.metrics.ObserveStage(st.Name(), time.Since(start))
	}()

	input, ok, err := st.ExtractInput(sctx, run, msg)
	if err != nil || !ok {
		return err
	}
	gen, err := st.OpenGenerator(sctx, run, msg, input)
	if err != nil {
		return upstream(st, "open generator", err)
	}
	if gen == nil {
		return nil
	}

	for {
		raw, err := gen.Next(sctx)
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return upstream(st, "stream", err)
		}
		chunks, err := st.TransformChunk(sctx, run, raw)
		if err != nil {
			return upstream(st, "decode chunk", err)
		}
		for _, c := range chunks {
			if err := p.apply(ctx, run, st, msg, c); err != nil {
				return err
			}
		}
	}
}

// apply performs the two effects of one processed chunk: the optional client
// output and the optional forward to the next stage.
func (p *Pipeline) apply(ctx context.Context, run *Run, st *stage, msg *message.Message, chunk any) error {
	if out := st.WrapForOutput(run, msg, chunk); out != nil {
		if err := p.PutMessage(*out); err != nil {
			return err
		}
		if run.firstOf(string(out.Kind)) {
			p.metrics.ObserveFirstFrame(string(out.Kind), time.Since(run.rc.CreatedAt))
		}
	}
	if st.next == nil {
		return nil
	}
	nm := st.WrapForNext(run, msg, chunk)
	if nm == nil || nm.Body == nil {
		return nil
	}
	return p.runStage(ctx, run, st.next, nm)
}

// upstream tags a stage failure as an upstream error unless it already
// carries a code or is a cancellation.
func upstream(st *stage, what string, err error) error {
	var ae *utils.AppError
	if errors.As(err, &ae) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return utils.E(utils.CodeUpstream, st.Name(), st.Name()+" "+what+" failed", err)
}

// Heartbeat probes every stage that supports it.
func (p *Pipeline) Heartbeat(ctx context.Context) []StageHealth {
	var out []StageHealth
	for _, st := range p.stages {
		hb, ok := st.Module.(Heartbeater)
		if !ok {
			continue
		}
		h := StageHealth{Module: st.Name(), OK: true}
		if err := hb.Heartbeat(ctx); err != nil {
			h.OK = false
			h.Error = err.Error()
			p.log.WithError(err).WithField("module", st.Name()).Warn("heartbeat failed")
		}
		out = append(out, h)
	}
	return out
}

// Describe reports the linked chain.
func (p *Pipeline) Describe() []StageInfo {
	infos := make([]StageInfo, 0, len(p.stages))
	for _, st := range p.stages {
		info := StageInfo{
			Index:  st.index,
			Name:   st.Name(),
			Input:  st.InputType(),
			Output: st.OutputType(),
		}
		if st.next != nil {
			info.Next = st.next.Name()
		}
		infos = append(infos, info)
	}
	return infos
}
