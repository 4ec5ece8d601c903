package workers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/internal/pipeline"
)

// Prober is anything whose stages can be probed, usually the pipeline.
type Prober interface {
	Heartbeat(ctx context.Context) []pipeline.StageHealth
}

// HeartbeatWorker probes the pipeline on a fixed interval so upstream
// backends stay warm between requests.
type HeartbeatWorker struct {
	Pipeline Prober
	Interval time.Duration
	Timeout  time.Duration

	Logger *logrus.Logger

	// OnResult, when set, receives each round's outcome.
	OnResult func([]pipeline.StageHealth)
}

func (w *HeartbeatWorker) Start(ctx context.Context) error {
	if w.Pipeline == nil {
		return errors.New("HeartbeatWorker missing dependency: Pipeline must be set")
	}
	if w.Interval <= 0 {
		return errors.New("HeartbeatWorker interval must be positive")
	}
	if w.Timeout <= 0 {
		w.Timeout = 30 * time.Second
	}
	if w.Logger == nil {
		w.Logger = logrus.New()
		w.Logger.SetOutput(io.Discard)
	}

	go w.run(ctx)
	return nil
}

func (w *HeartbeatWorker) run(ctx context.Context) {
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.probe(ctx)
		}
	}
}

func (w *HeartbeatWorker) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	start := time.Now()
	res := w.Pipeline.Heartbeat(pctx)
	failed := 0
	for _, h := range res {
		if !h.OK {
			failed++
		}
	}
	entry := w.Logger.WithFields(logrus.Fields{
		"stages":     len(res),
		"failed":     failed,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	if failed > 0 {
		entry.Warn("heartbeat degraded")
	} else {
		entry.Debug("heartbeat ok")
	}
	if w.OnResult != nil {
		w.OnResult(res)
	}
}
