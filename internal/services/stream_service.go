package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/models"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/queue"
	mongorepo "github.com/yoockh/voicechain/internal/repositories/mongo"
	"github.com/yoockh/voicechain/internal/utils"
)

// InputRequest is the body of a streamed chat turn. Stage sections are
// optional and keyed by stage name.
type InputRequest struct {
	User           string         `json:"user" jsonschema:"caller id"`
	Input          string         `json:"Input" jsonschema:"text, or base64 audio when the entry stage takes audio"`
	Entry          int            `json:"Entry" jsonschema:"index of the first stage to run"`
	ConversationID string         `json:"conversation_id,omitempty"`
	MessageID      string         `json:"message_id,omitempty"`
	LLM            map[string]any `json:"LLM,omitempty" jsonschema:"LLM stage options: enable, min_sentences, inputs"`
	TTS            map[string]any `json:"TTS,omitempty" jsonschema:"TTS stage options: enable, voice, emotion, speed; omit to skip synthesis"`
	Avatar         map[string]any `json:"Avatar,omitempty" jsonschema:"Avatar stage options: enable, sessionid, voice, emotion, interrupt"`
	ASR            map[string]any `json:"ASR,omitempty" jsonschema:"ASR stage options: enable, language"`
}

// Runner is the part of the pipeline the stream service drives.
type Runner interface {
	Manager() *queue.Manager
	EntryType(entry int) (pipeline.DataType, error)
	ProcessRequest(ctx context.Context, rc queue.RequestContext, input any, entry int) error
}

type StreamService interface {
	// Open registers the request and starts its producer. The returned
	// stream must be pumped to completion.
	Open(ctx context.Context, req InputRequest, payload queue.Params, transport string) (*Stream, error)
}

type streamService struct {
	runner      Runner
	runLogs     mongorepo.RunLogRepository
	log         *logrus.Logger
	pollTimeout time.Duration
}

func NewStreamService(runner Runner, runLogs mongorepo.RunLogRepository, log *logrus.Logger, pollTimeout time.Duration) StreamService {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &streamService{runner: runner, runLogs: runLogs, log: log, pollTimeout: pollTimeout}
}

func (s *streamService) Open(ctx context.Context, req InputRequest, payload queue.Params, transport string) (*Stream, error) {
	const op = "StreamService.Open"

	if strings.TrimSpace(req.User) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user is required", nil)
	}
	if req.Input == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Input is required", nil)
	}
	if _, err := s.runner.EntryType(req.Entry); err != nil {
		return nil, err
	}

	rc := queue.RequestContext{
		RequestID: uuid.NewString(),
		UserID:    req.User,
		Payload:   payload,
		CreatedAt: time.Now(),
		Timeout:   s.pollTimeout,
	}
	q, err := s.runner.Manager().CreateOrGet(rc)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithCancel(ctx)
	st := &Stream{
		svc:       s,
		rc:        rc,
		q:         q,
		entry:     req.Entry,
		transport: transport,
		cancel:    cancel,
		done:      make(chan error, 1),
	}
	go func() {
		st.done <- s.runner.ProcessRequest(pctx, rc, req.Input, req.Entry)
	}()
	return st, nil
}

// Stream is one in-flight request seen from the client side.
type Stream struct {
	svc       *streamService
	rc        queue.RequestContext
	q         *queue.Queue
	entry     int
	transport string
	cancel    context.CancelFunc
	done      chan error
}

func (st *Stream) RequestID() string { return st.rc.RequestID }

// Pump delivers frames to emit until the end frame, an emit failure or ctx
// cancellation. The producer is cancelled when Pump returns early. The run
// is recorded once the producer has stopped.
func (st *Stream) Pump(ctx context.Context, emit func(Frame) error) error {
	start := st.rc.CreatedAt
	rec := &models.RunLog{
		RequestID: st.rc.RequestID,
		UserID:    st.rc.UserID,
		Entry:     st.entry,
		Transport: st.transport,
		StartedAt: start.UTC(),
	}

	pumpErr := st.q.Consume(ctx, func(out message.Output) error {
		f := EncodeFrame(out)
		elapsed := time.Since(start).Milliseconds()
		switch f.Type {
		case FrameText:
			if rec.FirstTextMS == 0 {
				rec.FirstTextMS = max(elapsed, 1)
			}
		case FrameAudio:
			if rec.FirstAudioMS == 0 {
				rec.FirstAudioMS = max(elapsed, 1)
			}
		}
		rec.Frames++
		return emit(f)
	})

	st.cancel()
	runErr := <-st.done

	rec.DurationMS = time.Since(start).Milliseconds()
	switch {
	case runErr == nil && pumpErr == nil:
		rec.Status = "ok"
	case errors.Is(runErr, context.Canceled) || pumpErr != nil:
		rec.Status = "canceled"
	default:
		rec.Status = "error"
	}
	if runErr != nil {
		rec.Error = utils.SafeMessage(runErr)
	}
	st.svc.record(rec)

	st.svc.log.WithFields(logrus.Fields{
		"request_id":     rec.RequestID,
		"user_id":        rec.UserID,
		"status":         rec.Status,
		"frames":         rec.Frames,
		"first_text_ms":  rec.FirstTextMS,
		"first_audio_ms": rec.FirstAudioMS,
		"elapsed_ms":     rec.DurationMS,
	}).Info("stream finished")
	return pumpErr
}

func (s *streamService) record(rec *models.RunLog) {
	if s.runLogs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runLogs.Insert(ctx, rec); err != nil {
		s.log.WithError(err).WithField("request_id", rec.RequestID).Warn("run log insert failed")
	}
}
