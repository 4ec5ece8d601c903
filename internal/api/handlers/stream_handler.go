package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechain/internal/queue"
	"github.com/yoockh/voicechain/internal/services"
	"github.com/yoockh/voicechain/internal/utils"
)

type StreamHandler struct {
	streams  services.StreamService
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(streams services.StreamService, log *logrus.Logger) *StreamHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StreamHandler{
		streams: streams,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Input streams one chat turn as server-sent events.
func (h *StreamHandler) Input(c *gin.Context) {
	var req services.InputRequest
	payload, err := bindWithPayload(c.Request.Body, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	st, err := h.streams.Open(c.Request.Context(), req, payload, "sse")
	if err != nil {
		writeError(c, err)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	_ = st.Pump(c.Request.Context(), func(f services.Frame) error {
		b, err := f.SSE()
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		w.Flush()
		return nil
	})
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeFrame(f services.Frame) error {
	b, err := f.Marshal()
	if err != nil {
		return err
	}
	return w.writeText(b)
}

// InputWS serves chat turns over one WebSocket. Each client text message is
// an input request; its frames are written back as text messages. A new
// request is read only after the previous one has ended.
func (h *StreamHandler) InputWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}

		var req services.InputRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = wc.writeFrame(services.Frame{Type: services.FrameError, Chunk: "invalid json"})
			continue
		}
		var payload map[string]any
		_ = json.Unmarshal(data, &payload)

		st, err := h.streams.Open(ctx, req, queue.Params(payload), "ws")
		if err != nil {
			_ = wc.writeFrame(services.Frame{Type: services.FrameError, Chunk: utils.SafeMessage(err)})
			continue
		}
		if err := st.Pump(ctx, wc.writeFrame); err != nil {
			h.log.WithError(err).WithField("request_id", st.RequestID()).Debug("ws stream aborted")
			return
		}
	}
}
