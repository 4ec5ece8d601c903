package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/voicechain/internal/api/handlers"
	"github.com/yoockh/voicechain/internal/api/routes"
	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/pipeline"
	"github.com/yoockh/voicechain/internal/queue"
	"github.com/yoockh/voicechain/internal/services"
	"github.com/yoockh/voicechain/internal/utils"
	"github.com/yoockh/voicechain/internal/voices"
)

// echoRunner answers every request with its input as one text frame.
type echoRunner struct {
	mgr      *queue.Manager
	payloads chan queue.Params
}

func (e *echoRunner) Manager() *queue.Manager { return e.mgr }

func (e *echoRunner) EntryType(entry int) (pipeline.DataType, error) {
	if entry != 0 {
		return "", utils.E(utils.CodeInvalidArgument, "echo", "entry out of range", nil)
	}
	return pipeline.TypeText, nil
}

func (e *echoRunner) ProcessRequest(_ context.Context, rc queue.RequestContext, input any, _ int) error {
	if e.payloads != nil {
		e.payloads <- rc.Payload
	}
	_ = e.mgr.Put(message.Output{Kind: message.KindText, Body: input, RequestID: rc.RequestID})
	_ = e.mgr.Put(message.End(rc.UserID, rc.RequestID))
	e.mgr.Remove(rc.RequestID)
	return nil
}

type fakeInfo struct {
	health []pipeline.StageHealth
}

func (f fakeInfo) Describe() []pipeline.StageInfo {
	return []pipeline.StageInfo{
		{Index: 0, Name: "LLM", Input: pipeline.TypeText, Output: pipeline.TypeText, Next: "TTS"},
		{Index: 1, Name: "TTS", Input: pipeline.TypeText, Output: pipeline.TypeAudio},
	}
}

func (f fakeInfo) Heartbeat(context.Context) []pipeline.StageHealth { return f.health }

type memAssets map[string][]byte

func (m memAssets) Read(_ context.Context, key string) ([]byte, error) {
	if b, ok := m[key]; ok {
		return b, nil
	}
	return nil, utils.E(utils.CodeNotFound, "memAssets.Read", "asset not found", nil)
}

func newRouter(t *testing.T, runner *echoRunner, info fakeInfo) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sys, err := handlers.NewSystemHandler(info)
	require.NoError(t, err)
	catalog := voices.NewStatic(voices.Voice{Name: "alice", AwakeText: "在呢", AwakeAudio: "a.wav"})

	r := gin.New()
	routes.RegisterRoutes(r, routes.Deps{
		Stream: handlers.NewStreamHandler(services.NewStreamService(runner, nil, nil, 0), nil),
		Awake:  handlers.NewAwakeHandler(services.NewAwakeService(catalog, memAssets{"a.wav": []byte("wav")}, "alice")),
		System: sys,
	})
	return r
}

func TestInputStreamsSSE(t *testing.T) {
	runner := &echoRunner{mgr: queue.NewManager(), payloads: make(chan queue.Params, 1)}
	r := newRouter(t, runner, fakeInfo{})

	body := `{"user":"u1","Input":"你好","Entry":0,"TTS":{"voice":"alice"}}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/input", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t,
		"data: {\"type\":\"text\",\"chunk\":\"你好\"}\n\n"+
			"data: {\"type\":\"end\",\"chunk\":\"[DONE]\"}\n\n",
		w.Body.String())

	payload := <-runner.payloads
	sec, ok := payload.Section("TTS")
	require.True(t, ok)
	assert.Equal(t, "alice", sec.String("voice"))
}

func TestInputRejectsBadRequests(t *testing.T) {
	r := newRouter(t, &echoRunner{mgr: queue.NewManager()}, fakeInfo{})

	for _, body := range []string{`{"Input":"x"}`, `{"user":"u","Input":"x","Entry":5}`, `not json`} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/input", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)

		var apiErr handlers.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
		assert.Equal(t, utils.CodeInvalidArgument, apiErr.Code)
	}
}

func TestInputOverWebSocket(t *testing.T) {
	r := newRouter(t, &echoRunner{mgr: queue.NewManager()}, fakeInfo{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/input", nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, input := range []string{"one", "two"} {
		require.NoError(t, conn.WriteJSON(map[string]any{"user": "u", "Input": input}))

		var got []services.Frame
		for {
			var f services.Frame
			require.NoError(t, conn.ReadJSON(&f))
			got = append(got, f)
			if f.Terminal() {
				break
			}
		}
		assert.Equal(t, []services.Frame{{Type: "text", Chunk: input}, {Type: "end", Chunk: "[DONE]"}}, got)
	}

	require.NoError(t, conn.WriteJSON(map[string]any{"Input": "no user"}))
	var f services.Frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "error", f.Type)
}

func TestAwakeStreamsNDJSON(t *testing.T) {
	r := newRouter(t, &echoRunner{mgr: queue.NewManager()}, fakeInfo{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/awake", strings.NewReader(`{"user":"u","voice":"alice"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	lines := bytes.Split(bytes.TrimSpace(w.Body.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var first, second services.Frame
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "text", first.Type)
	assert.Contains(t, first.Chunk, `"response":"在呢"`)
	assert.Equal(t, "audio/wav", second.Type)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/awake", strings.NewReader(`{"user":"u","voice":"zed"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemEndpoints(t *testing.T) {
	info := fakeInfo{health: []pipeline.StageHealth{{Module: "TTS", OK: false, Error: "cold"}}}
	r := newRouter(t, &echoRunner{mgr: queue.NewManager()}, info)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"module":"TTS"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pipeline", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rep struct {
		Stages []pipeline.StageInfo `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Len(t, rep.Stages, 2)
	assert.Equal(t, "TTS", rep.Stages[0].Next)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schema", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var schema map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "Input")
	assert.Contains(t, props, "TTS")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartupWarmsStages(t *testing.T) {
	cold := fakeInfo{health: []pipeline.StageHealth{{Module: "LLM", OK: true}, {Module: "TTS", OK: false, Error: "dial"}}}
	r := newRouter(t, &echoRunner{mgr: queue.NewManager()}, cold)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/startup", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"message":"warming","cold":["TTS"]}`, w.Body.String())

	warm := fakeInfo{health: []pipeline.StageHealth{{Module: "LLM", OK: true}}}
	r = newRouter(t, &echoRunner{mgr: queue.NewManager()}, warm)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/startup", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"ready"}`, w.Body.String())
}
