package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Dify streams chat-messages from a Dify application.
type Dify struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewDify(baseURL, apiKey string, timeout time.Duration) *Dify {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Dify{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (d *Dify) Close() error {
	d.http.CloseIdleConnections()
	return nil
}

type difyRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	ConversationID string         `json:"conversation_id"`
	User           string         `json:"user"`
	Files          []any          `json:"files"`
}

type difyEvent struct {
	Event          string `json:"event"`
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Message        string `json:"message"`
	Data           *struct {
		Status string `json:"status"`
		Data   struct {
			Output *ToolEvent `json:"output"`
		} `json:"data"`
	} `json:"data"`
}

func (d *Dify) StreamAnswer(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if err := d.stream(ctx, req, out); err != nil {
			errs <- err
		}
	}()

	return out, errs
}

func (d *Dify) stream(ctx context.Context, req Request, out chan<- Chunk) error {
	user := req.UserID
	if user == "" {
		user = "user"
	}
	inputs := req.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	body, err := json.Marshal(difyRequest{
		Inputs:         inputs,
		Query:          req.Query,
		ResponseMode:   "streaming",
		ConversationID: req.ConversationID,
		User:           user,
		Files:          []any{},
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/chat-messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("dify: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return decodeDifyStream(ctx, resp.Body, out)
}

// decodeDifyStream reads SSE data lines and forwards the events the chat
// chain cares about.
func decodeDifyStream(ctx context.Context, r io.Reader, out chan<- Chunk) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var ev difyEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("dify: decode event: %w", err)
		}

		var c Chunk
		switch ev.Event {
		case "message", "agent_message":
			if ev.Answer == "" {
				continue
			}
			c = Chunk{Text: ev.Answer}
		case "message_end":
			c = Chunk{End: true}
		case "agent_log":
			if ev.Data == nil || ev.Data.Status != "success" || ev.Data.Data.Output == nil {
				continue
			}
			c = Chunk{Tool: ev.Data.Data.Output}
		case "error":
			return fmt.Errorf("dify: %s", ev.Message)
		default:
			continue
		}
		c.ConversationID = ev.ConversationID
		c.MessageID = ev.MessageID
		if !send(ctx, out, c) {
			return ctx.Err()
		}
	}
	return scanner.Err()
}
