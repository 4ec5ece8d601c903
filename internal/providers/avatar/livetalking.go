// Package avatar drives a LiveTalking digital human.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SpeakRequest asks the avatar session to say Text.
type SpeakRequest struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	Interrupt bool   `json:"interrupt"`
	SessionID int    `json:"sessionid"`
	Voice     string `json:"voice"`
	Emotion   string `json:"emotion"`
}

type Driver interface {
	Speak(ctx context.Context, req SpeakRequest) error
}

type LiveTalking struct {
	baseURL string
	http    *http.Client
}

func NewLiveTalking(baseURL string, timeout time.Duration) *LiveTalking {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LiveTalking{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

// Speak posts to /human. An empty Type defaults to "echo", which makes the
// avatar read the text verbatim.
func (l *LiveTalking) Speak(ctx context.Context, req SpeakRequest) error {
	if req.Type == "" {
		req.Type = "echo"
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/human", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("livetalking: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
