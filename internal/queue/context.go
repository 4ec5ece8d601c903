package queue

import (
	"strconv"
	"strings"
	"time"
)

// Params is a JSON-like request payload. It is read-only once stored in a
// RequestContext.
type Params map[string]any

// Section returns the nested object stored under name.
func (p Params) Section(name string) (Params, bool) {
	if p == nil {
		return nil, false
	}
	switch v := p[name].(type) {
	case map[string]any:
		return Params(v), true
	case Params:
		return v, true
	default:
		return nil, false
	}
}

// Enabled reports a stage's `enable` flag. A missing section yields
// absentDefault; a present section without the flag is enabled.
func (p Params) Enabled(name string, absentDefault bool) bool {
	sec, ok := p.Section(name)
	if !ok {
		return absentDefault
	}
	return sec.Bool("enable", true)
}

func (p Params) String(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (p Params) Bool(key string, def bool) bool {
	if p == nil {
		return def
	}
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

func (p Params) Int(key string, def int) int {
	if p == nil {
		return def
	}
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// RequestContext holds the facts about one client request that every stage
// may read while the request runs.
type RequestContext struct {
	RequestID string
	UserID    string
	Payload   Params
	CreatedAt time.Time

	// Timeout bounds a single empty wait of the queue consumer before it
	// polls again.
	Timeout time.Duration

	// Priority is carried for callers but not consulted; delivery is FIFO.
	Priority int
}
