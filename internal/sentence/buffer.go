// Package sentence batches streamed text fragments into punctuation-delimited
// units so downstream synthesis receives whole clauses.
package sentence

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMinSentences is the number of complete units released per push.
	DefaultMinSentences = 1
	// DefaultMinSecondaryRunes is the shortest unit a secondary terminator may
	// end, terminator included.
	DefaultMinSecondaryRunes = 10
)

const (
	primaryTerminators   = "，,!?。！？"
	secondaryTerminators = "、：:"
)

// Buffer is the per-request micro-batching state of one text stage. It is not
// safe for concurrent use.
type Buffer struct {
	minSentences int
	minSecondary int

	acc       string
	sentences []string
	full      strings.Builder

	conversationID string
	messageID      string
	ended          bool
}

// New returns a buffer releasing minSentences units at a time. Values below
// one fall back to DefaultMinSentences.
func New(minSentences int) *Buffer {
	if minSentences < 1 {
		minSentences = DefaultMinSentences
	}
	return &Buffer{
		minSentences: minSentences,
		minSecondary: DefaultMinSecondaryRunes,
	}
}

// Push appends text and returns exactly the configured number of complete
// units when that many are available, or nil. Released units are removed from
// the accumulator; everything after them stays pending.
func (b *Buffer) Push(text string) []string {
	b.acc += text
	b.full.WriteString(text)

	units, consumed := b.split()
	if len(units) < b.minSentences {
		return nil
	}
	units = units[:b.minSentences]
	b.acc = b.acc[consumed[b.minSentences-1]:]
	b.sentences = append(b.sentences, units...)
	return units
}

// split walks the accumulator and returns its complete units together with
// the byte offset just past each one. A secondary terminator closes a unit
// only when the unit is long enough; otherwise the fragment merges into the
// text that follows.
func (b *Buffer) split() (units []string, ends []int) {
	start := 0
	for i, r := range b.acc {
		end := i + utf8.RuneLen(r)
		switch {
		case strings.ContainsRune(primaryTerminators, r):
		case strings.ContainsRune(secondaryTerminators, r):
			if utf8.RuneCountInString(b.acc[start:end]) < b.minSecondary {
				continue
			}
		default:
			continue
		}
		units = append(units, b.acc[start:end])
		ends = append(ends, end)
		if len(units) == b.minSentences {
			return units, ends
		}
		start = end
	}
	return units, ends
}

// Flush returns whatever is left in the accumulator verbatim and marks the
// buffer ended.
func (b *Buffer) Flush() string {
	rest := b.acc
	b.acc = ""
	b.ended = true
	if rest != "" {
		b.sentences = append(b.sentences, rest)
	}
	return rest
}

// Observe records upstream correlation ids. The first non-empty value of each
// wins.
func (b *Buffer) Observe(conversationID, messageID string) {
	if b.conversationID == "" {
		b.conversationID = conversationID
	}
	if b.messageID == "" {
		b.messageID = messageID
	}
}

func (b *Buffer) Pending() string        { return b.acc }
func (b *Buffer) Sentences() []string    { return b.sentences }
func (b *Buffer) Response() string       { return b.full.String() }
func (b *Buffer) ConversationID() string { return b.conversationID }
func (b *Buffer) MessageID() string      { return b.messageID }
func (b *Buffer) Ended() bool            { return b.ended }

// SetMinSecondaryRunes overrides the length a unit needs before a secondary
// terminator may close it.
func (b *Buffer) SetMinSecondaryRunes(n int) {
	if n > 0 {
		b.minSecondary = n
	}
}

// Summary is the final aggregate of one streamed response.
type Summary struct {
	Think          string `json:"think"`
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	IsEnd          bool   `json:"Is_End"`
}

// Summary splits an optional leading <think>...</think> block from the
// response text.
func (b *Buffer) Summary() Summary {
	think, response := SplitThink(b.full.String())
	return Summary{
		Think:          think,
		Response:       response,
		ConversationID: b.conversationID,
		MessageID:      b.messageID,
		IsEnd:          b.ended,
	}
}

// SplitThink separates a reasoning block wrapped in <think> tags from the
// visible answer.
func SplitThink(s string) (think, response string) {
	const open, closeTag = "<think>", "</think>"
	trimmed := strings.TrimLeft(s, " \n\t")
	if !strings.HasPrefix(trimmed, open) {
		return "", s
	}
	idx := strings.Index(trimmed, closeTag)
	if idx < 0 {
		return strings.TrimSpace(trimmed[len(open):]), ""
	}
	think = strings.TrimSpace(trimmed[len(open):idx])
	response = strings.TrimLeft(trimmed[idx+len(closeTag):], " \n\t")
	return think, response
}
