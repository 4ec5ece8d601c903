package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/providers/llm"
)

// Frame is one client-facing event.
type Frame struct {
	Type  string `json:"type"`
	Chunk any    `json:"chunk"`
}

const (
	FrameText  = "text"
	FrameAudio = "audio/wav"
	FrameInfo  = "info"
	FrameError = "error"
	FrameTool  = "tool"
	FrameImage = "image"
	FrameEnd   = "end"
)

// Terminal reports whether no frame follows f.
func (f Frame) Terminal() bool { return f.Type == FrameEnd }

// EncodeFrame maps a queued output to its wire frame.
func EncodeFrame(out message.Output) Frame {
	switch out.Kind {
	case message.KindText:
		return Frame{Type: FrameText, Chunk: out.Body}
	case message.KindAudio:
		b, _ := out.Body.([]byte)
		return Frame{Type: FrameAudio, Chunk: base64.StdEncoding.EncodeToString(b)}
	case message.KindInfo:
		return Frame{Type: FrameInfo, Chunk: out.Body}
	case message.KindError:
		return Frame{Type: FrameError, Chunk: fmt.Sprint(out.Body)}
	case message.KindTool:
		return toolFrame(out.Body)
	case message.KindEnd:
		return Frame{Type: FrameEnd, Chunk: message.EndBody}
	}
	return Frame{Type: string(out.Kind), Chunk: out.Body}
}

func toolFrame(body any) Frame {
	ev, ok := body.(llm.ToolEvent)
	if !ok {
		return Frame{Type: FrameTool, Chunk: body}
	}
	typ := FrameTool
	if strings.Contains(ev.Name, "pic") {
		typ = FrameImage
	}
	return Frame{Type: typ, Chunk: ev.Response}
}

// Marshal encodes f as JSON without HTML escaping so CJK and URLs stay
// readable on the wire.
func (f Frame) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SSE renders f as one server-sent event.
func (f Frame) SSE() ([]byte, error) {
	b, err := f.Marshal()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(b)+8)
	out = append(out, "data: "...)
	out = append(out, b...)
	return append(out, "\n\n"...), nil
}
