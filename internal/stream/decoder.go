package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Framing of the completion event stream.
const (
	DataPrefix = "data:"
	Sentinel   = "[DONE]"
)

// EventError is an error object sent by the upstream inside an otherwise
// well-formed event.
type EventError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

func (e *EventError) Error() string {
	if e.Code == nil {
		return "upstream error: " + e.Message
	}
	return fmt.Sprintf("upstream error %v: %s", e.Code, e.Message)
}

// deltaEvent is the subset of a completion chunk the decoder cares about.
type deltaEvent struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *EventError `json:"error"`
}

// Decoder turns the raw bytes of a streamed completion response into text
// fragments. A Decoder serves exactly one response and must not be shared.
//
// Lines that are not data frames are ignored, and data frames that fail to
// decode are dropped without aborting the stream.
type Decoder struct {
	pending []byte
	done    bool
	dropped int
	err     *EventError
}

// NewDecoder returns a decoder in the streaming state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next chunk of the response body and returns the
// fragments of every line it completed, in arrival order.
func (d *Decoder) Feed(p []byte) []string {
	if d.done {
		return nil
	}
	d.pending = append(d.pending, p...)

	var fragments []string
	for !d.done {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx == -1 {
			break
		}
		line := d.pending[:idx]
		d.pending = d.pending[idx+1:]
		if s, ok := d.line(line); ok {
			fragments = append(fragments, s)
		}
	}

	if len(d.pending) == 0 {
		// let the backing array go once it has been fully consumed.
		d.pending = nil
	}
	return fragments
}

// Finish marks the end of the transport stream. Whatever is still buffered
// is an incomplete line and gets discarded.
func (d *Decoder) Finish() []string {
	d.pending = nil
	d.done = true
	return nil
}

// Done reports whether the sentinel or the end of the stream was reached.
func (d *Decoder) Done() bool { return d.done }

// Dropped returns how many data frames were discarded as malformed.
func (d *Decoder) Dropped() int { return d.dropped }

// Err returns the last error event sent by the upstream, if any.
func (d *Decoder) Err() error {
	if d.err == nil {
		return nil
	}
	return d.err
}

func (d *Decoder) line(line []byte) (string, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	payload, ok := bytes.CutPrefix(line, []byte(DataPrefix))
	if !ok {
		return "", false
	}
	payload = bytes.TrimPrefix(payload, []byte{' '})

	if string(bytes.TrimSpace(payload)) == Sentinel {
		d.done = true
		d.pending = nil
		return "", false
	}

	var event deltaEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		d.dropped++
		return "", false
	}
	if event.Error != nil {
		d.err = event.Error
	}
	if len(event.Choices) == 0 {
		return "", false
	}
	content := event.Choices[0].Delta.Content
	if content == nil || *content == "" {
		return "", false
	}
	return *content, true
}
