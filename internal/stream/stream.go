// Package stream decodes streamed chat completions and defines the
// interfaces every provider client implements.
package stream

import (
	"context"
	"errors"

	"github.com/charmbracelet/parley/internal/proto"
)

// ErrNoContent happens when the client is returning no content.
var ErrNoContent = errors.New("no content")

// Client is a streaming client.
type Client interface {
	Request(context.Context, proto.Request) Stream
}

// Stream is an ongoing stream.
type Stream interface {
	// returns false when no more chunks are available, either because the
	// response is complete or because it failed (see [Stream.Err])
	Next() bool

	// the current chunk
	// implementation should accumulate chunks into a message, and keep its
	// internal conversation state
	Current() (proto.Chunk, error)

	// closes the underlying stream
	Close() error

	// streaming error
	Err() error

	// the whole conversation, including the assistant reply once the stream
	// completed
	Messages() []proto.Message
}
