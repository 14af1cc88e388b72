// Package openai implements [stream.Stream] for OpenAI.
package openai

import (
	"context"
	"net/http"

	"github.com/charmbracelet/parley/internal/proto"
	"github.com/charmbracelet/parley/internal/stream"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

var _ stream.Client = &Client{}

// Client is the openai client.
type Client struct {
	*openai.Client
}

// Config represents the configuration for the OpenAI API client.
type Config struct {
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration for the OpenAI API client.
func DefaultConfig(authToken string) Config {
	return Config{
		AuthToken: authToken,
	}
}

// New creates a new [Client] with the given [Config].
func New(config Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(config.AuthToken),
		option.WithMaxRetries(0),
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &Client{
		Client: &client,
	}
}

func fromProtoMessages(input []proto.Message) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, msg := range input {
		switch msg.Role {
		case proto.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case proto.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case proto.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	return messages
}

// Request makes a new request and returns a stream.
func (c *Client) Request(ctx context.Context, request proto.Request) stream.Stream {
	body := openai.ChatCompletionNewParams{
		Model:    request.Model,
		Messages: fromProtoMessages(request.Messages),
	}
	if request.User != "" {
		body.User = openai.String(request.User)
	}
	if request.Temperature != nil {
		body.Temperature = openai.Float(*request.Temperature)
	}
	if request.TopP != nil {
		body.TopP = openai.Float(*request.TopP)
	}
	if len(request.Stop) > 0 {
		body.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: request.Stop,
		}
	}
	if request.MaxTokens != nil {
		body.MaxTokens = openai.Int(*request.MaxTokens)
	}

	return &Stream{
		stream:   c.Chat.Completions.NewStreaming(ctx, body),
		messages: request.Messages,
	}
}

// Stream openai stream.
type Stream struct {
	done     bool
	stream   *ssestream.Stream[openai.ChatCompletionChunk]
	message  openai.ChatCompletionAccumulator
	messages []proto.Message
}

// Close implements stream.Stream.
func (s *Stream) Close() error { return s.stream.Close() } //nolint:wrapcheck

// Current implements stream.Stream.
func (s *Stream) Current() (proto.Chunk, error) {
	event := s.stream.Current()
	s.message.AddChunk(event)
	if len(event.Choices) > 0 && event.Choices[0].Delta.Content != "" {
		return proto.Chunk{
			Content: event.Choices[0].Delta.Content,
		}, nil
	}
	return proto.Chunk{}, stream.ErrNoContent
}

// Err implements stream.Stream.
func (s *Stream) Err() error { return s.stream.Err() } //nolint:wrapcheck

// Messages implements stream.Stream.
func (s *Stream) Messages() []proto.Message { return s.messages }

// Next implements stream.Stream.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if s.stream.Next() {
		return true
	}

	s.done = true
	if s.stream.Err() == nil && len(s.message.Choices) > 0 {
		s.messages = append(s.messages, proto.Message{
			Role:    proto.RoleAssistant,
			Content: s.message.Choices[0].Message.Content,
		})
	}
	return false
}
