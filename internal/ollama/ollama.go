// Package ollama implements [stream.Stream] for Ollama.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/parley/internal/proto"
	"github.com/charmbracelet/parley/internal/stream"
	"github.com/ollama/ollama/api"
)

var _ stream.Client = &Client{}

// Config represents the configuration for the Ollama API client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration for the Ollama API client.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:11434/",
		HTTPClient: &http.Client{},
	}
}

// Client ollama client.
type Client struct {
	*api.Client
}

// New creates a new [Client] with the given [Config].
func New(config Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/api"))
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url: %w", err)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &Client{
		Client: api.NewClient(u, config.HTTPClient),
	}, nil
}

// Request implements stream.Client.
func (c *Client) Request(ctx context.Context, request proto.Request) stream.Stream {
	b := true
	body := api.ChatRequest{
		Model:    request.Model,
		Messages: fromProtoMessages(request.Messages),
		Stream:   &b,
		Options:  map[string]any{},
	}

	if len(request.Stop) > 0 {
		body.Options["stop"] = request.Stop[0]
	}
	if request.MaxTokens != nil {
		body.Options["num_ctx"] = *request.MaxTokens
	}
	if request.Temperature != nil {
		body.Options["temperature"] = *request.Temperature
	}
	if request.TopP != nil {
		body.Options["top_p"] = *request.TopP
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		cancel:   cancel,
		respCh:   make(chan api.ChatResponse),
		messages: request.Messages,
	}
	go func() {
		defer close(s.respCh)
		if err := c.Chat(ctx, &body, func(resp api.ChatResponse) error {
			select {
			case s.respCh <- resp:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}); err != nil {
			s.err = fmt.Errorf("ollama: %w", err)
		}
	}()
	return s
}

// Models lists the locally available models.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	resp, err := c.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

func fromProtoMessages(input []proto.Message) []api.Message {
	messages := make([]api.Message, 0, len(input))
	for _, msg := range input {
		messages = append(messages, api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}

// Stream ollama stream.
//
// Responses are produced by a goroutine running the chat call; err is only
// written before respCh is closed, so it is safe to read once Next returned
// false.
type Stream struct {
	cancel   context.CancelFunc
	respCh   chan api.ChatResponse
	err      error
	done     bool
	current  string
	content  strings.Builder
	messages []proto.Message
}

// Next implements stream.Stream.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	resp, ok := <-s.respCh
	if !ok {
		s.done = true
		if s.err == nil {
			s.messages = append(s.messages, proto.Message{
				Role:    proto.RoleAssistant,
				Content: s.content.String(),
			})
		}
		return false
	}
	s.current = resp.Message.Content
	s.content.WriteString(s.current)
	return true
}

// Current implements stream.Stream.
func (s *Stream) Current() (proto.Chunk, error) {
	if s.current == "" {
		return proto.Chunk{}, stream.ErrNoContent
	}
	return proto.Chunk{Content: s.current}, nil
}

// Close implements stream.Stream.
func (s *Stream) Close() error {
	s.cancel()
	if !s.done {
		// unblock the producer so it can observe the cancellation.
		for range s.respCh { //nolint:revive
		}
		s.done = true
	}
	return nil
}

// Err implements stream.Stream.
func (s *Stream) Err() error {
	if !s.done {
		return nil
	}
	return s.err
}

// Messages implements stream.Stream.
func (s *Stream) Messages() []proto.Message { return s.messages }
