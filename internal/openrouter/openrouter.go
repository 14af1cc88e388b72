// Package openrouter implements [stream.Stream] for OpenRouter and any other
// API speaking the OpenAI streaming chat completion protocol.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/parley/internal/proto"
	"github.com/charmbracelet/parley/internal/stream"
)

var _ stream.Client = &Client{}

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

const chatCompletionsSuffix = "/chat/completions"

// Config represents the configuration for the OpenRouter API client.
type Config struct {
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client

	// Attribution headers, see https://openrouter.ai/docs/api-reference/overview
	SiteURL  string
	SiteName string
}

// DefaultConfig returns the default configuration for the OpenRouter API client.
func DefaultConfig(authToken string) Config {
	return Config{
		AuthToken:  authToken,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{},
	}
}

// Client is the openrouter client.
type Client struct {
	config Config
}

// New creates a new [Client] with the given [Config].
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &Client{config: config}
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	User        string        `json:"user,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int64        `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

func fromProtoMessages(input []proto.Message) []chatMessage {
	messages := make([]chatMessage, 0, len(input))
	for _, msg := range input {
		messages = append(messages, chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}

// Request implements stream.Client.
func (c *Client) Request(ctx context.Context, request proto.Request) stream.Stream {
	s := &Stream{
		messages: request.Messages,
	}
	body := chatRequest{
		Model:       request.Model,
		Messages:    fromProtoMessages(request.Messages),
		Stream:      true,
		User:        request.User,
		Temperature: request.Temperature,
		TopP:        request.TopP,
		MaxTokens:   request.MaxTokens,
		Stop:        request.Stop,
	}

	req, err := c.newRequest(ctx, http.MethodPost, chatCompletionsSuffix, body)
	if err != nil {
		s.err = err
		return s
	}
	req.Header.Set("Accept", "text/event-stream")

	log.Debug("requesting completion", "url", req.URL.String(), "model", request.Model)
	resp, err := c.config.HTTPClient.Do(req) //nolint:bodyclose // body is closed in stream.Close()
	if err != nil {
		s.err = fmt.Errorf("openrouter: %w", err)
		return s
	}
	if isFailureStatusCode(resp) {
		s.err = handleErrorResp(resp)
		_ = resp.Body.Close()
		return s
	}

	s.body = resp.Body
	s.reader = stream.NewReader(resp.Body)
	return s
}

func (c *Client) newRequest(ctx context.Context, method, suffix string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		bts, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("openrouter: encode request: %w", err)
		}
		r = bytes.NewReader(bts)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+suffix, r)
	if err != nil {
		return nil, fmt.Errorf("openrouter: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}
	if c.config.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.config.SiteURL)
	}
	if c.config.SiteName != "" {
		req.Header.Set("X-Title", c.config.SiteName)
	}
	return req, nil
}

func isFailureStatusCode(resp *http.Response) bool {
	return resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest
}

func handleErrorResp(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Error.Message
		if body.Error.Code != nil {
			apiErr.Code = fmt.Sprint(body.Error.Code)
		}
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// Stream openrouter stream.
type Stream struct {
	body     io.ReadCloser
	reader   *stream.Reader
	err      error
	done     bool
	current  string
	content  strings.Builder
	messages []proto.Message
}

// Next implements stream.Stream.
func (s *Stream) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	if s.reader.Next() {
		s.current = s.reader.Fragment()
		s.content.WriteString(s.current)
		return true
	}

	s.done = true
	if n := s.reader.Dropped(); n > 0 {
		log.Debug("dropped malformed frames", "count", n)
	}
	if err := s.reader.Err(); err != nil {
		s.err = fmt.Errorf("openrouter: %w", err)
		return false
	}
	s.messages = append(s.messages, proto.Message{
		Role:    proto.RoleAssistant,
		Content: s.content.String(),
	})
	return false
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
	if s.body == nil {
		return nil
	}
	return s.body.Close() //nolint:wrapcheck
}

// Err implements stream.Stream.
func (s *Stream) Err() error { return s.err }

// Messages implements stream.Stream.
func (s *Stream) Messages() []proto.Message { return s.messages }
