package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/parley/internal/proto"
	"github.com/charmbracelet/parley/internal/stream"
	"github.com/stretchr/testify/require"
)

func sse(contents ...string) string {
	var sb strings.Builder
	sb.WriteString(": OPENROUTER PROCESSING\n\n")
	for _, c := range contents {
		bts, _ := json.Marshal(c)
		fmt.Fprintf(&sb, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", bts)
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/"
	cfg.HTTPClient = srv.Client()
	cfg.SiteURL = "https://example.com"
	cfg.SiteName = "parley"
	return New(cfg)
}

func drain(t *testing.T, s stream.Stream) string {
	t.Helper()
	var sb strings.Builder
	for s.Next() {
		chunk, err := s.Current()
		if errors.Is(err, stream.ErrNoContent) {
			continue
		}
		require.NoError(t, err)
		sb.WriteString(chunk.Content)
	}
	return sb.String()
}

var request = proto.Request{
	Model: "mistralai/mistral-7b-instruct:free",
	Messages: []proto.Message{
		{Role: proto.RoleSystem, Content: "be brief"},
		{Role: proto.RoleUser, Content: "hi"},
	},
}

func TestRequest(t *testing.T) {
	t.Run("streams", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			require.Equal(t, "https://example.com", r.Header.Get("HTTP-Referer"))
			require.Equal(t, "parley", r.Header.Get("X-Title"))

			var body chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.True(t, body.Stream)
			require.Equal(t, request.Model, body.Model)
			require.Len(t, body.Messages, 2)
			require.Nil(t, body.Temperature)

			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(sse("Hel", "lo", " there")))
		})

		s := client.Request(context.Background(), request)
		t.Cleanup(func() { require.NoError(t, s.Close()) })
		require.Equal(t, "Hello there", drain(t, s))
		require.NoError(t, s.Err())

		msgs := s.Messages()
		require.Len(t, msgs, 3)
		require.Equal(t, proto.Message{Role: proto.RoleAssistant, Content: "Hello there"}, msgs[2])
	})

	t.Run("flushed chunks", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
			body := sse("one ", "two")
			for i := 0; i < len(body); i += 5 {
				_, _ = w.Write([]byte(body[i:min(i+5, len(body))]))
				w.(http.Flusher).Flush()
			}
		})
		s := client.Request(context.Background(), request)
		require.Equal(t, "one two", drain(t, s))
		require.NoError(t, s.Err())
	})

	t.Run("options", func(t *testing.T) {
		temp, topp, maxTokens := 0.0, 0.9, int64(100)
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, 0.0, body["temperature"])
			require.Equal(t, 0.9, body["top_p"])
			require.Equal(t, 100.0, body["max_tokens"])
			require.Equal(t, []any{"\n\n"}, body["stop"])
			_, _ = w.Write([]byte(sse("ok")))
		})
		req := request
		req.Temperature = &temp
		req.TopP = &topp
		req.MaxTokens = &maxTokens
		req.Stop = []string{"\n\n"}
		require.Equal(t, "ok", drain(t, client.Request(context.Background(), req)))
	})

	t.Run("api error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"No auth credentials found"}}`))
		})
		s := client.Request(context.Background(), request)
		require.False(t, s.Next())
		var apiErr *APIError
		require.ErrorAs(t, s.Err(), &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "401", apiErr.Code)
		require.Equal(t, "No auth credentials found", apiErr.Message)
		require.NoError(t, s.Close())
	})

	t.Run("api error without body", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		s := client.Request(context.Background(), request)
		require.False(t, s.Next())
		require.EqualError(t, s.Err(), "502: Bad Gateway")
	})

	t.Run("mid stream error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"part"}}]}` + "\n\n"))
			_, _ = w.Write([]byte(`data: {"error":{"code":"server_error","message":"provider returned error"}}` + "\n\n"))
		})
		s := client.Request(context.Background(), request)
		require.Equal(t, "part", drain(t, s))
		var eerr *stream.EventError
		require.ErrorAs(t, s.Err(), &eerr)
		require.Equal(t, "provider returned error", eerr.Message)
		require.Len(t, s.Messages(), 2)
	})

	t.Run("connection failure", func(t *testing.T) {
		cfg := DefaultConfig("sk-test")
		cfg.BaseURL = "http://127.0.0.1:1"
		s := New(cfg).Request(context.Background(), request)
		require.False(t, s.Next())
		require.Error(t, s.Err())
	})

	t.Run("canceled", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(sse("never")))
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := client.Request(ctx, request)
		require.False(t, s.Next())
		require.ErrorIs(t, s.Err(), context.Canceled)
	})
}

func TestModels(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/models", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[
			{"id":"mistralai/mistral-7b-instruct:free","name":"Mistral 7B","context_length":32768,"pricing":{"prompt":"0","completion":"0"}},
			{"id":"openai/gpt-4o","name":"GPT-4o","context_length":128000,"pricing":{"prompt":"0.0000025","completion":"0.00001"}},
			{"id":"local/model","context_length":8192},
			{"id":"weird/pricing","pricing":{"prompt":"-","completion":0}}
		]}`))
	})

	models, err := client.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 4)

	require.Equal(t, "Mistral 7B", models[0].Name)
	require.True(t, models[0].Free)
	require.EqualValues(t, 32768, models[0].ContextLength)

	require.False(t, models[1].Free)
	require.InDelta(t, 0.0000025, models[1].PromptPrice, 1e-12)
	require.InDelta(t, 0.00001, models[1].CompletionPrice, 1e-12)

	require.Equal(t, "local/model", models[2].Name)
	require.True(t, models[2].Free)

	require.False(t, models[3].Free)
}

func TestModelsError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	})
	_, err := client.Models(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, "slow down", apiErr.Message)
}
