package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/parley/internal/proto"
	"github.com/charmbracelet/parley/internal/stream"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		AuthToken:  "sk-test",
		BaseURL:    srv.URL + "/v1/",
		HTTPClient: srv.Client(),
	})
}

func TestRequest(t *testing.T) {
	t.Run("streams", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "gpt-4o-mini", body["model"])
			require.Equal(t, true, body["stream"])

			w.Header().Set("Content-Type", "text/event-stream")
			for _, c := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, `data: {"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":%q}}]}`+"\n\n", c)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		})

		s := client.Request(context.Background(), proto.Request{
			Model:    "gpt-4o-mini",
			Messages: []proto.Message{{Role: proto.RoleUser, Content: "hi"}},
		})
		var sb strings.Builder
		for s.Next() {
			chunk, err := s.Current()
			if errors.Is(err, stream.ErrNoContent) {
				continue
			}
			require.NoError(t, err)
			sb.WriteString(chunk.Content)
		}
		require.NoError(t, s.Err())
		require.NoError(t, s.Close())
		require.Equal(t, "Hello", sb.String())
		require.Len(t, s.Messages(), 2)
		require.Equal(t, "Hello", s.Messages()[1].Content)
	})

	t.Run("api error", func(t *testing.T) {
		var calls atomic.Int32
		client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests","code":"rate_limit_exceeded"}}`))
		})
		s := client.Request(context.Background(), proto.Request{Model: "gpt-4o-mini"})
		require.False(t, s.Next())
		var apiErr *openai.Error
		require.ErrorAs(t, s.Err(), &apiErr)
		require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		require.EqualValues(t, 1, calls.Load())
	})
}
