package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestListModels(t *testing.T) {
	var catalogCalls atomic.Int32
	openrouterSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models", r.URL.Path)
		catalogCalls.Add(1)
		_, _ = w.Write([]byte(`{"data":[
			{"id":"mistralai/mistral-7b-instruct:free","context_length":32768,"pricing":{"prompt":"0","completion":"0"}},
			{"id":"openai/gpt-4o","context_length":128000,"pricing":{"prompt":"0.0000025","completion":"0.00001"}}
		]}`))
	}))
	t.Cleanup(openrouterSrv.Close)

	ollamaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest"}]}`))
	}))
	t.Cleanup(ollamaSrv.Close)

	cfg := defaultConfig()
	cfg.CachePath = t.TempDir()
	require.NoError(t, yaml.Unmarshal([]byte(`
openrouter:
  base-url: `+openrouterSrv.URL+`
  api-key: sk-test
  models:
    mistralai/mistral-7b-instruct:free:
      aliases: ["mistral", "m7"]
ollama:
  base-url: `+ollamaSrv.URL+`
  models:
    llama3:
      aliases: ["local"]
`), &cfg.APIs))

	listing, err := fetchModels(context.Background(), &cfg)
	require.NoError(t, err)
	require.Len(t, listing.openrouter, 2)
	require.Equal(t, []string{"llama3:latest"}, listing.ollama)

	// served from the catalog cache.
	_, err = fetchModels(context.Background(), &cfg)
	require.NoError(t, err)
	require.EqualValues(t, 1, catalogCalls.Load())

	var buf bytes.Buffer
	printModels(&buf, makeStyles(lipgloss.NewRenderer(io.Discard)), &cfg, listing)
	out := buf.String()
	require.Contains(t, out, "mistralai/mistral-7b-instruct:free [free] 32k ctx aka m7 and mistral")
	require.Contains(t, out, "openai/gpt-4o 128k ctx\n")
	require.Contains(t, out, "llama3:latest aka local")
}

func TestListModelsUnreachable(t *testing.T) {
	cfg := defaultConfig()
	cfg.CachePath = t.TempDir()
	cfg.APIs = APIs{
		{Name: "openrouter", BaseURL: "http://127.0.0.1:1"},
		{Name: "ollama", BaseURL: "http://127.0.0.1:1"},
	}
	_, err := fetchModels(context.Background(), &cfg)
	require.ErrorIs(t, err, errNoModelSource)
}

func TestFormatContext(t *testing.T) {
	require.Equal(t, "32k ctx", formatContext(32768))
	require.Equal(t, "128k ctx", formatContext(128000))
	require.Equal(t, "4097 ctx", formatContext(4097))
}

func TestListModelsKeyCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk-from-cmd", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"openai/gpt-4o","context_length":128000}]}`))
	}))
	t.Cleanup(srv.Close)

	cfg := defaultConfig()
	cfg.CachePath = t.TempDir()
	cfg.APIs = APIs{
		{Name: "openrouter", BaseURL: srv.URL, APIKeyEnv: "PARLEY_TEST_UNSET_KEY", APIKeyCmd: "echo sk-from-cmd"},
	}
	models, err := openrouterCatalog(context.Background(), &cfg, http.DefaultClient)
	require.NoError(t, err)
	require.Len(t, models, 1)
}
