package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/charmbracelet/parley/internal/openrouter"
	"github.com/charmbracelet/parley/internal/stream"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/require"
)

func TestCanFallback(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		code int
		ok   bool
	}{
		"connection":   {errors.New("dial tcp: connection refused"), 0, true},
		"stream error": {fmt.Errorf("openrouter: %w", &stream.EventError{Message: "boom"}), 0, true},
		"not found":    {&openrouter.APIError{StatusCode: http.StatusNotFound}, http.StatusNotFound, true},
		"server":       {fmt.Errorf("openai: %w", &openai.Error{StatusCode: http.StatusBadGateway}), http.StatusBadGateway, true},
		"ollama":       {fmt.Errorf("ollama: %w", api.StatusError{StatusCode: http.StatusInternalServerError}), http.StatusInternalServerError, true},
		"rate limited": {&openrouter.APIError{StatusCode: http.StatusTooManyRequests}, http.StatusTooManyRequests, false},
		"bad request":  {&openrouter.APIError{StatusCode: http.StatusBadRequest}, http.StatusBadRequest, false},
		"unauthorized": {&openai.Error{StatusCode: http.StatusUnauthorized}, http.StatusUnauthorized, false},
	} {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.code, statusCode(tc.err))
			require.Equal(t, tc.ok, canFallback(tc.err))
		})
	}
}

func TestClassifyRequestError(t *testing.T) {
	parley := newTestParley(t)
	mod := Model{Name: "mistral", API: "openrouter"}
	for code, reason := range map[int]string{
		http.StatusBadRequest:          "openrouter API request error.",
		http.StatusUnauthorized:        "Invalid openrouter API key.",
		http.StatusForbidden:           "Invalid openrouter API key.",
		http.StatusPaymentRequired:     "Your openrouter account is out of credits.",
		http.StatusNotFound:            "Missing model 'mistral' for API 'openrouter'.",
		http.StatusServiceUnavailable:  "openrouter API server error.",
		http.StatusUnprocessableEntity: "Unknown API error.",
	} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			perr := parley.classifyRequestError(&openrouter.APIError{StatusCode: code}, mod)
			require.Equal(t, reason, perr.Reason())
		})
	}
}
