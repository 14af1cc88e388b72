package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/parley/internal/openrouter"
	"github.com/charmbracelet/parley/internal/stream"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go"
)

// newUserErrorf is a user-facing error.
// this function is mostly to avoid linters complain about errors starting with a capitalized letter.
func newUserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// parleyError is a wrapper around an error that adds additional context.
type parleyError struct {
	err    error
	reason string
}

func (m parleyError) Error() string {
	return m.err.Error()
}

func (m parleyError) Unwrap() error {
	return m.err
}

func (m parleyError) Reason() string {
	return m.reason
}

// statusCode extracts the HTTP status of a failed request, or 0 when the
// request never got an answer.
func statusCode(err error) int {
	var orErr *openrouter.APIError
	if errors.As(err, &orErr) {
		return orErr.StatusCode
	}
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode
	}
	var olErr api.StatusError
	if errors.As(err, &olErr) {
		return olErr.StatusCode
	}
	return 0
}

// canFallback tells whether a failed request may be re-issued on the
// fallback model: the upstream could not be reached, does not know the
// model, or broke down.
func canFallback(err error) bool {
	var evErr *stream.EventError
	if errors.As(err, &evErr) {
		return true
	}
	code := statusCode(err)
	return code == 0 ||
		code == http.StatusNotFound ||
		code >= http.StatusInternalServerError
}

func (m *Parley) handleRequestError(err error, mod Model, content string) tea.Msg {
	if errors.Is(err, context.Canceled) {
		return parleyError{err, "Request canceled."}
	}

	if m.received {
		m.interrupt()
		return parleyError{err, fmt.Sprintf(
			"The %s API stopped answering midway; the partial response was kept.",
			mod.API,
		)}
	}

	perr := m.classifyRequestError(err, mod)
	if mod.Fallback != "" && canFallback(err) {
		return m.fallback(content, mod, perr)
	}
	return perr
}

func (m *Parley) classifyRequestError(err error, mod Model) parleyError {
	switch statusCode(err) {
	case 0:
		var evErr *stream.EventError
		if errors.As(err, &evErr) {
			return parleyError{err, fmt.Sprintf("%s API stream error.", mod.API)}
		}
		return parleyError{err, fmt.Sprintf(
			"There was a problem with the %s API request.",
			mod.API,
		)}
	case http.StatusNotFound:
		return parleyError{err, fmt.Sprintf(
			"Missing model '%s' for API '%s'.",
			mod.Name,
			mod.API,
		)}
	case http.StatusBadRequest:
		return parleyError{err, fmt.Sprintf("%s API request error.", mod.API)}
	case http.StatusUnauthorized, http.StatusForbidden:
		return parleyError{err, fmt.Sprintf("Invalid %s API key.", mod.API)}
	case http.StatusPaymentRequired:
		return parleyError{err, fmt.Sprintf("Your %s account is out of credits.", mod.API)}
	case http.StatusTooManyRequests:
		return parleyError{err, fmt.Sprintf("You’ve hit your %s API rate limit.", mod.API)}
	default:
		if statusCode(err) >= http.StatusInternalServerError {
			return parleyError{err, fmt.Sprintf("%s API server error.", mod.API)}
		}
		return parleyError{err, "Unknown API error."}
	}
}

// fallback switches to the fallback model of mod and issues the request
// again. Every model is tried at most once.
func (m *Parley) fallback(content string, mod Model, perr parleyError) tea.Msg {
	if m.tried == nil {
		m.tried = map[string]bool{}
	}
	m.tried[mod.Name] = true
	if m.tried[mod.Fallback] {
		return perr
	}
	log.Warn("falling back", "from", mod.Name, "to", mod.Fallback, "reason", perr.err)
	m.Config.Model = mod.Fallback
	m.Config.API = ""
	return completionInput{content}
}
