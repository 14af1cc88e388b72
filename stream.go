package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/caarlos0/go-shellwords"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/parley/internal/ollama"
	"github.com/charmbracelet/parley/internal/openai"
	"github.com/charmbracelet/parley/internal/openrouter"
	"github.com/charmbracelet/parley/internal/proto"
	"github.com/charmbracelet/parley/internal/stream"
	"github.com/charmbracelet/x/exp/ordered"
)

const maxStopSequences = 4

func (m *Parley) startCompletionCmd(content string) tea.Cmd {
	if m.Config.Show != "" || m.Config.ShowLast {
		return m.readFromCache()
	}

	return func() tea.Msg {
		cfg := m.Config
		api, mod, err := m.resolveModel(cfg)
		if err != nil {
			return err
		}
		cfg.API = mod.API
		cfg.Model = mod.Name
		log.Debug("resolved model", "api", mod.API, "model", mod.Name)

		client, err := m.newClient(api, mod)
		if err != nil {
			return err
		}

		if mod.MaxChars == 0 {
			mod.MaxChars = cfg.MaxInputChars
		}

		if err := m.setupStreamContext(content, mod); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		m.cancelRequest = cancel
		m.received = false

		return m.receiveCompletionStreamCmd(completionOutput{
			stream: client.Request(ctx, m.newRequest(mod)),
			errh: func(err error) tea.Msg {
				return m.handleRequestError(err, mod, content)
			},
		})()
	}
}

func (m *Parley) newRequest(mod Model) proto.Request {
	cfg := m.Config
	request := proto.Request{
		Messages: m.messages,
		API:      mod.API,
		Model:    mod.Name,
		User:     cfg.User,
	}
	if cfg.Temperature >= 0 {
		temp := ordered.Clamp(cfg.Temperature, 0, 2)
		request.Temperature = &temp
	}
	if cfg.TopP >= 0 {
		topP := ordered.Clamp(cfg.TopP, 0, 1)
		request.TopP = &topP
	}
	if cfg.MaxTokens > 0 {
		request.MaxTokens = &cfg.MaxTokens
	}
	if len(cfg.Stop) > 0 {
		request.Stop = cfg.Stop[:min(len(cfg.Stop), maxStopSequences)]
	}
	return request
}

func (m *Parley) newClient(api API, mod Model) (stream.Client, error) {
	httpClient, err := newHTTPClient(m.Config)
	if err != nil {
		return nil, err
	}

	switch mod.API {
	case "ollama":
		ocfg := ollama.DefaultConfig()
		if api.BaseURL != "" {
			ocfg.BaseURL = api.BaseURL
		}
		ocfg.HTTPClient = httpClient
		client, err := ollama.New(ocfg)
		if err != nil {
			return nil, parleyError{err, "Could not setup client."}
		}
		return client, nil
	case "openrouter":
		key, err := m.ensureKey(api, "OPENROUTER_API_KEY", "https://openrouter.ai/settings/keys")
		if err != nil {
			return nil, err
		}
		ocfg := openrouter.DefaultConfig(key)
		if api.BaseURL != "" {
			ocfg.BaseURL = api.BaseURL
		}
		ocfg.HTTPClient = httpClient
		ocfg.SiteURL = m.Config.SiteURL
		ocfg.SiteName = m.Config.SiteName
		return openrouter.New(ocfg), nil
	default:
		key, err := m.ensureKey(api, "OPENAI_API_KEY", "https://platform.openai.com/account/api-keys")
		if err != nil {
			return nil, err
		}
		ccfg := openai.DefaultConfig(key)
		ccfg.BaseURL = api.BaseURL
		ccfg.HTTPClient = httpClient
		return openai.New(ccfg), nil
	}
}

func newHTTPClient(cfg *Config) (*http.Client, error) {
	if cfg.HTTPProxy == "" {
		return &http.Client{}, nil
	}
	proxyURL, err := url.Parse(cfg.HTTPProxy)
	if err != nil {
		return nil, parleyError{err, "There was an error parsing your proxy URL."}
	}
	return &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}, nil
}

func (m *Parley) receiveCompletionStreamCmd(msg completionOutput) tea.Cmd {
	return func() tea.Msg {
		if msg.stream.Next() {
			chunk, err := msg.stream.Current()
			if err != nil && !errors.Is(err, stream.ErrNoContent) {
				_ = msg.stream.Close()
				return msg.errh(err)
			}
			return completionOutput{
				content: chunk.Content,
				stream:  msg.stream,
				errh:    msg.errh,
			}
		}

		// stream is done, check for errors
		err := msg.stream.Err()
		_ = msg.stream.Close()
		if err != nil {
			return msg.errh(err)
		}

		m.messages = msg.stream.Messages()
		return completionOutput{errh: msg.errh}
	}
}

// resolveModel finds the API and model to use. A model that is not in the
// settings is accepted as is when the API was given explicitly.
func (m *Parley) resolveModel(cfg *Config) (API, Model, error) {
	if cfg.Model == "" {
		return API{}, Model{}, parleyError{
			err:    newUserErrorf("Set one with %s or in the settings.", m.Styles.InlineCode.Render("--model")),
			reason: "No model selected.",
		}
	}
	if cfg.API == "" {
		mod, ok := cfg.Models[cfg.Model]
		if !ok {
			return API{}, Model{}, parleyError{
				reason: fmt.Sprintf("Model %s is not in the settings file.", m.Styles.InlineCode.Render(cfg.Model)),
				err: newUserErrorf(
					"Please specify an API endpoint with %s or configure the model in the settings: %s",
					m.Styles.InlineCode.Render("--api"),
					m.Styles.InlineCode.Render("parley --settings"),
				),
			}
		}
		return findAPI(cfg.APIs, mod.API), mod, nil
	}
	for _, api := range cfg.APIs {
		if api.Name != cfg.API {
			continue
		}
		for name, mod := range api.Models {
			if name == cfg.Model || slices.Contains(mod.Aliases, cfg.Model) {
				mod.Name = name
				mod.API = api.Name
				return api, mod, nil
			}
		}
		return api, Model{Name: cfg.Model, API: api.Name}, nil
	}
	return API{}, Model{}, parleyError{
		err: newUserErrorf(
			"Add it to the settings with %s",
			m.Styles.InlineCode.Render("parley --settings"),
		),
		reason: fmt.Sprintf("The API %s is not in the settings file.", m.Styles.InlineCode.Render(cfg.API)),
	}
}

// lookupKey resolves the key of api from the settings, the api-key-cmd
// output, or the api-key-env and defaultEnv variables.
func lookupKey(api API, defaultEnv string) (string, error) {
	key := api.APIKey
	if key == "" && api.APIKeyEnv != "" && api.APIKeyCmd == "" {
		key = os.Getenv(api.APIKeyEnv)
	}
	if key == "" && api.APIKeyCmd != "" {
		args, err := shellwords.Parse(api.APIKeyCmd)
		if err != nil {
			return "", parleyError{err, "Failed to parse api-key-cmd"}
		}
		if len(args) == 0 {
			return "", parleyError{newUserErrorf("empty command"), "Failed to parse api-key-cmd"}
		}
		out, err := exec.Command(args[0], args[1:]...).CombinedOutput() //nolint:gosec
		if err != nil {
			return "", parleyError{err, "Cannot exec api-key-cmd"}
		}
		key = strings.TrimSpace(string(out))
	}
	if key == "" {
		key = os.Getenv(defaultEnv)
	}
	return key, nil
}

func (m *Parley) ensureKey(api API, defaultEnv, docsURL string) (string, error) {
	key, err := lookupKey(api, defaultEnv)
	if err != nil {
		return "", err
	}
	if key != "" {
		return key, nil
	}
	return "", parleyError{
		reason: fmt.Sprintf(
			"%[1]s required; set the environment variable %[1]s or update %[2]s through %[3]s.",
			m.Styles.InlineCode.Render(defaultEnv),
			m.Styles.InlineCode.Render("parley.yml"),
			m.Styles.InlineCode.Render("parley --settings"),
		),
		err: newUserErrorf(
			"You can grab one at %s.",
			m.Styles.Link.Render(docsURL),
		),
	}
}

// setupStreamContext builds the conversation sent to the API: system
// messages, the saved transcript when continuing, then the new prompt.
func (m *Parley) setupStreamContext(content string, mod Model) error {
	cfg := m.Config
	m.messages = []proto.Message{}

	if txt := cfg.FormatText; cfg.Format && txt != "" {
		m.messages = append(m.messages, proto.Message{
			Role:    proto.RoleSystem,
			Content: txt,
		})
	}

	if cfg.SystemPrompt != "" {
		prompt, err := loadMsg(context.Background(), cfg.SystemPrompt)
		if err != nil {
			return parleyError{
				err:    err,
				reason: "Could not load the system prompt.",
			}
		}
		m.messages = append(m.messages, proto.Message{
			Role:    proto.RoleSystem,
			Content: prompt,
		})
	}

	if prefix := cfg.Prefix; prefix != "" {
		content = strings.TrimSpace(prefix + "\n\n" + content)
	}

	if !cfg.NoLimit && mod.MaxChars > 0 {
		content = truncate(content, mod.MaxChars)
	}

	if !cfg.NoCache && cfg.cacheReadFromID != "" {
		var history []proto.Message
		if err := m.cache.Read(cfg.cacheReadFromID, &history); err != nil {
			return parleyError{
				err: err,
				reason: fmt.Sprintf(
					"There was a problem reading the cache. Use %s / %s to disable it.",
					m.Styles.InlineCode.Render("--no-cache"),
					m.Styles.InlineCode.Render("PARLEY_NO_CACHE"),
				),
			}
		}
		// the transcript already starts with its own system messages.
		m.messages = history
	}

	m.messages = append(m.messages, proto.Message{
		Role:    proto.RoleUser,
		Content: content,
	})

	return nil
}
