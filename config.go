package main

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

//go:embed config_template.yml
var configTemplate string

const (
	defaultMarkdownFormatText = "Format the response as markdown without enclosing backticks."
	defaultModelsCacheTTL     = 24 * time.Hour
)

var help = map[string]string{
	"api":               "API to use (openrouter, ollama, or any OpenAI compatible API in the settings).",
	"apis":              "Aliases and endpoints for the chat completion APIs.",
	"http-proxy":        "HTTP proxy to use for API requests.",
	"model":             "Default model (mistralai/mistral-7b-instruct:free, llama3...).",
	"max-input-chars":   "Default character limit on input to model.",
	"format":            "Ask for the response to be formatted as markdown unless otherwise set.",
	"format-text":       "Text to append when using the -f flag.",
	"system-prompt":     "System prompt sent before the conversation. Accepts text, a file:// path or an URL.",
	"raw":               "Render output as raw text when connected to a TTY.",
	"quiet":             "Quiet mode (hide the spinner while loading and stderr messages for success).",
	"theme":             "Theme of the rendered markdown (auto, dark, light).",
	"help":              "Show help and exit.",
	"version":           "Show version and exit.",
	"no-limit":          "Turn off the client-side limit on the size of the input into the model.",
	"max-tokens":        "Maximum number of tokens in response.",
	"temp":              "Temperature (randomness) of results, from 0.0 to 2.0, -1.0 to disable.",
	"stop":              "Up to 4 sequences where the API will stop generating further tokens.",
	"topp":              "TopP, an alternative to temperature that narrows response, from 0.0 to 1.0, -1.0 to disable.",
	"user":              "User identifier forwarded to the API.",
	"site-url":          "Site URL sent to OpenRouter for app attribution.",
	"site-name":         "Site name sent to OpenRouter for app attribution.",
	"models-cache-ttl":  "How long the OpenRouter model catalog is cached.",
	"verbose":           "Log debug information to stderr.",
	"settings":          "Open settings in your $EDITOR.",
	"dirs":              "Print the directories in which parley store its data.",
	"reset-settings":    "Backup your old settings file and reset everything to the defaults.",
	"continue":          "Continue from the last response or a given save title.",
	"continue-last":     "Continue from the last response.",
	"no-cache":          "Disables caching of the prompt/response.",
	"title":             "Saves the current conversation with the given title.",
	"list":              "Lists saved conversations.",
	"list-models":       "Lists the models available in the OpenRouter catalog and local Ollama.",
	"delete":            "Deletes one or more saved conversations with the given titles or IDs.",
	"delete-older-than": "Deletes all saved conversations older than the specified duration; valid values are " + durationExamples + ".",
	"show":              "Show a saved conversation with the given title or ID.",
	"show-last":         "Show the last saved conversation.",
	"copy":              "Copy the response to the clipboard.",
	"export":            "Export all saved conversations as JSON to the given file, or - for stdout.",
	"import":            "Import conversations from a JSON export file, or - for stdin.",
}

const durationExamples = "1d, 2w, 3mo, 1y"

// Model represents the LLM model used in the API call.
type Model struct {
	Name     string
	API      string
	MaxChars int64    `yaml:"max-input-chars"`
	Aliases  []string `yaml:"aliases"`
	Fallback string   `yaml:"fallback"`
}

// API represents an API endpoint and its models.
type API struct {
	Name      string
	APIKey    string           `yaml:"api-key"`
	APIKeyEnv string           `yaml:"api-key-env"`
	APIKeyCmd string           `yaml:"api-key-cmd"`
	BaseURL   string           `yaml:"base-url"`
	Models    map[string]Model `yaml:"models"`
}

// APIs is a type alias to allow custom YAML decoding.
type APIs []API

// UnmarshalYAML implements sorted API YAML decoding.
func (apis *APIs) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i < len(node.Content); i += 2 {
		var api API
		if err := node.Content[i+1].Decode(&api); err != nil {
			return fmt.Errorf("error decoding YAML file: %s", err)
		}
		api.Name = node.Content[i].Value
		*apis = append(*apis, api)
	}
	return nil
}

// Config holds the main configuration and is mapped to the YAML settings file.
type Config struct {
	Model          string        `yaml:"default-model" env:"MODEL"`
	API            string        `yaml:"default-api" env:"API"`
	Format         bool          `yaml:"format" env:"FORMAT"`
	FormatText     string        `yaml:"format-text" env:"FORMAT_TEXT"`
	SystemPrompt   string        `yaml:"system-prompt" env:"SYSTEM_PROMPT"`
	Raw            bool          `yaml:"raw" env:"RAW"`
	Quiet          bool          `yaml:"quiet" env:"QUIET"`
	Theme          string        `yaml:"theme" env:"THEME"`
	MaxTokens      int64         `yaml:"max-tokens" env:"MAX_TOKENS"`
	MaxInputChars  int64         `yaml:"max-input-chars" env:"MAX_INPUT_CHARS"`
	Temperature    float64       `yaml:"temp" env:"TEMP"`
	Stop           []string      `yaml:"stop" env:"STOP"`
	TopP           float64       `yaml:"topp" env:"TOPP"`
	User           string        `yaml:"user" env:"USER"`
	NoLimit        bool          `yaml:"no-limit" env:"NO_LIMIT"`
	CachePath      string        `yaml:"cache-path" env:"CACHE_PATH"`
	NoCache        bool          `yaml:"no-cache" env:"NO_CACHE"`
	HTTPProxy      string        `yaml:"http-proxy" env:"HTTP_PROXY"`
	SiteURL        string        `yaml:"site-url" env:"SITE_URL"`
	SiteName       string        `yaml:"site-name" env:"SITE_NAME"`
	ModelsCacheTTL time.Duration `yaml:"models-cache-ttl" env:"MODELS_CACHE_TTL"`
	Verbose        bool          `yaml:"verbose" env:"VERBOSE"`
	APIs           APIs          `yaml:"apis"`

	Models          map[string]Model
	ShowHelp        bool
	ResetSettings   bool
	Prefix          string
	Version         bool
	Settings        bool
	Dirs            bool
	SettingsPath    string
	ContinueLast    bool
	Continue        string
	Title           string
	ShowLast        bool
	Show            string
	List            bool
	ListModels      bool
	Delete          []string
	DeleteOlderThan time.Duration
	Copy            bool
	Export          string
	Import          string

	cacheReadFromID, cacheWriteToID, cacheWriteToTitle string
}

func defaultConfig() Config {
	return Config{
		FormatText:     defaultMarkdownFormatText,
		Theme:          "auto",
		Temperature:    -1,
		TopP:           -1,
		ModelsCacheTTL: defaultModelsCacheTTL,
	}
}

func ensureConfig() (Config, error) {
	sp, err := xdg.ConfigFile(filepath.Join("parley", "parley.yml"))
	if err != nil {
		return defaultConfig(), parleyError{err, "Could not find settings path."}
	}
	c, err := loadConfig(sp)
	if err != nil {
		return c, err
	}
	if c.CachePath == "" {
		c.CachePath = filepath.Join(xdg.DataHome, "parley")
	}
	if err := os.MkdirAll(c.CachePath, 0o700); err != nil { //nolint:mnd
		return c, parleyError{err, "Could not create cache directory."}
	}
	return c, nil
}

// loadConfig reads the settings file at path, creating it from the template
// when missing, and applies PARLEY_* environment overrides on top.
func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	c.SettingsPath = path

	dir := filepath.Dir(path)
	if dirErr := os.MkdirAll(dir, 0o700); dirErr != nil { //nolint:mnd
		return c, parleyError{dirErr, "Could not create settings directory."}
	}

	if err := writeConfigFile(path); err != nil {
		return c, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return c, parleyError{err, "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, parleyError{err, "Could not parse settings file."}
	}

	c.Models = indexModels(c.APIs)

	if err := env.ParseWithOptions(&c, env.Options{Prefix: "PARLEY_"}); err != nil {
		return c, parleyError{err, "Could not parse environment into settings file."}
	}
	return c, nil
}

// indexModels maps every model name and alias to its model. The first API
// declaring a name wins.
func indexModels(apis APIs) map[string]Model {
	ms := make(map[string]Model)
	for _, api := range apis {
		for mk, mv := range api.Models {
			mv.Name = mk
			mv.API = api.Name
			if _, ok := ms[mk]; !ok {
				ms[mk] = mv
			}
			for _, a := range mv.Aliases {
				if _, ok := ms[a]; !ok {
					ms[a] = mv
				}
			}
		}
	}
	return ms
}

func writeConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return parleyError{err, "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return parleyError{err, "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct {
		Config Config
		Help   map[string]string
	}{
		Config: defaultConfig(),
		Help:   help,
	}
	if err := tmpl.Execute(f, m); err != nil {
		return parleyError{err, "Could not render template."}
	}
	return nil
}
