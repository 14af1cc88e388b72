package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/parley/internal/cache"
	"github.com/charmbracelet/parley/internal/ollama"
	"github.com/charmbracelet/parley/internal/openrouter"
	xstrings "github.com/charmbracelet/x/exp/strings"
	"golang.org/x/sync/errgroup"
)

const openrouterCatalogID = "openrouter"

var errNoModelSource = errors.New("no model source could be reached")

type modelListing struct {
	openrouter []openrouter.ModelInfo
	ollama     []string
}

// fetchModels asks the OpenRouter catalog, cached for the configured TTL,
// and the local Ollama server for their models. One failing source only
// logs a warning.
func fetchModels(ctx context.Context, cfg *Config) (modelListing, error) {
	var (
		listing      modelListing
		orErr, olErr error
		g            errgroup.Group
	)
	httpClient, err := newHTTPClient(cfg)
	if err != nil {
		return listing, err
	}

	g.Go(func() error {
		listing.openrouter, orErr = openrouterCatalog(ctx, cfg, httpClient)
		return nil
	})
	g.Go(func() error {
		api := findAPI(cfg.APIs, "ollama")
		ocfg := ollama.DefaultConfig()
		if api.BaseURL != "" {
			ocfg.BaseURL = api.BaseURL
		}
		ocfg.HTTPClient = httpClient
		client, err := ollama.New(ocfg)
		if err != nil {
			olErr = err
			return nil
		}
		listing.ollama, olErr = client.Models(ctx)
		return nil
	})
	_ = g.Wait()

	if orErr != nil {
		log.Warn("could not list openrouter models", "err", orErr)
	}
	if olErr != nil {
		log.Warn("could not list ollama models", "err", olErr)
	}
	if orErr != nil && olErr != nil {
		return listing, fmt.Errorf("%w: %w", errNoModelSource, errors.Join(orErr, olErr))
	}
	return listing, nil
}

func openrouterCatalog(ctx context.Context, cfg *Config, httpClient *http.Client) ([]openrouter.ModelInfo, error) {
	catalog, err := cache.NewCatalog[[]openrouter.ModelInfo](cfg.CachePath)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if models, err := catalog.Get(openrouterCatalogID); err == nil {
		log.Debug("using cached openrouter catalog", "models", len(models))
		return models, nil
	}

	api := findAPI(cfg.APIs, "openrouter")
	key, err := lookupKey(api, "OPENROUTER_API_KEY")
	if err != nil {
		return nil, err
	}
	ocfg := openrouter.DefaultConfig(key)
	if api.BaseURL != "" {
		ocfg.BaseURL = api.BaseURL
	}
	ocfg.HTTPClient = httpClient
	models, err := openrouter.New(ocfg).Models(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if err := catalog.Put(openrouterCatalogID, cfg.ModelsCacheTTL, models); err != nil {
		log.Warn("could not cache the openrouter catalog", "err", err)
	}
	return models, nil
}

func findAPI(apis APIs, name string) API {
	for _, api := range apis {
		if api.Name == name {
			return api
		}
	}
	return API{Name: name}
}

// printModels writes one line per model, grouped by API, with the aliases
// configured in the settings.
func printModels(w io.Writer, s styles, cfg *Config, listing modelListing) {
	aliases := map[string][]string{}
	for _, api := range cfg.APIs {
		for name, mod := range api.Models {
			key := api.Name + "/" + name
			aliases[key] = append(aliases[key], mod.Aliases...)
			slices.Sort(aliases[key])
		}
	}
	line := func(api, name string, tags ...string) {
		var sb strings.Builder
		sb.WriteString(s.Bullet.String())
		sb.WriteString(name)
		for _, tag := range tags {
			sb.WriteString(" ")
			sb.WriteString(tag)
		}
		if as := aliases[api+"/"+strings.TrimSuffix(name, ":latest")]; len(as) > 0 {
			sb.WriteString(s.Comment.Render(" aka " + xstrings.EnglishJoin(as, true)))
		}
		fmt.Fprintln(w, sb.String())
	}

	if len(listing.openrouter) > 0 {
		fmt.Fprintln(w, s.AppName.Render("openrouter"))
		for _, m := range listing.openrouter {
			var tags []string
			if m.Free {
				tags = append(tags, s.Free.Render("[free]"))
			}
			if m.ContextLength > 0 {
				tags = append(tags, s.Comment.Render(formatContext(m.ContextLength)))
			}
			line("openrouter", m.ID, tags...)
		}
	}
	if len(listing.ollama) > 0 {
		if len(listing.openrouter) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, s.AppName.Render("ollama"))
		for _, name := range listing.ollama {
			line("ollama", name)
		}
	}
}

func formatContext(n int64) string {
	const k = 1000
	if n >= k && n%k == 0 {
		return fmt.Sprintf("%dk ctx", n/k)
	}
	if n >= 1024 && n%1024 == 0 {
		return fmt.Sprintf("%dk ctx", n/1024)
	}
	return fmt.Sprintf("%d ctx", n)
}
