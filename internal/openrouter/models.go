package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const modelsSuffix = "/models"

// ModelInfo describes a model offered by the API.
type ModelInfo struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	ContextLength   int64   `json:"context_length"`
	PromptPrice     float64 `json:"prompt_price"`
	CompletionPrice float64 `json:"completion_price"`
	Free            bool    `json:"free"`
}

type modelsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		ContextLength int64  `json:"context_length"`
		Pricing       *struct {
			Prompt     price `json:"prompt"`
			Completion price `json:"completion"`
		} `json:"pricing"`
	} `json:"data"`
}

// Models lists the models available to the configured key.
func (c *Client) Models(ctx context.Context) ([]ModelInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, modelsSuffix, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: list models: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if isFailureStatusCode(resp) {
		return nil, handleErrorResp(resp)
	}

	var body modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("openrouter: decode models: %w", err)
	}

	models := make([]ModelInfo, 0, len(body.Data))
	for _, m := range body.Data {
		info := ModelInfo{
			ID:            m.ID,
			Name:          m.Name,
			Description:   m.Description,
			ContextLength: m.ContextLength,
		}
		if info.Name == "" {
			info.Name = m.ID
		}
		if m.Pricing != nil {
			info.PromptPrice = float64(m.Pricing.Prompt)
			info.CompletionPrice = float64(m.Pricing.Completion)
		}
		info.Free = strings.HasSuffix(m.ID, ":free") ||
			m.Pricing == nil ||
			(info.PromptPrice == 0 && info.CompletionPrice == 0)
		models = append(models, info)
	}
	return models, nil
}

// price is a per-token price. The API sends decimal strings ("0.0000015"),
// some compatible APIs send plain numbers.
type price float64

func (p *price) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// unknown pricing is treated as not free.
		*p = -1
		return nil //nolint:nilerr
	}
	*p = price(f)
	return nil
}
