package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// loadMsg resolves a message given inline, as a file:// path or as an
// http(s) URL.
func loadMsg(ctx context.Context, msg string) (string, error) {
	if strings.HasPrefix(msg, "https://") || strings.HasPrefix(msg, "http://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, msg, nil)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("could not load %s: %s", msg, resp.Status)
		}
		bts, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		return string(bts), nil
	}

	if strings.HasPrefix(msg, "file://") {
		bts, err := os.ReadFile(strings.TrimPrefix(msg, "file://"))
		if err != nil {
			return "", err //nolint:wrapcheck
		}
		return string(bts), nil
	}

	return msg, nil
}
