package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go-emtrack/types"
)

const fetchTimeout = 10 * time.Second

var httpClient = &http.Client{Timeout: fetchTimeout}

// Fetch loads and parses a catalog from an http(s) URL or a file path. Any
// failure comes back as a *types.ImportError.
func Fetch(ctx context.Context, src string) (types.Catalog, error) {
	body, err := open(ctx, src)
	if err != nil {
		return types.Catalog{}, &types.ImportError{Source: src, Err: err}
	}
	defer body.Close()

	cat, err := Parse(body)
	if err != nil {
		return types.Catalog{}, &types.ImportError{Source: src, Err: err}
	}
	return cat, nil
}

func open(ctx context.Context, src string) (io.ReadCloser, error) {
	if src == "" {
		return nil, errors.New("no catalog source configured")
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.Open(src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.New("catalog source returned status: " + resp.Status)
	}
	return resp.Body, nil
}
