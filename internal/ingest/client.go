package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

// getJSON decodes the response body into v regardless of status and returns
// the status together with the raw body, so callers can inspect an error
// object before deciding how a non-2xx should read.
func getJSON(ctx context.Context, c HTTPClient, url string, v any) (int, []byte, error) {
	if url == "" {
		return 0, nil, errors.New("empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return resp.StatusCode, b, fmt.Errorf("decode: %w", err)
	}
	return resp.StatusCode, b, nil
}
