package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/AngelCh415/campaign-dash/internal/config"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteError carries the message returned by the sheet endpoint.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sheet store: %s (status %d)", e.Message, e.Status)
	}
	return "sheet store: " + e.Message
}

// RemoteSheets talks to a spreadsheet web endpoint:
//
//	GET  <url>?action=read&sheet=<name>          -> {"values": [[...], ...]}
//	POST <url> {"action":"replace","sheet":..,"values":..} -> {"ok": true}
//
// Failures come back as {"error": "..."}, sometimes with status 200.
type RemoteSheets struct {
	c   HTTPDoer
	url string
}

// NewRemoteSheets rejects an unset or placeholder endpoint up front.
func NewRemoteSheets(c HTTPDoer, endpoint string) (*RemoteSheets, error) {
	if err := config.Require(config.Setting{Name: "STORE_URL", Value: endpoint}); err != nil {
		return nil, err
	}
	if c == nil {
		c = http.DefaultClient
	}
	return &RemoteSheets{c: c, url: endpoint}, nil
}

type remoteResponse struct {
	Values [][]any `json:"values"`
	OK     bool    `json:"ok"`
	Error  any     `json:"error"`
}

func (r *RemoteSheets) Read(ctx context.Context, sheet string) ([][]any, error) {
	u, err := url.Parse(r.url)
	if err != nil {
		return nil, fmt.Errorf("sheet store url: %w", err)
	}
	q := u.Query()
	q.Set("action", "read")
	q.Set("sheet", sheet)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	var out remoteResponse
	if err := r.do(req, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (r *RemoteSheets) Replace(ctx context.Context, sheet string, grid [][]any) error {
	body, err := json.Marshal(map[string]any{"action": "replace", "sheet": sheet, "values": grid})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	var out remoteResponse
	return r.do(req, &out)
}

func (r *RemoteSheets) Close() error { return nil }

func (r *RemoteSheets) do(req *http.Request, out *remoteResponse) error {
	resp, err := r.c.Do(req)
	if err != nil {
		return fmt.Errorf("sheet store: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("sheet store: read body: %w", err)
	}
	decodeErr := json.Unmarshal(b, out)
	if decodeErr == nil && out.Error != nil {
		return &RemoteError{Status: statusIfFailed(resp.StatusCode), Message: errorMessage(out.Error)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(truncate(b, 1024)))}
	}
	if decodeErr != nil {
		return fmt.Errorf("sheet store: decode response: %w", decodeErr)
	}
	return nil
}

// errorMessage accepts both {"error":"msg"} and {"error":{"message":"msg"}}.
func errorMessage(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		if m, ok := e["message"].(string); ok {
			return m
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func statusIfFailed(code int) int {
	if code >= 200 && code < 300 {
		return 0
	}
	return code
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
