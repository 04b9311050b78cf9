// Package mpris bridges the MPRIS D-Bus media player interface to
// cadenced's RPC surface. It is a thin client over HTTP/JSON, same as
// cmd/cadencectl -- the bridge carries no invariants of its own; each
// method call here is translated into RPC requests (one for most methods,
// a state_audio read plus one command for PlayPause and Seek).
package mpris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a minimal RPC client the bridge issues requests through.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 5 * time.Second}}
}

// call POSTs body (marshaled to JSON) to /rpc/<family>/<verb> and decodes
// the response into out, if out is non-nil.
func (c *Client) call(ctx context.Context, family, verb string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("mpris: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader([]byte("{}"))
	}

	url := fmt.Sprintf("%s/rpc/%s/%s", c.baseURL, family, verb)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("mpris: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mpris: %s.%s: %w", family, verb, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mpris: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mpris: %s.%s: daemon returned %s: %s", family, verb, resp.Status, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("mpris: decode response: %w", err)
	}
	return nil
}
