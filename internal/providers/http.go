package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// httpClient is the shared plumbing for JSON-over-HTTP provider adapters.
// Each adapter owns its own instance so timeouts and credentials stay
// per-provider.
type httpClient struct {
	baseURL string
	name    string
	creds   CredentialStore
	client  *http.Client
}

func newHTTPClient(name, baseURL string, creds CredentialStore, timeout time.Duration) httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpClient{
		baseURL: baseURL,
		name:    name,
		creds:   creds,
		client:  &http.Client{Timeout: timeout},
	}
}

// getJSON performs a GET against path with the given query parameters and
// decodes the response body into out. The provider's API key, if configured,
// is sent as a bearer token.
func (c *httpClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		if key, err := c.creds.Secret(c.name); err == nil && key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", c.name, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", c.name, err)
	}
	return nil
}

func coordParams(lat, lng float64) url.Values {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lng", fmt.Sprintf("%f", lng))
	return params
}
