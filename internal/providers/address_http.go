package providers

import (
	"context"
	"net/url"
	"time"
)

// HTTPAddressResolver is the JSON-over-HTTP adapter for the authoritative
// address resolution service.
type HTTPAddressResolver struct {
	httpClient
}

// NewHTTPAddressResolver creates an adapter against the given base URL.
func NewHTTPAddressResolver(baseURL string, creds CredentialStore, timeout time.Duration) *HTTPAddressResolver {
	return &HTTPAddressResolver{httpClient: newHTTPClient("address", baseURL, creds, timeout)}
}

func (r *HTTPAddressResolver) Resolve(ctx context.Context, query string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "5")

	var out struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := r.getJSON(ctx, "/v1/resolve", params, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		return nil, ErrNoCandidates
	}
	return out.Candidates, nil
}

func (r *HTTPAddressResolver) ResolveCoordinates(ctx context.Context, lat, lng float64) ([]Candidate, error) {
	var out struct {
		Candidates []Candidate `json:"candidates"`
	}
	if err := r.getJSON(ctx, "/v1/reverse", coordParams(lat, lng), &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		return nil, ErrNoCandidates
	}
	return out.Candidates, nil
}

func (r *HTTPAddressResolver) Autocomplete(ctx context.Context, partial string) ([]string, error) {
	params := url.Values{}
	params.Set("q", partial)
	params.Set("limit", "10")

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := r.getJSON(ctx, "/v1/autocomplete", params, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}
