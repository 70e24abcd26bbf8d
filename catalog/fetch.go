package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrFetchFailed wraps remote listing failures: unreachable endpoint,
// non-2xx status, or a malformed body.
var ErrFetchFailed = errors.New("catalog fetch failed")

// Fetcher retrieves the remote model listing.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Descriptor, error)
}

// HTTPFetcher fetches the listing from an OpenAI-style models endpoint:
// GET <url> with an optional bearer credential, response body
// {"data": [{"id": ..., "name": ...}, ...]}.
type HTTPFetcher struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the given endpoint. apiKey may be
// empty for unauthenticated endpoints.
func NewHTTPFetcher(url, apiKey string) *HTTPFetcher {
	return &HTTPFetcher{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrFetchFailed, resp.StatusCode, f.url)
	}

	var body struct {
		Data []Descriptor `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding body: %v", ErrFetchFailed, err)
	}

	entries := make([]Descriptor, 0, len(body.Data))
	for _, d := range body.Data {
		if d.ID == "" {
			continue
		}
		if d.DisplayName == "" {
			d.DisplayName = d.ID
		}
		entries = append(entries, d)
	}

	return entries, nil
}
