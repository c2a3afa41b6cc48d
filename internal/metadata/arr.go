package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ArrClient probes a Radarr- or Sonarr-style companion service. It never
// blocks a match; the ingestion engine only uses its reachability probe
// for the require_arr startup gate and does not annotate records.
type ArrClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewArrClient builds a client for one arr-style endpoint. baseURL and
// apiKey empty means the target is not configured.
func NewArrClient(baseURL, apiKey string) *ArrClient {
	return &ArrClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether both URL and API key are present.
func (a *ArrClient) Configured() bool {
	return a != nil && a.baseURL != "" && a.apiKey != ""
}

// TestConnection performs a lightweight reachability probe used by the
// require_arr startup gate.
func (a *ArrClient) TestConnection(ctx context.Context) bool {
	if !a.Configured() {
		return false
	}
	req, err := a.newRequest(ctx, "/api/v3/system/status", nil)
	if err != nil {
		return false
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// TrackedByTMDBID reports whether Radarr already tracks the given catalog
// id. The ingestion engine does not call it.
func (a *ArrClient) TrackedByTMDBID(ctx context.Context, tmdbID string) bool {
	if !a.Configured() {
		return false
	}
	id, err := strconv.Atoi(tmdbID)
	if err != nil {
		return false
	}
	req, err := a.newRequest(ctx, "/api/v3/movie/lookup/tmdb", url.Values{"tmdbId": {strconv.Itoa(id)}})
	if err != nil {
		return false
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (a *ArrClient) newRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	if params == nil {
		params = url.Values{}
	}
	full := fmt.Sprintf("%s%s?%s", a.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", a.apiKey)
	return req, nil
}
