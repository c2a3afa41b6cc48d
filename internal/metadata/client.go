// Package metadata implements the remote catalog client: rate-aware
// lookups against a TMDB-shaped search API, merged multi-search, and the
// progressive-fallback match algorithm the ingestion engine drives.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JustinTDCT/ingestarr/internal/logging"
)

// Candidate is one normalized search hit from the catalog.
type Candidate struct {
	ID         string
	Title      string
	Year       *int
	PosterPath string
	Popularity float64
}

const (
	perEndpointClamp = 10
	mergedClamp      = 15
	requestTimeout   = 12 * time.Second
)

// Client talks to a TMDB-shaped remote catalog: /search/movie,
// /search/tv, /movie/{id}, /tv/{id}.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	limiter  *rate.Limiter
}

// New builds a Client. limiter bounds outbound request rate; a nil limiter
// disables rate limiting (tests).
func New(baseURL, apiKey, language string, limiter *rate.Limiter) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		language: language,
		http:     &http.Client{Timeout: requestTimeout},
		limiter:  limiter,
	}
}

type searchResponse struct {
	Results []struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		Name          string  `json:"name"`
		ReleaseDate   string  `json:"release_date"`
		FirstAirDate  string  `json:"first_air_date"`
		PosterPath    string  `json:"poster_path"`
		Popularity    float64 `json:"popularity"`
	} `json:"results"`
}

// SearchMovie queries /search/movie. A non-200 response or network error is
// treated as an empty result, never an error, per the transient-remote
// policy.
func (c *Client) SearchMovie(ctx context.Context, query string, year *int) []Candidate {
	return c.search(ctx, "/search/movie", "query", query, "year", year)
}

// SearchTV queries /search/tv.
func (c *Client) SearchTV(ctx context.Context, query string, year *int) []Candidate {
	return c.search(ctx, "/search/tv", "query", query, "first_air_date_year", year)
}

func (c *Client) search(ctx context.Context, path, queryParam, query, yearParam string, year *int) []Candidate {
	logger := logging.For("metadata")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	params := url.Values{}
	params.Set(queryParam, query)
	params.Set("language", c.language)
	if year != nil {
		params.Set(yearParam, strconv.Itoa(*year))
	}

	req, err := c.newRequest(ctx, path, params)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build metadata request")
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("metadata request failed, treating as empty result")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Warn().Err(err).Msg("failed to decode metadata response")
		return nil
	}

	out := make([]Candidate, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		date := r.ReleaseDate
		if date == "" {
			date = r.FirstAirDate
		}
		cand := Candidate{
			ID:         strconv.Itoa(r.ID),
			Title:      title,
			PosterPath: r.PosterPath,
			Popularity: r.Popularity,
		}
		if len(date) >= 4 {
			if y, err := strconv.Atoi(date[:4]); err == nil {
				cand.Year = &y
			}
		}
		out = append(out, cand)
	}
	if len(out) > perEndpointClamp {
		out = out[:perEndpointClamp]
	}
	return out
}

// SearchMulti issues parallel movie and TV searches, merges and sorts the
// combined list by popularity descending, clamped to 15 results.
func (c *Client) SearchMulti(ctx context.Context, query string, year *int) []Candidate {
	var wg sync.WaitGroup
	var movies, tv []Candidate

	wg.Add(2)
	go func() {
		defer wg.Done()
		movies = c.SearchMovie(ctx, query, year)
	}()
	go func() {
		defer wg.Done()
		tv = c.SearchTV(ctx, query, year)
	}()
	wg.Wait()

	merged := append(append([]Candidate{}, movies...), tv...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Popularity > merged[j].Popularity
	})
	if len(merged) > mergedClamp {
		merged = merged[:mergedClamp]
	}
	return merged
}

func (c *Client) newRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	params.Set("api_key", c.apiKey)
	full := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	return http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
}

type detailResponse struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
	Popularity   float64 `json:"popularity"`
}

// GetMovie fetches /movie/{id}. A non-200 response or network error is
// treated as no result, never an error, per the transient-remote policy.
func (c *Client) GetMovie(ctx context.Context, id string) *Candidate {
	return c.getDetail(ctx, "/movie/"+id)
}

// GetTV fetches /tv/{id}.
func (c *Client) GetTV(ctx context.Context, id string) *Candidate {
	return c.getDetail(ctx, "/tv/"+id)
}

func (c *Client) getDetail(ctx context.Context, path string) *Candidate {
	logger := logging.For("metadata")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	params := url.Values{}
	params.Set("language", c.language)

	req, err := c.newRequest(ctx, path, params)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build metadata request")
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("metadata request failed, treating as empty result")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var parsed detailResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Warn().Err(err).Msg("failed to decode metadata response")
		return nil
	}

	title := parsed.Title
	if title == "" {
		title = parsed.Name
	}
	date := parsed.ReleaseDate
	if date == "" {
		date = parsed.FirstAirDate
	}
	cand := &Candidate{
		ID:         strconv.Itoa(parsed.ID),
		Title:      title,
		PosterPath: parsed.PosterPath,
		Popularity: parsed.Popularity,
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			cand.Year = &y
		}
	}
	return cand
}
