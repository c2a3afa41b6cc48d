package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/ingestarr/internal/mediaparse"
)

func TestBuildAttempts_OrdersYearFirstThenBare(t *testing.T) {
	year := 1999
	attempts := BuildAttempts("The Matrix", &year)
	require.Len(t, attempts, 2)
	assert.Equal(t, "The Matrix", attempts[0].query)
	assert.Equal(t, &year, attempts[0].year)
	assert.Nil(t, attempts[1].year)
}

func TestBuildAttempts_AddsCleanedVariantForShortTitle(t *testing.T) {
	attempts := BuildAttempts("V/H/S", nil)
	require.Len(t, attempts, 2)
	assert.NotEqual(t, attempts[0].query, attempts[1].query)
}

func TestMatch_PrefersExactYearOverMostPopular(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": 1, "title": "Dune", "release_date": "2021-01-01", "popularity": 99.0},
				{"id": 2, "title": "Dune", "release_date": "1984-01-01", "popularity": 10.0},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "en-US", nil)
	year := 1984
	match, ok := c.Match(context.Background(), "Dune", &year, mediaparse.KindMovie)
	require.True(t, ok)
	assert.Equal(t, "2", match.ID)
}

func TestMatch_NoResultsFromAnyAttemptReturnsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "en-US", nil)
	_, ok := c.Match(context.Background(), "Nonexistent Title", nil, mediaparse.KindMovie)
	assert.False(t, ok)
}

func TestSearchMovie_NonTwoHundredTreatedAsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "en-US", nil)
	got := c.SearchMovie(context.Background(), "anything", nil)
	assert.Empty(t, got)
}
