package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMovie_ParsesDetailResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/603", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 603, "title": "The Matrix", "release_date": "1999-03-31", "popularity": 42.0,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "en-US", nil)
	got := c.GetMovie(context.Background(), "603")
	require.NotNil(t, got)
	assert.Equal(t, "603", got.ID)
	assert.Equal(t, "The Matrix", got.Title)
	require.NotNil(t, got.Year)
	assert.Equal(t, 1999, *got.Year)
}

func TestGetTV_ParsesDetailResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1399", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 1399, "name": "Game of Thrones", "first_air_date": "2011-04-17", "popularity": 88.0,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "en-US", nil)
	got := c.GetTV(context.Background(), "1399")
	require.NotNil(t, got)
	assert.Equal(t, "Game of Thrones", got.Title)
}

func TestGetMovie_NonTwoHundredTreatedAsNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "en-US", nil)
	got := c.GetMovie(context.Background(), "999999")
	assert.Nil(t, got)
}
