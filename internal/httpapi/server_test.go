package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/ingestarr/internal/config"
	"github.com/JustinTDCT/ingestarr/internal/events"
	"github.com/JustinTDCT/ingestarr/internal/ingest"
	"github.com/JustinTDCT/ingestarr/internal/store"
)

func newTestServer(t *testing.T, trigger ScanTrigger) (*Server, *httptest.Server) {
	t.Helper()
	cfg, err := config.New(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	records, err := store.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { records.Close() })

	bus := events.New()
	s := New(cfg, records, bus, trigger)
	return s, httptest.NewServer(s.Router())
}

func TestGetConfig_ReturnsCurrentDocument(t *testing.T) {
	s, srv := newTestServer(t, func() error { return nil })
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data config.Document `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, s.cfg.Get().SourcePath, body.Data.SourcePath)
}

func TestPatchConfig_MergesAndEmitsEvent(t *testing.T) {
	s, srv := newTestServer(t, func() error { return nil })
	defer srv.Close()

	ch, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	payload := []byte(`{"require_arr": true}`)
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/config", bytes.NewReader(payload))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, s.cfg.Get().RequireArr)

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindConfigUpdated, ev.Kind)
	default:
		t.Fatal("expected config_updated event to be emitted")
	}
}

func TestPostScan_ReturnsConflictWhenAlreadyRunning(t *testing.T) {
	s, srv := newTestServer(t, func() error { return ingest.ErrScanInProgress })
	defer srv.Close()
	_ = s

	resp, err := http.Post(srv.URL+"/api/v1/scan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetStats_ReturnsAggregateCounts(t *testing.T) {
	_, srv := newTestServer(t, func() error { return nil })
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
