package livestream

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/ingestarr/internal/events"
)

func TestHandler_ForwardsEmittedEventAsNDJSONLine(t *testing.T) {
	bus := events.New()
	srv := httptest.NewServer(Handler(bus))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// give the handler a moment to subscribe before we emit.
	for i := 0; i < 50 && bus.SubscriberCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Emit(events.Event{Kind: events.KindScanStarted, Data: map[string]any{"total": 3}})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)

	var got events.Event
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, events.KindScanStarted, got.Kind)
}

func TestHandler_UnsubscribesOnClientDisconnect(t *testing.T) {
	bus := events.New()
	srv := httptest.NewServer(Handler(bus))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	for i := 0; i < 50 && bus.SubscriberCount() == 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, bus.SubscriberCount())

	resp.Body.Close()
	cancel()

	for i := 0; i < 50 && bus.SubscriberCount() != 0; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, bus.SubscriberCount())
}
