// Package livestream implements the live event stream (C9): one
// newline-delimited JSON connection per subscriber, forwarding events from
// the bus with a heartbeat when the bus falls quiet.
package livestream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/JustinTDCT/ingestarr/internal/events"
	"github.com/JustinTDCT/ingestarr/internal/logging"
)

const heartbeatInterval = 30 * time.Second

type heartbeat struct {
	Kind string `json:"kind"`
}

// Handler returns an http.HandlerFunc that streams NDJSON frames for the
// lifetime of the request: one JSON object per line, newline-terminated,
// flushed immediately. Client disconnect (request context cancellation)
// unsubscribes and releases the subscription channel.
func Handler(bus *events.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.For("livestream")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		enc := json.NewEncoder(w)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := enc.Encode(ev); err != nil {
					logger.Debug().Err(err).Msg("subscriber write failed, closing stream")
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if err := enc.Encode(heartbeat{Kind: "heartbeat"}); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
