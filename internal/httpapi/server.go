// Package httpapi exposes the minimal operator surface (A2): reading and
// patching the config document, triggering a scan, listing records and
// stats, and the live NDJSON event stream.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/JustinTDCT/ingestarr/internal/config"
	"github.com/JustinTDCT/ingestarr/internal/events"
	"github.com/JustinTDCT/ingestarr/internal/httputil"
	"github.com/JustinTDCT/ingestarr/internal/ingest"
	"github.com/JustinTDCT/ingestarr/internal/livestream"
	"github.com/JustinTDCT/ingestarr/internal/logging"
	"github.com/JustinTDCT/ingestarr/internal/store"
)

// ScanTrigger dispatches a scan without blocking the request — wired by
// main.go to the job queue's EnqueueUnique, or directly to Engine.Scan
// when no queue is configured.
type ScanTrigger func() error

// Server wires the config store, record store, event bus and scan
// trigger into a chi router.
type Server struct {
	cfg     *config.Store
	records *store.Store
	bus     *events.Bus
	trigger ScanTrigger
}

// New builds the router's dependencies.
func New(cfg *config.Store, records *store.Store, bus *events.Bus, trigger ScanTrigger) *Server {
	return &Server{cfg: cfg, records: records, bus: bus, trigger: trigger}
}

// Router assembles the chi router: rate-limited writes, request logging,
// and one handler per operator-facing route.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(logging.RequestID())
	r.Use(logging.Middleware())

	r.Get("/api/v1/config", s.getConfig)
	r.With(httprate.LimitByIP(5, time.Minute)).Patch("/api/v1/config", s.patchConfig)
	r.With(httprate.LimitByIP(5, time.Minute)).Post("/api/v1/scan", s.postScan)
	r.Get("/api/v1/records", s.getRecords)
	r.Get("/api/v1/stats", s.getStats)
	r.Get("/api/v1/stream", livestream.Handler(s.bus))
	r.Get("/health", s.getHealth)

	return r
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.cfg.Get())
}

func (s *Server) patchConfig(w http.ResponseWriter, r *http.Request) {
	var p config.Partial
	if err := httputil.ReadJSON(r, &p); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	doc, err := s.cfg.Update(p)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "PERSIST_FAILED", err.Error())
		return
	}
	s.bus.Emit(events.Event{Kind: events.KindConfigUpdated, Data: doc})
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	if err := s.trigger(); err != nil {
		if err == ingest.ErrScanInProgress {
			httputil.WriteError(w, http.StatusConflict, "SCAN_IN_PROGRESS", err.Error())
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "SCAN_DISPATCH_FAILED", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "scan_dispatched"})
}

func (s *Server) getRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	p := store.QueryParams{
		TitleContains: q.Get("title"),
		Limit:         parseIntOr(q.Get("limit"), 100),
		Offset:        parseIntOr(q.Get("offset"), 0),
	}
	if raw := q.Get("status"); raw != "" {
		status := store.Status(raw)
		p.Status = &status
	}
	if raw := q.Get("kind"); raw != "" {
		kind := store.MediaKind(raw)
		p.Kind = &kind
	}

	var (
		records []*store.MediaRecord
		err     error
	)
	if q.Get("group") == "media" {
		records, err = s.records.GroupByMedia(r.Context(), p)
	} else {
		records, err = s.records.Query(r.Context(), p)
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.records.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
