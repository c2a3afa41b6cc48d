// Package ingest implements the ingestion engine (C7): it walks the
// configured source roots, diffs discovered files against the record
// store, drives bounded-parallel processing of pending records through
// the metadata matcher and linker, and publishes progress events.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/JustinTDCT/ingestarr/internal/config"
	"github.com/JustinTDCT/ingestarr/internal/events"
	"github.com/JustinTDCT/ingestarr/internal/linker"
	"github.com/JustinTDCT/ingestarr/internal/logging"
	"github.com/JustinTDCT/ingestarr/internal/mediaparse"
	"github.com/JustinTDCT/ingestarr/internal/metadata"
	"github.com/JustinTDCT/ingestarr/internal/store"
)

const (
	workerCount        = 15
	chunkSize          = 100
	progressEveryFiles = 50
)

// ErrScanInProgress is returned by Scan when another scan is already
// running — the process-wide at-most-one-scan guard.
var ErrScanInProgress = errors.New("ingest: a scan is already in progress")

// ErrArrRequired is returned when require_arr is set and either companion
// service (radarr or sonarr) is unconfigured or unreachable.
var ErrArrRequired = errors.New("ingest: require_arr is set but radarr/sonarr are unreachable")

// MetadataFactory builds a metadata client for the current configuration,
// since the catalog base URL/key/language can change between scans.
type MetadataFactory func(cfg config.Document) *metadata.Client

// Engine owns one end-to-end scan: discovery, per-file processing, and the
// orphan sweep.
type Engine struct {
	cfg      *config.Store
	records  *store.Store
	bus      *events.Bus
	newMeta  MetadataFactory
	scanning atomic.Bool
}

// New builds an Engine from its collaborators.
func New(cfg *config.Store, records *store.Store, bus *events.Bus, newMeta MetadataFactory) *Engine {
	return &Engine{cfg: cfg, records: records, bus: bus, newMeta: newMeta}
}

// Summary is the final scan_completed payload.
type Summary struct {
	Scanned   int `json:"scanned"`
	New       int `json:"new"`
	Processed int `json:"processed"`
	Linked    int `json:"linked"`
	Failed    int `json:"failed"`
	Manual    int `json:"manual"`
	Deleted   int `json:"deleted"`
}

// Scan runs one full scan: discovery, chunked bounded-parallel processing,
// an orphan sweep, and final stats emission. Only one scan may run at a
// time across the process.
func (e *Engine) Scan(ctx context.Context) (Summary, error) {
	if !e.scanning.CompareAndSwap(false, true) {
		return Summary{}, ErrScanInProgress
	}
	defer e.scanning.Store(false)

	logger := logging.For("ingest")
	cfg := e.cfg.Get()

	if cfg.RequireArr {
		radarr := metadata.NewArrClient(cfg.RadarrURL, cfg.RadarrAPIKey)
		sonarr := metadata.NewArrClient(cfg.SonarrURL, cfg.SonarrAPIKey)
		if !radarr.TestConnection(ctx) || !sonarr.TestConnection(ctx) {
			return Summary{}, ErrArrRequired
		}
	}

	files, err := discover(cfg)
	if err != nil {
		return Summary{}, fmt.Errorf("discover: %w", err)
	}

	summary := Summary{Scanned: len(files)}
	var mu sync.Mutex
	var processedCounter int64

	e.bus.Emit(events.Event{Kind: events.KindScanStarted, Data: map[string]any{"total": len(files)}})
	e.bus.Emit(events.Event{Kind: events.KindScanProgress, Data: progressPayload(0, len(files), "")})

	meta := e.newMeta(cfg)

	for start := 0; start < len(files); start += chunkSize {
		end := start + chunkSize
		if end > len(files) {
			end = len(files)
		}
		chunk := files[start:end]

		e.processChunk(ctx, chunk, cfg, meta, &summary, &mu, &processedCounter)

		if stats, err := e.records.Stats(ctx); err == nil {
			e.bus.Emit(events.Event{Kind: events.KindStatsUpdated, Data: stats})
		} else {
			logger.Warn().Err(err).Msg("failed to compute stats after chunk")
		}

		if ctx.Err() != nil {
			logger.Info().Msg("scan cancelled, aborting between chunks")
			e.bus.Emit(events.Event{Kind: events.KindScanCompleted, Data: summary})
			return summary, ctx.Err()
		}
	}

	deleted, err := e.orphanSweep(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("orphan sweep failed")
	}
	summary.Deleted = deleted

	if stats, err := e.records.Stats(ctx); err == nil {
		e.bus.Emit(events.Event{Kind: events.KindStatsUpdated, Data: stats})
	}
	e.bus.Emit(events.Event{Kind: events.KindScanCompleted, Data: summary})

	return summary, nil
}

// processChunk runs up to workerCount files of one chunk concurrently,
// gated by a counting semaphore, and waits for the whole chunk to finish
// before the caller emits a stats_updated snapshot — chunks are the unit a
// cancelled scan is allowed to finish before stopping.
func (e *Engine) processChunk(
	ctx context.Context,
	chunk []discoveredFile,
	cfg config.Document,
	meta *metadata.Client,
	summary *Summary,
	mu *sync.Mutex,
	processedCounter *int64,
) {
	sem := make(chan struct{}, workerCount)
	var wg sync.WaitGroup

	for _, df := range chunk {
		df := df
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := e.processOne(ctx, df, cfg, meta)

			mu.Lock()
			if outcome.isNew {
				summary.New++
			}
			if outcome.processed {
				summary.Processed++
				switch outcome.finalStatus {
				case store.StatusLinked:
					summary.Linked++
				case store.StatusFailed:
					summary.Failed++
				case store.StatusManual:
					summary.Manual++
				}
			}
			mu.Unlock()

			n := atomic.AddInt64(processedCounter, 1)
			if n%progressEveryFiles == 0 {
				e.bus.Emit(events.Event{Kind: events.KindScanProgress, Data: progressPayload(int(n), summary.Scanned, df.path)})
			}
		}()
	}
	wg.Wait()
}

type fileOutcome struct {
	isNew       bool
	processed   bool
	finalStatus store.Status
}

// processOne is one worker's body for a single discovered file: find or
// create the pending record, then run match/link unless the record was
// already past pending.
func (e *Engine) processOne(ctx context.Context, df discoveredFile, cfg config.Document, meta *metadata.Client) fileOutcome {
	logger := logging.For("ingest")

	tx, err := e.records.BeginRecordTx(ctx)
	if err != nil {
		logger.Error().Err(err).Str("path", df.path).Msg("failed to begin transaction")
		return fileOutcome{}
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	existing, err := e.records.FindBySourcePath(ctx, tx, df.path)
	isNew := false
	var rec *store.MediaRecord

	switch {
	case errors.Is(err, store.ErrNotFound):
		parsed := mediaparse.Parse(df.path)
		kind := mediaKind(parsed.Kind)
		if df.hasForced {
			kind = mediaKind(df.forcedKind)
		}
		rec = &store.MediaRecord{
			SourcePath:     df.path,
			SourceFilename: filepath.Base(df.path),
			FileSize:       df.size,
			ParsedTitle:    nilIfEmpty(parsed.Title),
			ParsedYear:     parsed.Year,
			ParsedSeason:   parsed.Season,
			ParsedEpisode:  parsed.Episode,
			MediaKind:      kind,
			Status:         store.StatusPending,
		}
		if err := e.records.Insert(ctx, tx, rec); err != nil {
			logger.Error().Err(err).Str("path", df.path).Msg("failed to insert pending record")
			return fileOutcome{}
		}
		isNew = true
		e.bus.Emit(events.Event{Kind: events.KindFileAdded, Data: recordPayload(rec)})
	case err != nil:
		logger.Error().Err(err).Str("path", df.path).Msg("failed to look up record")
		return fileOutcome{}
	default:
		rec = existing
		if rec.Status != store.StatusPending {
			tx.Commit()
			committed = true
			return fileOutcome{isNew: false}
		}
	}

	e.runWorkerBody(ctx, tx, rec, cfg, meta)

	if err := tx.Commit(); err != nil {
		logger.Error().Err(err).Str("path", df.path).Msg("failed to commit record transaction")
		return fileOutcome{isNew: isNew}
	}
	committed = true

	e.bus.Emit(events.Event{Kind: events.KindFileUpdated, Data: recordPayload(rec)})
	return fileOutcome{isNew: isNew, processed: true, finalStatus: rec.Status}
}

// runWorkerBody executes match -> link for rec and updates it in place.
// Any unexpected error is caught here and turned into a failed record
// rather than propagating past the worker boundary.
func (e *Engine) runWorkerBody(ctx context.Context, tx *sql.Tx, rec *store.MediaRecord, cfg config.Document, meta *metadata.Client) {
	defer func() {
		if r := recover(); r != nil {
			rec.Status = store.StatusFailed
			msg := fmt.Sprintf("panic: %v", r)
			rec.ErrorMessage = &msg
			_ = e.records.Update(ctx, tx, rec)
		}
	}()

	if rec.ParsedTitle == nil || *rec.ParsedTitle == "" {
		e.markManual(ctx, tx, rec, cfg, "no parsed title", mediaparse.Kind(rec.MediaKind))
		return
	}

	kind := mediaparse.Kind(rec.MediaKind)
	match, ok := meta.Match(ctx, *rec.ParsedTitle, rec.ParsedYear, kind)
	if !ok {
		e.markManual(ctx, tx, rec, cfg, "no catalog match", kind)
		return
	}

	rec.CatalogID = &match.ID
	rec.CatalogTitle = &match.Title
	rec.CatalogYear = match.Year
	if match.PosterPath != "" {
		rec.CatalogPosterURL = &match.PosterPath
	}
	rec.Status = store.StatusMatched

	if rec.MediaKind == store.KindTV && (rec.ParsedSeason == nil || rec.ParsedEpisode == nil) {
		e.markManual(ctx, tx, rec, cfg, "season or episode missing", kind)
		return
	}

	dest, err := e.linkCanonical(rec, cfg)
	if err != nil {
		rec.Status = store.StatusFailed
		msg := err.Error()
		rec.ErrorMessage = &msg
		_ = e.records.Update(ctx, tx, rec)
		return
	}

	rec.DestinationPath = &dest
	rec.Status = store.StatusLinked
	rec.ErrorMessage = nil
	_ = e.records.Update(ctx, tx, rec)
}

func (e *Engine) linkCanonical(rec *store.MediaRecord, cfg config.Document) (string, error) {
	ext := filepath.Ext(rec.SourceFilename)
	var dest string
	switch rec.MediaKind {
	case store.KindMovie:
		dest = linker.MovieDestination(cfg.MoviesPath, *rec.CatalogTitle, rec.CatalogYear, ext)
	case store.KindTV:
		dest = linker.TVEpisodeDestination(cfg.TVPath, *rec.CatalogTitle, rec.CatalogYear, *rec.ParsedSeason, *rec.ParsedEpisode, ext)
	default:
		return "", fmt.Errorf("cannot link unknown media kind")
	}

	if _, err := linker.Materialize(rec.SourcePath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// markManual sets the record to manual status with a descriptive message
// and attempts a best-effort holding link under _Manual/<kind>/.
func (e *Engine) markManual(ctx context.Context, tx *sql.Tx, rec *store.MediaRecord, cfg config.Document, reason string, kind mediaparse.Kind) {
	rec.Status = store.StatusManual
	rec.ErrorMessage = &reason

	root := cfg.MoviesPath
	if rec.MediaKind == store.KindTV {
		root = cfg.TVPath
	}
	holding := linker.ManualHoldingDestination(root, string(kind), rec.SourceFilename)
	if _, err := linker.Materialize(rec.SourcePath, holding); err == nil {
		rec.DestinationPath = &holding
	}

	_ = e.records.Update(ctx, tx, rec)
}

// orphanSweep removes every record whose source path no longer exists on
// disk, unlinking its destination and pruning empty ancestors first. The
// sweep is global regardless of scan scope, per the spec's preserved
// behavior for partial scans.
func (e *Engine) orphanSweep(ctx context.Context, cfg config.Document) (int, error) {
	paths, err := e.records.AllSourcePaths(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for path, id := range paths {
		if pathExists(path) {
			continue
		}

		rec, err := e.records.FindByID(ctx, id)
		if err != nil {
			continue
		}

		root := cfg.MoviesPath
		if rec.MediaKind == store.KindTV {
			root = cfg.TVPath
		}
		if rec.DestinationPath != nil {
			_ = linker.Remove(*rec.DestinationPath, root)
		}

		if err := e.records.Delete(ctx, nil, id); err != nil {
			continue
		}
		deleted++
		e.bus.Emit(events.Event{Kind: events.KindFileDeleted, Data: map[string]any{"id": id, "source_path": path}})
	}
	return deleted, nil
}

func mediaKind(k mediaparse.Kind) store.MediaKind {
	switch k {
	case mediaparse.KindMovie:
		return store.KindMovie
	case mediaparse.KindTV:
		return store.KindTV
	default:
		return store.KindUnknown
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func progressPayload(current, total int, filename string) map[string]any {
	return map[string]any{"current": current, "total": total, "filename": filename}
}

func recordPayload(r *store.MediaRecord) *store.MediaRecord {
	return r
}
