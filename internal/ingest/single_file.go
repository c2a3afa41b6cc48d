package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JustinTDCT/ingestarr/internal/events"
	"github.com/JustinTDCT/ingestarr/internal/mediaparse"
	"github.com/JustinTDCT/ingestarr/internal/store"
)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ProcessFile re-parses a single record, clears its catalog fields, resets
// it to pending, then runs the worker body synchronously.
func (e *Engine) ProcessFile(ctx context.Context, id int64) (*store.MediaRecord, error) {
	rec, err := e.records.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find record %d: %w", id, err)
	}

	parsed := mediaparse.Parse(rec.SourcePath)
	rec.ParsedTitle = nilIfEmpty(parsed.Title)
	rec.ParsedYear = parsed.Year
	rec.ParsedSeason = parsed.Season
	rec.ParsedEpisode = parsed.Episode
	rec.MediaKind = mediaKind(parsed.Kind)
	rec.CatalogID = nil
	rec.CatalogTitle = nil
	rec.CatalogYear = nil
	rec.CatalogPosterURL = nil
	rec.ErrorMessage = nil
	rec.Status = store.StatusPending

	cfg := e.cfg.Get()
	meta := e.newMeta(cfg)

	tx, err := e.records.BeginRecordTx(ctx)
	if err != nil {
		return nil, err
	}

	e.runWorkerBody(ctx, tx, rec, cfg, meta)

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return nil, err
	}

	e.bus.Emit(events.Event{Kind: events.KindFileUpdated, Data: rec})
	return rec, nil
}

// ReprocessAll iterates every record whose status is in statuses through
// ProcessFile, emitting reprocess lifecycle events around the batch.
func (e *Engine) ReprocessAll(ctx context.Context, statuses []store.Status) (Summary, error) {
	var summary Summary

	var ids []int64
	for _, status := range statuses {
		status := status
		recs, err := e.records.Query(ctx, store.QueryParams{Status: &status, Limit: 1 << 30})
		if err != nil {
			return summary, err
		}
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
	}

	summary.Scanned = len(ids)
	e.bus.Emit(events.Event{Kind: events.KindReprocessStarted, Data: map[string]any{"total": len(ids)}})

	for i, id := range ids {
		rec, err := e.ProcessFile(ctx, id)
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Processed++
		switch rec.Status {
		case store.StatusLinked:
			summary.Linked++
		case store.StatusFailed:
			summary.Failed++
		case store.StatusManual:
			summary.Manual++
		}

		if (i+1)%progressEveryFiles == 0 {
			e.bus.Emit(events.Event{Kind: events.KindReprocessProgress, Data: progressPayload(i+1, len(ids), filepath.Base(rec.SourcePath))})
		}
	}

	e.bus.Emit(events.Event{Kind: events.KindReprocessCompleted, Data: summary})
	return summary, nil
}
