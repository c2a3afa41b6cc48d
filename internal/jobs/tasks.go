package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

// ScanPayload is the (currently empty) payload for TaskRunScan — the
// pipeline has a single global scan, not one per library.
type ScanPayload struct{}

// ProcessFilePayload identifies a single record to reprocess.
type ProcessFilePayload struct {
	RecordID int64 `json:"record_id"`
}

// RegisterScanHandler wires TaskRunScan to runScan.
func (q *Queue) RegisterScanHandler(runScan func(ctx context.Context) error) {
	q.RegisterHandler(TaskRunScan, func(ctx context.Context, t *asynq.Task) error {
		return runScan(ctx)
	})
}

// RegisterProcessFileHandler wires TaskProcessFile to processFile.
func (q *Queue) RegisterProcessFileHandler(processFile func(ctx context.Context, recordID int64) error) {
	q.RegisterHandler(TaskProcessFile, func(ctx context.Context, t *asynq.Task) error {
		var payload ProcessFilePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}
		return processFile(ctx, payload.RecordID)
	})
}
