package jobs

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterScanHandler_InvokesRunScan(t *testing.T) {
	q := &Queue{mux: asynq.NewServeMux()}
	var calls int32
	q.RegisterScanHandler(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	task := asynq.NewTask(TaskRunScan, nil)
	require.NoError(t, q.mux.ProcessTask(context.Background(), task))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRegisterProcessFileHandler_DecodesRecordID(t *testing.T) {
	q := &Queue{mux: asynq.NewServeMux()}
	var got int64
	q.RegisterProcessFileHandler(func(ctx context.Context, recordID int64) error {
		got = recordID
		return nil
	})

	payload, err := json.Marshal(ProcessFilePayload{RecordID: 42})
	require.NoError(t, err)

	task := asynq.NewTask(TaskProcessFile, payload)
	require.NoError(t, q.mux.ProcessTask(context.Background(), task))
	assert.Equal(t, int64(42), got)
}
