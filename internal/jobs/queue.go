// Package jobs wraps a Redis-backed asynq queue used to dispatch and
// deduplicate scan-trigger and single-record-reprocess tasks.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/JustinTDCT/ingestarr/internal/logging"
)

const (
	TaskRunScan     = "scan:run"
	TaskProcessFile = "scan:process_file"
)

const (
	queueCritical = "critical"
	queueDefault  = "default"
	queueLow      = "low"
)

// Queue wraps the asynq client, server, mux and inspector needed to
// enqueue deduplicated tasks and run their handlers.
type Queue struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	inspector *asynq.Inspector
}

// New connects to Redis at addr and configures the worker concurrency and
// queue priorities.
func New(redisAddr string) *Queue {
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	return &Queue{
		client: asynq.NewClient(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueCritical: 6,
				queueDefault:  3,
				queueLow:      1,
			},
		}),
		mux:       asynq.NewServeMux(),
		inspector: asynq.NewInspector(opt),
	}
}

// RegisterHandler wires a task type to its handler function.
func (q *Queue) RegisterHandler(taskType string, handler func(context.Context, *asynq.Task) error) {
	q.mux.HandleFunc(taskType, handler)
}

// Enqueue submits a task without deduplication.
func (q *Queue) Enqueue(taskType string, payload any, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}
	_, err = q.client.Enqueue(asynq.NewTask(taskType, data), opts...)
	return err
}

// EnqueueUnique submits a task with a deterministic id so a duplicate
// trigger (e.g. two operator requests while a scan is already queued) is
// collapsed instead of stacking. main.go keys scan tasks on a single global
// scan id since this pipeline has no per-library concept.
func (q *Queue) EnqueueUnique(taskType string, payload any, uniqueID string, opts ...asynq.Option) error {
	logger := logging.For("jobs")

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	allOpts := append([]asynq.Option{asynq.TaskID(uniqueID)}, opts...)
	_, err = q.client.Enqueue(asynq.NewTask(taskType, data), allOpts...)
	if err == nil {
		return nil
	}

	if !isTaskConflict(err) {
		return fmt.Errorf("enqueue task %s: %w", taskType, err)
	}

	// A stale completed/archived task can hold the id indefinitely; clear
	// it from every queue and retry once before giving up.
	for _, queue := range []string{queueCritical, queueDefault, queueLow} {
		_ = q.inspector.DeleteTask(queue, uniqueID)
	}

	if _, err := q.client.Enqueue(asynq.NewTask(taskType, data), allOpts...); err != nil {
		if isTaskConflict(err) {
			logger.Debug().Str("task_id", uniqueID).Msg("task already active, skipping duplicate enqueue")
			return nil
		}
		return fmt.Errorf("retry enqueue task %s: %w", taskType, err)
	}
	return nil
}

func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists") || strings.Contains(msg, "conflict")
}

// Start launches the task server in the background.
func (q *Queue) Start(ctx context.Context) error {
	return q.server.Start(q.mux)
}

// Stop gracefully shuts down the server, client and inspector.
func (q *Queue) Stop() {
	q.server.Shutdown()
	q.client.Close()
	q.inspector.Close()
}

// Client exposes the underlying asynq client for advanced callers.
func (q *Queue) Client() *asynq.Client {
	return q.client
}
