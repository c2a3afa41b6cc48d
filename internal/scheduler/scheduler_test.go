package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/ingestarr/internal/config"
)

func newTestConfig(t *testing.T) *config.Store {
	t.Helper()
	s, err := config.New(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	return s
}

func TestDriver_DoesNotScanWhileDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	var calls int32

	d := New(cfg, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	d.Start()
	defer d.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.False(t, d.Status().Running)
}

func TestDriver_ScansWhenEnabledWithShortInterval(t *testing.T) {
	cfg := newTestConfig(t)
	enabled := true
	unit := config.IntervalSeconds
	interval := 1
	_, err := cfg.Update(config.Partial{AutoScanEnabled: &enabled, AutoScanUnit: &unit, AutoScanInterval: &interval})
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	d := New(cfg, func(ctx context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})
	d.Start()
	defer d.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scan was never triggered while enabled")
	}
}

func TestDriver_RestartPicksUpEnabledChange(t *testing.T) {
	cfg := newTestConfig(t)
	d := New(cfg, func(ctx context.Context) error { return nil })
	d.Start()

	enabled := true
	_, err := cfg.Update(config.Partial{AutoScanEnabled: &enabled})
	require.NoError(t, err)
	d.Restart()
	defer d.Stop()

	time.Sleep(10 * time.Millisecond)
	assert.True(t, d.Status().Enabled)
}
