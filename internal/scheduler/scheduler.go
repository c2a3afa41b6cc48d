// Package scheduler implements the periodic driver (C8): a single
// long-running loop that triggers a scan at the configured cadence and is
// restartable whenever auto-scan settings change.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/JustinTDCT/ingestarr/internal/config"
	"github.com/JustinTDCT/ingestarr/internal/logging"
)

const disabledPollInterval = 30 * time.Second

// RunScan is invoked once per due cycle; the caller supplies the function
// that starts a scan (main.go enqueues a scan job) so this package stays
// free of an ingest import cycle.
type RunScan func(ctx context.Context) error

// Status mirrors the shape original auto-scan status exposure takes:
// enabled/interval/unit plus whether the loop is currently running a scan
// and when it last/next will fire.
type Status struct {
	Enabled  bool
	Interval int
	Unit     config.IntervalUnit
	Running  bool
	LastScan *time.Time
	NextScan *time.Time
}

// Driver owns the periodic loop goroutine.
type Driver struct {
	cfg     *config.Store
	runScan RunScan

	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	status   Status
}

// New creates a Driver. Call Start to begin the loop.
func New(cfg *config.Store, runScan RunScan) *Driver {
	return &Driver{cfg: cfg, runScan: runScan}
}

// Start launches the loop goroutine. Calling Start twice without an
// intervening Stop is a no-op.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(d.stop, d.done)
}

// Stop tears down the loop goroutine and waits for it to exit.
func (d *Driver) Stop() {
	d.mu.Lock()
	stop := d.stop
	done := d.done
	d.stop = nil
	d.done = nil
	d.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Restart tears down the current loop and starts a fresh one — called
// whenever a config update affects auto-scan fields.
func (d *Driver) Restart() {
	d.Stop()
	d.Start()
}

// Status returns a snapshot of the driver's current state.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Driver) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := logging.For("scheduler")

	for {
		cfg := d.cfg.Get()

		d.mu.Lock()
		d.status.Enabled = cfg.AutoScanEnabled
		d.status.Interval = cfg.AutoScanInterval
		d.status.Unit = cfg.AutoScanUnit
		d.mu.Unlock()

		if !cfg.AutoScanEnabled {
			d.setNextScan(nil)
			if !sleep(disabledPollInterval, stop) {
				return
			}
			continue
		}

		intervalSeconds := cfg.AutoScanIntervalSeconds()
		now := time.Now()
		d.setNextScan(&now)

		d.mu.Lock()
		d.status.Running = true
		d.mu.Unlock()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		if err := d.runScan(ctx); err != nil {
			logger.Warn().Err(err).Msg("scheduled scan failed")
		}
		cancel()

		finished := time.Now()
		next := finished.Add(time.Duration(intervalSeconds) * time.Second)
		d.mu.Lock()
		d.status.Running = false
		d.status.LastScan = &finished
		d.status.NextScan = &next
		d.mu.Unlock()

		if intervalSeconds <= 0 {
			// A zero interval is treated as disabled-in-practice: fall
			// back to the disabled poll cadence instead of busy-looping.
			if !sleep(disabledPollInterval, stop) {
				return
			}
			continue
		}

		if !sleep(time.Duration(intervalSeconds)*time.Second, stop) {
			return
		}
	}
}

func (d *Driver) setNextScan(t *time.Time) {
	d.mu.Lock()
	d.status.NextScan = t
	d.mu.Unlock()
}

// sleep waits for the given duration or until stop closes, returning false
// if it was interrupted by stop.
func sleep(d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	}
}
