package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fleetworks-data/dispatch.report/internal/timeutil"
)

// Runner is the subset of Pipeline the controller drives; narrowed for tests.
type Runner interface {
	Run(ctx context.Context) (*RunSummary, error)
	RunFullHistory(ctx context.Context) (*RunSummary, error)
}

// RunController manages scheduled and manually-triggered pipeline runs. It is
// safe for concurrent use; trigger channels are buffered with size one so
// rapid repeated triggers coalesce into a single pending run.
type RunController struct {
	runner   Runner
	clock    timeutil.Clock
	interval time.Duration

	mu            sync.RWMutex
	enabled       bool
	manualTrigger chan struct{}
	fullHistory   chan struct{}

	lastRunAt    time.Time
	lastRunError error
	runCount     int64
	currentRun   *RunInfo
	lastRun      *RunInfo
}

// RunInfo captures one controller-driven run.
type RunInfo struct {
	Trigger    string    `json:"trigger,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Status is the externally visible controller state.
type Status struct {
	Enabled      bool      `json:"enabled"`
	LastRunAt    time.Time `json:"last_run_at"`
	LastRunError string    `json:"last_run_error,omitempty"`
	RunCount     int64     `json:"run_count"`
	IsHealthy    bool      `json:"is_healthy"`
	CurrentRun   *RunInfo  `json:"current_run,omitempty"`
	LastRun      *RunInfo  `json:"last_run,omitempty"`
}

// NewRunController creates a controller that runs the pipeline every
// interval while enabled.
func NewRunController(runner Runner, clock timeutil.Clock, interval time.Duration) *RunController {
	return &RunController{
		runner:        runner,
		clock:         clock,
		interval:      interval,
		enabled:       true,
		manualTrigger: make(chan struct{}, 1),
		fullHistory:   make(chan struct{}, 1),
	}
}

// IsEnabled reports whether scheduled runs are active.
func (rc *RunController) IsEnabled() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.enabled
}

// SetEnabled toggles scheduled runs. Enabling also triggers an immediate run.
func (rc *RunController) SetEnabled(enabled bool) {
	rc.mu.Lock()
	rc.enabled = enabled
	rc.mu.Unlock()

	if enabled {
		rc.TriggerManualRun()
	}
}

// TriggerManualRun requests a run without waiting for the schedule.
// Non-blocking; a pending trigger absorbs repeats.
func (rc *RunController) TriggerManualRun() {
	select {
	case rc.manualTrigger <- struct{}{}:
	default:
		log.Printf("pipeline manual trigger skipped (already pending)")
	}
}

// TriggerFullHistoryRun requests a full-history recompute. Non-blocking.
func (rc *RunController) TriggerFullHistoryRun() {
	select {
	case rc.fullHistory <- struct{}{}:
	default:
		log.Printf("pipeline full-history trigger skipped (already pending)")
	}
}

// GetStatus returns a snapshot of the controller state. The controller is
// unhealthy when the last run failed or, while enabled, no run has happened
// for twice the schedule interval.
func (rc *RunController) GetStatus() Status {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	status := Status{
		Enabled:   rc.enabled,
		LastRunAt: rc.lastRunAt,
		RunCount:  rc.runCount,
		IsHealthy: true,
	}
	if rc.lastRunError != nil {
		status.LastRunError = rc.lastRunError.Error()
		status.IsHealthy = false
	}
	if rc.currentRun != nil {
		runCopy := *rc.currentRun
		status.CurrentRun = &runCopy
	}
	if rc.lastRun != nil {
		runCopy := *rc.lastRun
		status.LastRun = &runCopy
	}
	if rc.enabled && !rc.lastRunAt.IsZero() && rc.clock.Since(rc.lastRunAt) > 2*rc.interval {
		status.IsHealthy = false
	}
	return status
}

func (rc *RunController) startRun(trigger string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.currentRun = &RunInfo{Trigger: trigger, StartedAt: rc.clock.Now()}
}

func (rc *RunController) finishRun(err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := rc.clock.Now()
	if rc.currentRun == nil {
		rc.currentRun = &RunInfo{Trigger: "unknown", StartedAt: now}
	}
	rc.currentRun.FinishedAt = now
	rc.currentRun.DurationMs = now.Sub(rc.currentRun.StartedAt).Milliseconds()
	if err != nil {
		rc.currentRun.Error = err.Error()
	}
	rc.lastRun = rc.currentRun
	rc.currentRun = nil
	rc.lastRunAt = now
	rc.lastRunError = err
	rc.runCount++
}

func (rc *RunController) runOnce(ctx context.Context, trigger string) {
	if !rc.IsEnabled() {
		log.Printf("pipeline %s run skipped (disabled)", trigger)
		return
	}
	rc.startRun(trigger)
	var err error
	if trigger == "full-history" {
		_, err = rc.runner.RunFullHistory(ctx)
	} else {
		_, err = rc.runner.Run(ctx)
	}
	rc.finishRun(err)
	if err != nil {
		log.Printf("pipeline %s run error: %v", trigger, err)
	} else {
		log.Printf("pipeline completed %s run", trigger)
	}
}

// Run drives the controller loop until the context is cancelled. Call in a
// goroutine. An initial run fires immediately when enabled.
func (rc *RunController) Run(ctx context.Context) error {
	ticker := rc.clock.NewTicker(rc.interval)
	defer ticker.Stop()
	log.Printf("pipeline run loop started: enabled=%t interval=%s", rc.IsEnabled(), rc.interval)

	if rc.IsEnabled() {
		rc.runOnce(ctx, "initial")
	}

	for {
		select {
		case <-ticker.C():
			rc.runOnce(ctx, "periodic")
		case <-rc.manualTrigger:
			rc.runOnce(ctx, "manual")
		case <-rc.fullHistory:
			rc.runOnce(ctx, "full-history")
		case <-ctx.Done():
			log.Printf("pipeline run loop terminated")
			return ctx.Err()
		}
	}
}
