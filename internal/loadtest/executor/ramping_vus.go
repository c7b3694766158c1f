package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/signupload/internal/loadtest"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

const defaultTick = 100 * time.Millisecond

// RampingVUs ramps VU count up and down according to stages.
//
// The target VU count is linearly interpolated between stage boundaries and
// recomputed every tick, so the load follows a trapezoid rather than steps.
//
// Example stages:
//
//	stages:
//	  - duration: 1m
//	    target: 10     # Ramp from 0 to 10 VUs over 1m
//	  - duration: 5m
//	    target: 10     # Stay at 10 VUs for 5 minutes
//	  - duration: 1m
//	    target: 0      # Ramp down to 0 VUs over 1m
//
// When the schedule ends, VUs get GracefulStop to finish the iteration they
// are in. Iterations still running after that are cancelled.
type RampingVUs struct {
	config    *Config
	scheduler *loadtest.VUScheduler
	registry  *metrics.Registry

	startTime    atomic.Int64
	activeVUs    atomic.Int32
	targetVUs    atomic.Int32
	currentStage atomic.Int32
	running      atomic.Bool

	cancelMu   sync.Mutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	vus   []*loadtest.VirtualUser
	vusMu sync.Mutex
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs() *RampingVUs {
	return &RampingVUs{
		vus: make([]*loadtest.VirtualUser, 0),
	}
}

// Type returns the executor type.
func (e *RampingVUs) Type() Type {
	return TypeRampingVUs
}

// Init initializes the executor with configuration.
func (e *RampingVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeRampingVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeRampingVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until every VU has stopped.
func (e *RampingVUs) Run(ctx context.Context, scheduler *loadtest.VUScheduler, registry *metrics.Registry) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}

	e.scheduler = scheduler
	e.registry = registry
	e.running.Store(true)
	e.startTime.Store(time.Now().UnixNano())

	// VUs run on iterCtx so the end of the schedule does not interrupt them
	iterCtx, iterCancel := context.WithCancel(ctx)
	defer iterCancel()

	scheduleCtx, cancel := context.WithTimeout(ctx, e.config.TotalDuration())
	e.cancelMu.Lock()
	e.cancelFunc = cancel
	e.cancelMu.Unlock()
	defer cancel()

	e.vuController(scheduleCtx, iterCtx)

	e.gracefulShutdown(iterCancel)

	e.registry.Phases().Set(metrics.PhaseDone)
	e.registry.SetActiveVUs(0)
	e.running.Store(false)

	return nil
}

// vuController adjusts VU count according to stages until scheduleCtx ends.
func (e *RampingVUs) vuController(scheduleCtx, iterCtx context.Context) {
	tick := e.config.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	e.step(iterCtx)
	for {
		select {
		case <-scheduleCtx.Done():
			return
		case <-ticker.C:
			e.step(iterCtx)
		}
	}
}

func (e *RampingVUs) step(iterCtx context.Context) {
	target, stageIdx := TargetAt(e.config.Stages, e.elapsed())
	e.targetVUs.Store(int32(target))
	e.currentStage.Store(int32(stageIdx))
	e.adjustVUs(iterCtx, target)
	e.updatePhase(stageIdx)
}

// TargetAt returns the interpolated VU target after elapsed time and the
// index of the stage it falls in. Past the last stage the final target holds.
func TargetAt(stages []Stage, elapsed time.Duration) (int, int) {
	var stageStart time.Duration
	prevTarget := 0

	for i, stage := range stages {
		stageEnd := stageStart + stage.Duration

		if elapsed < stageEnd {
			progress := float64(elapsed-stageStart) / float64(stage.Duration)
			if progress < 0 {
				progress = 0
			}

			target := float64(prevTarget) + float64(stage.Target-prevTarget)*progress
			return int(target + 0.5), i
		}

		prevTarget = stage.Target
		stageStart = stageEnd
	}

	if len(stages) == 0 {
		return 0, 0
	}
	return stages[len(stages)-1].Target, len(stages) - 1
}

// adjustVUs spawns or stops VUs to match the target.
func (e *RampingVUs) adjustVUs(iterCtx context.Context, targetVUs int) {
	e.vusMu.Lock()
	defer e.vusMu.Unlock()

	currentVUs := len(e.vus)

	if targetVUs > currentVUs {
		for i := currentVUs; i < targetVUs; i++ {
			vu := e.scheduler.SpawnVU()
			e.vus = append(e.vus, vu)
			e.wg.Add(1)
			go e.runVU(iterCtx, vu)
		}
	} else if targetVUs < currentVUs {
		// Stop from the end; they finish their current iteration first
		for i := currentVUs - 1; i >= targetVUs; i-- {
			e.vus[i].RequestStop()
		}
		e.vus = e.vus[:targetVUs]
	}

	e.registry.SetActiveVUs(targetVUs)
}

func (e *RampingVUs) updatePhase(stageIdx int) {
	if stageIdx >= len(e.config.Stages) {
		return
	}

	prevTarget := 0
	if stageIdx > 0 {
		prevTarget = e.config.Stages[stageIdx-1].Target
	}
	e.registry.Phases().Set(metrics.PhaseFor(prevTarget, e.config.Stages[stageIdx].Target))
}

func (e *RampingVUs) runVU(ctx context.Context, vu *loadtest.VirtualUser) {
	defer e.wg.Done()

	e.activeVUs.Add(1)
	defer e.activeVUs.Add(-1)

	e.scheduler.RunVU(ctx, vu)
}

// gracefulShutdown stops every VU and waits up to GracefulStop for their
// current iteration, then cancels whatever is still running.
func (e *RampingVUs) gracefulShutdown(cancelIterations context.CancelFunc) {
	e.vusMu.Lock()
	for _, vu := range e.vus {
		vu.RequestStop()
	}
	e.vus = e.vus[:0]
	e.vusMu.Unlock()

	graceful := e.config.GracefulStop
	if graceful == 0 {
		graceful = DefaultGracefulStop
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(graceful):
	}

	cancelIterations()
	<-done
}

func (e *RampingVUs) elapsed() time.Duration {
	start := e.startTime.Load()
	if start == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - start)
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *RampingVUs) GetProgress() float64 {
	if !e.running.Load() {
		if e.startTime.Load() == 0 {
			return 0.0
		}
		return 1.0
	}

	totalDuration := e.config.TotalDuration()
	if totalDuration == 0 {
		return 1.0
	}

	progress := float64(e.elapsed()) / float64(totalDuration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns the number of VU goroutines still running.
func (e *RampingVUs) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *RampingVUs) GetStats() *Stats {
	stats := &Stats{
		CurrentTime: time.Now(),
		Elapsed:     e.elapsed(),
		ActiveVUs:   int(e.activeVUs.Load()),
		TargetVUs:   int(e.targetVUs.Load()),
	}
	if start := e.startTime.Load(); start != 0 {
		stats.StartTime = time.Unix(0, start)
	}
	if e.registry != nil {
		stats.Iterations = int64(e.registry.Iterations.Value())
		stats.Phase = e.registry.Phases().Current()
	}
	if e.config != nil {
		stageIdx := int(e.currentStage.Load())
		stats.TotalDuration = e.config.TotalDuration()
		stats.CurrentStage = stageIdx
		stats.TotalStages = len(e.config.Stages)
		if stageIdx < len(e.config.Stages) {
			stats.CurrentStageName = e.config.Stages[stageIdx].Name
		}
	}
	return stats
}

// Stop ends the schedule early. Run still performs the graceful stop.
func (e *RampingVUs) Stop(ctx context.Context) error {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancelFunc != nil {
		e.cancelFunc()
	}
	return nil
}

// Ensure RampingVUs implements Executor
var _ Executor = (*RampingVUs)(nil)
