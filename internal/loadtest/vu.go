// Package loadtest runs virtual users that repeatedly execute an Iteration.
//
// The executor package decides how many virtual users exist at any moment;
// this package owns their lifecycle and the HTTP client each one uses.
package loadtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lhttp "github.com/wesleyorama2/signupload/internal/http"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// Iteration is one pass of a user journey.
//
// Run must record request failures as metrics rather than returning them.
// A non-nil error means the iteration was cut short, usually by ctx.
type Iteration interface {
	Run(ctx context.Context, vuID int, client lhttp.Doer) error
}

// IterationFunc adapts a function to the Iteration interface.
type IterationFunc func(ctx context.Context, vuID int, client lhttp.Doer) error

// Run calls f.
func (f IterationFunc) Run(ctx context.Context, vuID int, client lhttp.Doer) error {
	return f(ctx, vuID, client)
}

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is ready but not currently running.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is inside an iteration.
	VUStateRunning
	// VUStateStopping indicates the VU has been requested to stop.
	VUStateStopping
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VirtualUser is a single simulated user executing iterations back-to-back.
//
// Each VU has its own HTTP client and therefore its own cookie jar, so a
// session established by one request is replayed on the next request of the
// same iteration. No other state is carried between iterations.
type VirtualUser struct {
	// Unique identifier for this VU
	ID int

	Iteration Iteration
	Client    *lhttp.Client
	Metrics   *metrics.Registry

	state     atomic.Int32
	stopCh    chan struct{}
	doneCh    chan struct{}
	iteration atomic.Int64
}

// NewVirtualUser creates a new Virtual User in the idle state.
func NewVirtualUser(id int, iteration Iteration, client *lhttp.Client, registry *metrics.Registry) *VirtualUser {
	return &VirtualUser{
		ID:        id,
		Iteration: iteration,
		Client:    client,
		Metrics:   registry,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns how many iterations this VU has started.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// RunIteration executes a single iteration.
//
// Completed iterations are recorded into iterations and iteration_duration.
// An iteration that returns an error is not recorded.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	// CAS so a concurrent RequestStop is never overwritten
	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
		return fmt.Errorf("VU %d is %s", vu.ID, vu.GetState())
	}
	vu.iteration.Add(1)

	start := time.Now()
	err := vu.Iteration.Run(ctx, vu.ID, vu.Client)
	if err == nil && vu.Metrics != nil {
		vu.Metrics.RecordIteration(time.Since(start))
	}

	vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))
	return err
}

// RequestStop signals the VU to stop after completing the current iteration.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// Stopping returns a channel closed once RequestStop was called.
func (vu *VirtualUser) Stopping() <-chan struct{} {
	return vu.stopCh
}

// WaitForStop waits for the VU to stop with a timeout.
//
// Returns true if the VU stopped within the timeout, false otherwise.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	select {
	case <-vu.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// MarkStopped marks the VU as fully stopped.
// Called by the scheduler when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	prev := VUState(vu.state.Swap(int32(VUStateStopped)))
	if prev == VUStateStopped {
		return
	}
	if prev != VUStateStopping {
		close(vu.stopCh)
	}
	close(vu.doneCh)
}
