package metrics

import (
	"sync"
	"time"
)

// Phase represents a phase of the load test.
type Phase string

const (
	// PhaseInit is the initialization phase before the first stage starts
	PhaseInit Phase = "init"

	// PhaseRampUp is a stage whose target is above the starting VU count
	PhaseRampUp Phase = "ramp-up"

	// PhaseSteady is a stage that holds the VU count constant
	PhaseSteady Phase = "steady"

	// PhaseRampDown is a stage whose target is below the starting VU count
	PhaseRampDown Phase = "ramp-down"

	// PhaseDone indicates the test has completed
	PhaseDone Phase = "done"
)

// PhaseChange records when a phase transition occurred.
type PhaseChange struct {
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
}

// PhaseTracker keeps the current phase and the history of transitions.
type PhaseTracker struct {
	mu      sync.RWMutex
	current Phase
	history []PhaseChange
	now     func() time.Time
}

// NewPhaseTracker returns a tracker in PhaseInit.
func NewPhaseTracker() *PhaseTracker {
	return &PhaseTracker{
		current: PhaseInit,
		history: make([]PhaseChange, 0),
		now:     time.Now,
	}
}

// Set updates the current phase. Setting the current phase again is a no-op.
func (p *PhaseTracker) Set(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == phase {
		return
	}

	p.current = phase
	p.history = append(p.history, PhaseChange{Phase: phase, Timestamp: p.now()})
}

// Current returns the current phase.
func (p *PhaseTracker) Current() Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// History returns a copy of all transitions in order.
func (p *PhaseTracker) History() []PhaseChange {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PhaseChange, len(p.history))
	copy(out, p.history)
	return out
}

// PhaseFor classifies a stage ramping from startVUs to target.
func PhaseFor(startVUs, target int) Phase {
	switch {
	case target > startVUs:
		return PhaseRampUp
	case target < startVUs:
		return PhaseRampDown
	default:
		return PhaseSteady
	}
}
