// Package check implements named boolean assertions on responses.
//
// Every evaluated check feeds the run-wide "checks" rate and a per-name
// pass/fail tally that ends up in the summary's check table.
package check

import (
	"sync"
	"sync/atomic"

	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// Check is one evaluated assertion.
type Check struct {
	Name string
	OK   bool
}

// New returns a Check called name with outcome ok.
func New(name string, ok bool) Check {
	return Check{Name: name, OK: ok}
}

// Result is the end-of-run tally of one named check.
type Result struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// Rate returns the fraction of evaluations that passed.
func (r Result) Rate() float64 {
	total := r.Passes + r.Fails
	if total == 0 {
		return 0
	}
	return float64(r.Passes) / float64(total)
}

type tally struct {
	passes atomic.Int64
	fails  atomic.Int64
}

// Registry aggregates checks from all virtual users.
type Registry struct {
	rate *metrics.Rate

	mu      sync.RWMutex
	order   []string
	tallies map[string]*tally
}

// NewRegistry creates a registry that also feeds rate (usually the built-in
// checks metric). rate may be nil.
func NewRegistry(rate *metrics.Rate) *Registry {
	return &Registry{
		rate:    rate,
		tallies: make(map[string]*tally),
	}
}

// Run records every check and reports whether all of them passed.
// Every check is recorded even after one has failed.
func (r *Registry) Run(checks ...Check) bool {
	all := true
	for _, c := range checks {
		r.record(c)
		if !c.OK {
			all = false
		}
	}
	return all
}

func (r *Registry) record(c Check) {
	t := r.tally(c.Name)
	if c.OK {
		t.passes.Add(1)
	} else {
		t.fails.Add(1)
	}
	if r.rate != nil {
		r.rate.Add(c.OK)
	}
}

func (r *Registry) tally(name string) *tally {
	r.mu.RLock()
	t, ok := r.tallies[name]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.tallies[name]; !ok {
		t = &tally{}
		r.tallies[name] = t
		r.order = append(r.order, name)
	}
	return t
}

// Results returns the tallies in the order the checks were first seen.
func (r *Registry) Results() []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Result, 0, len(r.order))
	for _, name := range r.order {
		t := r.tallies[name]
		out = append(out, Result{
			Name:   name,
			Passes: t.passes.Load(),
			Fails:  t.fails.Load(),
		})
	}
	return out
}
