package loadtest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	lhttp "github.com/wesleyorama2/signupload/internal/http"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// VUScheduler manages the lifecycle of Virtual Users.
//
// It provides:
// - VU pool management (spawning/stopping VUs)
// - A transport shared by every VU, with one client and cookie jar per VU
// - Graceful shutdown coordination
//
// The scheduler is used by executors to control VU counts.
type VUScheduler struct {
	iteration Iteration
	metrics   *metrics.Registry
	config    HTTPClientConfig
	logger    zerolog.Logger

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	nextVUID atomic.Int32

	transport *http.Transport

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// SchedulerOption configures a VUScheduler.
type SchedulerOption func(*VUScheduler)

// WithLogger sets the logger used for iteration errors.
func WithLogger(logger zerolog.Logger) SchedulerOption {
	return func(s *VUScheduler) {
		s.logger = logger
	}
}

// NewVUScheduler creates a new VU scheduler.
func NewVUScheduler(iteration Iteration, registry *metrics.Registry, httpConfig HTTPClientConfig, opts ...SchedulerOption) *VUScheduler {
	s := &VUScheduler{
		iteration:  iteration,
		metrics:    registry,
		config:     httpConfig,
		logger:     zerolog.Nop(),
		vus:        make(map[int]*VirtualUser),
		shutdownCh: make(chan struct{}),
		transport: lhttp.NewTransport(lhttp.TransportConfig{
			MaxIdleConns:        httpConfig.MaxIdleConns,
			MaxIdleConnsPerHost: httpConfig.MaxIdleConnsPerHost,
			IdleConnTimeout:     httpConfig.IdleConnTimeout,
			InsecureSkipVerify:  httpConfig.InsecureSkipVerify,
		}),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpawnVU creates and returns a new Virtual User.
//
// The VU is registered with the scheduler but not started.
// The caller is responsible for running the VU.
func (s *VUScheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))

	clientOpts := []lhttp.ClientOption{
		lhttp.WithTransport(s.transport),
		lhttp.WithTimeout(s.config.Timeout),
	}
	if s.metrics != nil {
		clientOpts = append(clientOpts, lhttp.WithSink(s.metrics))
	}

	vu := NewVirtualUser(id, s.iteration, lhttp.NewClient(clientOpts...), s.metrics)

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// GetVU returns a VU by ID, or nil if not found.
func (s *VUScheduler) GetVU(id int) *VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()
	return s.vus[id]
}

// GetActiveVUCount returns the count of non-stopped VUs.
func (s *VUScheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			count++
		}
	}
	return count
}

// StopAllVUs requests all VUs to stop.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// RemoveVU removes a VU from the scheduler.
func (s *VUScheduler) RemoveVU(id int) {
	s.vusMu.Lock()
	defer s.vusMu.Unlock()

	if vu, exists := s.vus[id]; exists {
		vu.MarkStopped()
		delete(s.vus, id)
	}
}

// RunVU runs a VU until it is stopped, the scheduler shuts down or ctx is
// cancelled. A stop request never interrupts the iteration in progress.
func (s *VUScheduler) RunVU(ctx context.Context, vu *VirtualUser) {
	s.shutdownWg.Add(1)
	defer s.shutdownWg.Done()
	defer s.RemoveVU(vu.ID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		case <-vu.Stopping():
			return
		default:
		}

		err := vu.RunIteration(ctx)
		if err != nil {
			if ctx.Err() != nil || vu.GetState() == VUStateStopping {
				return
			}
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).Int("vu", vu.ID).Msg("iteration aborted")
			}
		}
	}
}

// Shutdown stops all VUs and waits up to timeout for their goroutines.
//
// Returns false if some VUs were still running when the timeout expired.
func (s *VUScheduler) Shutdown(timeout time.Duration) bool {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	s.StopAllVUs()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	drained := true
	select {
	case <-done:
	case <-time.After(timeout):
		drained = false
	}

	s.transport.CloseIdleConnections()
	return drained
}

// UpdateMetrics updates the vus gauge with the current VU count.
func (s *VUScheduler) UpdateMetrics() {
	if s.metrics != nil {
		s.metrics.SetActiveVUs(s.GetActiveVUCount())
	}
}
