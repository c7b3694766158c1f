package loadtest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	lhttp "github.com/wesleyorama2/signupload/internal/http"
	"github.com/wesleyorama2/signupload/internal/loadtest"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// getIteration issues one GET against url per iteration.
func getIteration(url string) loadtest.Iteration {
	return loadtest.IterationFunc(func(ctx context.Context, vuID int, client lhttp.Doer) error {
		client.Do(ctx, lhttp.Get("test-request", url))
		return nil
	})
}

func TestNewVirtualUser(t *testing.T) {
	registry := metrics.NewRegistry()
	vu := loadtest.NewVirtualUser(1, getIteration("http://localhost"), lhttp.NewClient(), registry)

	if vu.ID != 1 {
		t.Errorf("VU ID = %d, want 1", vu.ID)
	}
	if vu.Client == nil {
		t.Error("VU Client is nil")
	}
	if vu.GetState() != loadtest.VUStateIdle {
		t.Errorf("Initial VU state = %v, want %v", vu.GetState(), loadtest.VUStateIdle)
	}
	if vu.GetIteration() != 0 {
		t.Errorf("Initial iteration = %d, want 0", vu.GetIteration())
	}
}

func TestVUState_String(t *testing.T) {
	tests := []struct {
		state loadtest.VUState
		want  string
	}{
		{loadtest.VUStateIdle, "idle"},
		{loadtest.VUStateRunning, "running"},
		{loadtest.VUStateStopping, "stopping"},
		{loadtest.VUStateStopped, "stopped"},
		{loadtest.VUState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("VUState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestVirtualUser_RunIteration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	registry := metrics.NewRegistry()
	client := lhttp.NewClient(lhttp.WithSink(registry))
	vu := loadtest.NewVirtualUser(1, getIteration(server.URL), client, registry)

	for i := 0; i < 3; i++ {
		if err := vu.RunIteration(context.Background()); err != nil {
			t.Fatalf("RunIteration() error = %v", err)
		}
	}

	if vu.GetIteration() != 3 {
		t.Errorf("Iteration count = %d, want 3", vu.GetIteration())
	}
	if vu.GetState() != loadtest.VUStateIdle {
		t.Errorf("State after iteration = %v, want idle", vu.GetState())
	}
	if got := registry.HTTPReqs.Value(); got != 3 {
		t.Errorf("http_reqs = %v, want 3", got)
	}
	if got := registry.Iterations.Value(); got != 3 {
		t.Errorf("iterations = %v, want 3", got)
	}
}

func TestVirtualUser_FailedIterationNotRecorded(t *testing.T) {
	registry := metrics.NewRegistry()
	failing := loadtest.IterationFunc(func(ctx context.Context, vuID int, client lhttp.Doer) error {
		return errors.New("cut short")
	})
	vu := loadtest.NewVirtualUser(1, failing, lhttp.NewClient(), registry)

	if err := vu.RunIteration(context.Background()); err == nil {
		t.Error("Expected iteration error to be returned")
	}
	if got := registry.Iterations.Value(); got != 0 {
		t.Errorf("iterations = %v, want 0", got)
	}
}

func TestVirtualUser_RequestStop(t *testing.T) {
	vu := loadtest.NewVirtualUser(1, getIteration("http://localhost"), lhttp.NewClient(), nil)

	vu.RequestStop()
	if vu.GetState() != loadtest.VUStateStopping {
		t.Errorf("State after RequestStop = %v, want stopping", vu.GetState())
	}

	select {
	case <-vu.Stopping():
	default:
		t.Error("Stopping() channel should be closed")
	}

	// Second call must not panic on double close
	vu.RequestStop()

	if err := vu.RunIteration(context.Background()); err == nil {
		t.Error("RunIteration on a stopping VU should fail")
	}

	vu.MarkStopped()
	if !vu.WaitForStop(100 * time.Millisecond) {
		t.Error("WaitForStop should return true after MarkStopped")
	}
	vu.MarkStopped()
}

func TestVirtualUser_StopDuringIteration(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool

	iteration := loadtest.IterationFunc(func(ctx context.Context, vuID int, client lhttp.Doer) error {
		<-release
		finished.Store(true)
		return nil
	})
	vu := loadtest.NewVirtualUser(1, iteration, lhttp.NewClient(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- vu.RunIteration(context.Background()) }()

	// Wait until the iteration is in progress
	deadline := time.Now().Add(time.Second)
	for vu.GetState() != loadtest.VUStateRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	vu.RequestStop()
	close(release)

	if err := <-errCh; err != nil {
		t.Errorf("In-flight iteration should complete, got %v", err)
	}
	if !finished.Load() {
		t.Error("Iteration body did not finish")
	}
	if vu.GetState() != loadtest.VUStateStopping {
		t.Errorf("State = %v, want stopping to be preserved", vu.GetState())
	}
}
