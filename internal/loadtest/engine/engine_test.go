package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lhttp "github.com/wesleyorama2/signupload/internal/http"
	"github.com/wesleyorama2/signupload/internal/loadtest"
	"github.com/wesleyorama2/signupload/internal/loadtest/check"
	"github.com/wesleyorama2/signupload/internal/loadtest/config"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

type serverType int

const (
	serverNormal serverType = iota
	serverError
)

func createTestServer(st serverType) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		switch st {
		case serverNormal:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<form id="signup"></form>`))
		case serverError:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server error"}`))
		}
	}))
}

// pageIteration loads one page, runs a check and feeds a custom error rate.
func pageIteration(url string, checks *check.Registry, errs *metrics.Rate) loadtest.Iteration {
	return loadtest.IterationFunc(func(ctx context.Context, vuID int, client lhttp.Doer) error {
		resp := client.Do(ctx, lhttp.Get("page", url))
		ok := checks.Run(check.New("status is 200", resp.StatusCode == http.StatusOK))
		errs.Add(!ok)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return nil
		}
	})
}

func shortConfig(baseURL string) *config.TestConfig {
	return &config.TestConfig{
		Name:    "engine-test",
		BaseURL: baseURL,
		Stages: []config.StageConfig{
			{Duration: "200ms", Target: 3},
			{Duration: "300ms", Target: 3},
			{Duration: "100ms", Target: 0},
		},
		Thresholds: map[string][]string{
			"http_req_duration": {"p(95)<2000"},
			"http_req_failed":   {"rate<0.01"},
			"errors":            {"rate<0.01"},
		},
		GracefulStop: config.Duration(2 * time.Second),
	}
}

func TestEngine_RunPasses(t *testing.T) {
	server := createTestServer(serverNormal)
	defer server.Close()

	eng, err := New(shortConfig(server.URL))
	require.NoError(t, err)

	errs, err := eng.Registry().NewRate("errors")
	require.NoError(t, err)

	result, err := eng.Run(context.Background(), pageIteration(server.URL, eng.Checks(), errs))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Passed, "thresholds: %+v", result.Thresholds)
	assert.False(t, result.Interrupted)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "engine-test", result.Name)
	assert.Len(t, result.Thresholds, 3)

	reqs := result.Metrics[metrics.HTTPReqs].Values["count"]
	assert.Greater(t, reqs, float64(0))
	assert.Equal(t, float64(0), result.Metrics[metrics.HTTPReqFailed].Values["passes"])
	assert.Equal(t, float64(3), result.Metrics[metrics.VUsMax].Values["max"])

	require.Len(t, result.Checks, 1)
	assert.Equal(t, "status is 200", result.Checks[0].Name)
	assert.Equal(t, int64(0), result.Checks[0].Fails)

	assert.Contains(t, result.Requests, "page")
	assert.NotEmpty(t, result.Phases)
	assert.False(t, eng.IsRunning())
	assert.Equal(t, 1.0, eng.GetProgress())
}

func TestEngine_RunFailsThresholds(t *testing.T) {
	server := createTestServer(serverError)
	defer server.Close()

	eng, err := New(shortConfig(server.URL))
	require.NoError(t, err)

	errs, err := eng.Registry().NewRate("errors")
	require.NoError(t, err)

	result, err := eng.Run(context.Background(), pageIteration(server.URL, eng.Checks(), errs))
	require.NoError(t, err)

	assert.False(t, result.Passed)
	for _, tr := range result.Thresholds {
		switch tr.Metric {
		case "http_req_failed", "errors":
			assert.False(t, tr.Passed, tr.Metric)
			assert.Equal(t, 1.0, tr.Value, tr.Metric)
			assert.NotEmpty(t, tr.Message)
		case "http_req_duration":
			assert.True(t, tr.Passed)
		}
	}
}

func TestEngine_UnknownThresholdMetric(t *testing.T) {
	server := createTestServer(serverNormal)
	defer server.Close()

	cfg := shortConfig(server.URL)
	cfg.Stages = []config.StageConfig{{Duration: "100ms", Target: 1}}
	cfg.Thresholds = map[string][]string{"never_recorded": {"rate<0.5"}}

	eng, err := New(cfg)
	require.NoError(t, err)

	iteration := loadtest.IterationFunc(func(ctx context.Context, vuID int, client lhttp.Doer) error {
		client.Do(ctx, lhttp.Get("page", server.URL))
		return nil
	})

	result, err := eng.Run(context.Background(), iteration)
	require.NoError(t, err)

	require.Len(t, result.Thresholds, 1)
	assert.False(t, result.Thresholds[0].Passed)
	assert.Contains(t, result.Thresholds[0].Message, "never recorded")
	assert.False(t, result.Passed)
}

func TestEngine_InvalidConfig(t *testing.T) {
	_, err := New(&config.TestConfig{Name: "no-stages"})
	require.Error(t, err)

	var verrs *config.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestEngine_ContextCancel(t *testing.T) {
	server := createTestServer(serverNormal)
	defer server.Close()

	cfg := shortConfig(server.URL)
	cfg.Stages = []config.StageConfig{{Duration: "10ms", Target: 2}, {Duration: "1m", Target: 2}}

	eng, err := New(cfg)
	require.NoError(t, err)

	var calls atomic.Int64
	iteration := loadtest.IterationFunc(func(ctx context.Context, vuID int, client lhttp.Doer) error {
		calls.Add(1)
		client.Do(ctx, lhttp.Get("page", server.URL))
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := eng.Run(ctx, iteration)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, result.Interrupted)
	assert.Greater(t, calls.Load(), int64(0))
}

func TestEngine_Stop(t *testing.T) {
	server := createTestServer(serverNormal)
	defer server.Close()

	cfg := shortConfig(server.URL)
	cfg.Stages = []config.StageConfig{{Duration: "1m", Target: 1}}

	eng, err := New(cfg)
	require.NoError(t, err)
	assert.NoError(t, eng.Stop(context.Background()), "Stop before Run is a no-op")
	assert.Nil(t, eng.GetStats())

	iteration := loadtest.IterationFunc(func(ctx context.Context, vuID int, client lhttp.Doer) error {
		client.Do(ctx, lhttp.Get("page", server.URL))
		return nil
	})

	done := make(chan *Result, 1)
	go func() {
		result, _ := eng.Run(context.Background(), iteration)
		done <- result
	}()

	require.Eventually(t, eng.IsRunning, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, eng.Stop(context.Background()))

	select {
	case result := <-done:
		require.NotNil(t, result)
		assert.False(t, result.Interrupted, "Stop ends the schedule without cancelling the run context")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
