package signup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lhttp "github.com/wesleyorama2/signupload/internal/http"
	"github.com/wesleyorama2/signupload/internal/loadtest/check"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

const signupForm = `<form id="signup"><input name="firstName"></form>`

type stubResponse struct {
	status   int
	body     string
	duration time.Duration
}

// fakeDoer answers by request name and remembers what it was asked.
type fakeDoer struct {
	mu        sync.Mutex
	responses map[string]stubResponse
	requests  []*lhttp.Request
}

func (f *fakeDoer) Do(_ context.Context, req *lhttp.Request) *lhttp.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	stub, ok := f.responses[req.Name]
	if !ok {
		stub = stubResponse{status: http.StatusOK, duration: 10 * time.Millisecond}
	}
	return &lhttp.Response{
		Name:       req.Name,
		Method:     req.Method,
		URL:        req.URL,
		StatusCode: stub.status,
		Body:       []byte(stub.body),
		Timing:     lhttp.TimingInfo{Duration: stub.duration},
	}
}

func (f *fakeDoer) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.requests))
	for i, r := range f.requests {
		names[i] = r.Name
	}
	return names
}

type recordedSleeps struct {
	mu    sync.Mutex
	total []time.Duration
}

func (s *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.total = append(s.total, d)
	s.mu.Unlock()
	return ctx.Err()
}

type fixture struct {
	journey *Journey
	checks  *check.Registry
	errs    *metrics.Rate
	latency *metrics.Trend
	sleeps  *recordedSleeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry := metrics.NewRegistry()
	errs, latency, err := Recorders(registry)
	require.NoError(t, err)

	pool, err := NewPool(DefaultProfiles(), 1)
	require.NoError(t, err)

	f := &fixture{
		checks:  check.NewRegistry(registry.Checks),
		errs:    errs,
		latency: latency,
		sleeps:  &recordedSleeps{},
	}
	f.journey, err = NewJourney(Options{
		BaseURL:   "http://target.test",
		Pool:      pool,
		Tokens:    NewTokenSource(nil),
		Checks:    f.checks,
		Errors:    errs,
		Latency:   latency,
		ThinkTime: time.Second,
		Sleep:     f.sleeps.sleep,
		Logger:    zerolog.Nop(),
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) results() map[string]check.Result {
	out := make(map[string]check.Result)
	for _, r := range f.checks.Results() {
		out[r.Name] = r
	}
	return out
}

func TestJourney_AllHealthy(t *testing.T) {
	f := newFixture(t)
	doer := &fakeDoer{responses: map[string]stubResponse{
		RequestSignupPage:   {status: 200, body: signupForm, duration: 150 * time.Millisecond},
		RequestSignupSubmit: {status: 200, duration: 300 * time.Millisecond},
		RequestDashboard:    {status: 200, duration: 120 * time.Millisecond},
	}}

	require.NoError(t, f.journey.Run(context.Background(), 1, doer))

	assert.Equal(t, []string{RequestSignupPage, RequestSignupSubmit, RequestDashboard}, doer.names())
	assert.Equal(t, int64(3), f.errs.Total())
	assert.Equal(t, int64(0), f.errs.Passes())
	assert.Equal(t, int64(3), f.latency.Count())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, f.sleeps.total)

	results := f.results()
	for _, name := range []string{
		CheckPageLoads, CheckPageHasForm, CheckPageFast,
		CheckSubmitOK, CheckSubmitFast, CheckNoServerErrors,
		CheckDashboardLoads, CheckDashboardFast,
	} {
		r, ok := results[name]
		require.True(t, ok, name)
		assert.Equal(t, int64(1), r.Passes, name)
		assert.Equal(t, int64(0), r.Fails, name)
	}
}

func TestJourney_SignupPageDownAborts(t *testing.T) {
	f := newFixture(t)
	doer := &fakeDoer{responses: map[string]stubResponse{
		RequestSignupPage: {status: 503, body: "maintenance", duration: 50 * time.Millisecond},
	}}

	require.NoError(t, f.journey.Run(context.Background(), 2, doer))

	assert.Equal(t, []string{RequestSignupPage}, doer.names())
	assert.Equal(t, int64(1), f.errs.Total())
	assert.Equal(t, int64(1), f.errs.Passes())
	assert.Equal(t, int64(1), f.latency.Count())
	assert.Empty(t, f.sleeps.total, "no think time after an aborted step")

	results := f.results()
	assert.Equal(t, int64(1), results[CheckPageLoads].Fails)
	assert.Equal(t, int64(1), results[CheckPageHasForm].Fails)
	assert.Equal(t, int64(1), results[CheckPageFast].Passes)
	_, submitted := results[CheckSubmitOK]
	assert.False(t, submitted)
}

func TestJourney_PageFailureLogsStatusAndBody(t *testing.T) {
	f := newFixture(t)

	var logs strings.Builder
	journey, err := NewJourney(Options{
		BaseURL: "http://target.test",
		Pool:    f.journey.pool,
		Tokens:  NewTokenSource(nil),
		Checks:  f.checks,
		Errors:  f.errs,
		Latency: f.latency,
		Sleep:   f.sleeps.sleep,
		Logger:  zerolog.New(&logs),
	})
	require.NoError(t, err)

	doer := &fakeDoer{responses: map[string]stubResponse{
		RequestSignupPage: {status: 503, body: "maintenance " + strings.Repeat("x", 2*maxLoggedBody), duration: 50 * time.Millisecond},
	}}
	require.NoError(t, journey.Run(context.Background(), 4, doer))

	line := logs.String()
	assert.Contains(t, line, `"level":"error"`)
	assert.Contains(t, line, `"step":"`+RequestSignupPage+`"`)
	assert.Contains(t, line, `"status":503`)
	assert.Contains(t, line, `"body":"maintenance x`)
	assert.Less(t, len(line), 2*maxLoggedBody, "logged body is truncated")
}

func TestJourney_SlowRedirectStillVisitsDashboard(t *testing.T) {
	f := newFixture(t)
	doer := &fakeDoer{responses: map[string]stubResponse{
		RequestSignupPage:   {status: 200, body: "please signup", duration: 100 * time.Millisecond},
		RequestSignupSubmit: {status: 302, duration: 3500 * time.Millisecond},
		RequestDashboard:    {status: 200, duration: 100 * time.Millisecond},
	}}

	require.NoError(t, f.journey.Run(context.Background(), 3, doer))

	assert.Equal(t, []string{RequestSignupPage, RequestSignupSubmit, RequestDashboard}, doer.names())

	results := f.results()
	assert.Equal(t, int64(1), results[CheckSubmitOK].Passes)
	assert.Equal(t, int64(1), results[CheckSubmitFast].Fails)
	assert.Equal(t, int64(1), results[CheckNoServerErrors].Passes)

	// page ok, submit failed, dashboard ok
	assert.Equal(t, int64(3), f.errs.Total())
	assert.Equal(t, int64(1), f.errs.Passes())
}

func TestJourney_RejectedSubmitSkipsDashboard(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		noServerErrors bool
	}{
		{name: "client error", status: 400, noServerErrors: true},
		{name: "server error", status: 500, noServerErrors: false},
		{name: "transport error", status: 0, noServerErrors: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			doer := &fakeDoer{responses: map[string]stubResponse{
				RequestSignupPage:   {status: 200, body: signupForm, duration: 10 * time.Millisecond},
				RequestSignupSubmit: {status: tt.status, body: strings.Repeat("x", 2048), duration: 10 * time.Millisecond},
			}}

			require.NoError(t, f.journey.Run(context.Background(), 1, doer))

			assert.Equal(t, []string{RequestSignupPage, RequestSignupSubmit}, doer.names())
			assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, f.sleeps.total)

			results := f.results()
			assert.Equal(t, int64(1), results[CheckSubmitOK].Fails)
			if tt.noServerErrors {
				assert.Equal(t, int64(1), results[CheckNoServerErrors].Passes)
			} else {
				assert.Equal(t, int64(1), results[CheckNoServerErrors].Fails)
			}
			assert.Equal(t, int64(2), f.errs.Total())
			assert.Equal(t, int64(1), f.errs.Passes())
		})
	}
}

func TestJourney_FormPayload(t *testing.T) {
	f := newFixture(t)
	doer := &fakeDoer{responses: map[string]stubResponse{
		RequestSignupPage: {status: 200, body: signupForm},
	}}

	require.NoError(t, f.journey.Run(context.Background(), 1, doer))
	require.GreaterOrEqual(t, len(doer.requests), 2)

	post := doer.requests[1]
	assert.Equal(t, http.MethodPost, post.Method)
	assert.Equal(t, "http://target.test/Signup", post.URL)
	assert.Equal(t, "application/x-www-form-urlencoded", post.Headers["Content-Type"])
	assert.Equal(t, "test-agent", post.Headers["User-Agent"])

	for _, field := range []string{"firstName=", "lastName=", "email=", "password=", "confirmPassword=", "terms=on", "privacy=on"} {
		assert.Contains(t, post.Body, field)
	}
	assert.Contains(t, post.Body, "%2B", "email carries the +token tag")
}

func TestJourney_CancelDuringThinkTime(t *testing.T) {
	f := newFixture(t)
	doer := &fakeDoer{responses: map[string]stubResponse{
		RequestSignupPage: {status: 200, body: signupForm},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	f.journey.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	err := f.journey.Run(ctx, 1, doer)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{RequestSignupPage}, doer.names())
	assert.Equal(t, int64(1), f.errs.Total(), "only the completed step is recorded")
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestNewJourney_RequiresDependencies(t *testing.T) {
	_, err := NewJourney(Options{BaseURL: "http://x"})
	assert.Error(t, err)

	_, err = NewJourney(Options{})
	assert.Error(t, err)
}

func TestJourney_AgainstServer(t *testing.T) {
	var mu sync.Mutex
	var emails []string

	mux := http.NewServeMux()
	mux.HandleFunc("/Signup", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(signupForm))
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if r.PostForm.Get("password") != r.PostForm.Get("confirmPassword") {
				http.Error(w, "passwords differ", http.StatusBadRequest)
				return
			}
			mu.Lock()
			emails = append(emails, r.PostForm.Get("email"))
			mu.Unlock()
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		}
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("welcome"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newFixture(t)
	f.journey.baseURL = server.URL
	client := lhttp.NewClient(lhttp.WithTimeout(5 * time.Second))

	for i := 0; i < 3; i++ {
		require.NoError(t, f.journey.Run(context.Background(), 1, client))
	}

	assert.Equal(t, int64(9), f.errs.Total())
	assert.Equal(t, int64(0), f.errs.Passes(), "checks: %+v", f.checks.Results())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, emails, 3)
	seen := make(map[string]bool)
	for _, e := range emails {
		assert.Contains(t, e, "+")
		assert.False(t, seen[e], "duplicate email %s", e)
		seen[e] = true
	}
}
