package signup

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	lhttp "github.com/wesleyorama2/signupload/internal/http"
	"github.com/wesleyorama2/signupload/internal/loadtest/check"
	"github.com/wesleyorama2/signupload/internal/loadtest/metrics"
)

// Request names used in per-request metrics.
const (
	RequestSignupPage   = "signup_page"
	RequestSignupSubmit = "signup_submit"
	RequestDashboard    = "dashboard"
)

// Custom metric names recorded by the journey.
const (
	MetricErrors       = "errors"
	MetricResponseTime = "response_time"
)

// Check names.
const (
	CheckPageLoads      = "signup page loads successfully"
	CheckPageHasForm    = "signup page contains form"
	CheckPageFast       = "signup page response time < 2s"
	CheckSubmitOK       = "signup form submission successful"
	CheckSubmitFast     = "signup response time < 3s"
	CheckNoServerErrors = "no server errors"
	CheckDashboardLoads = "success page loads"
	CheckDashboardFast  = "success page response time < 2s"
)

const (
	maxLoggedBody        = 512
	defaultThinkTimeUnit = time.Second
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options configures a Journey.
type Options struct {
	BaseURL   string
	Pool      *Pool
	Tokens    *TokenSource
	Checks    *check.Registry
	Errors    *metrics.Rate
	Latency   *metrics.Trend
	ThinkTime time.Duration
	Sleep     SleepFunc
	Logger    zerolog.Logger
	UserAgent string
}

// Journey is the signup flow one virtual user repeats: load the form,
// submit it, then visit the dashboard when the submission was accepted.
type Journey struct {
	baseURL   string
	pool      *Pool
	tokens    *TokenSource
	checks    *check.Registry
	errors    *metrics.Rate
	latency   *metrics.Trend
	thinkTime time.Duration
	sleep     SleepFunc
	logger    zerolog.Logger
	userAgent string
}

// NewJourney creates a journey. Pool, Checks, Errors and Latency are required.
func NewJourney(opts Options) (*Journey, error) {
	switch {
	case opts.BaseURL == "":
		return nil, errors.New("signup: base URL is required")
	case opts.Pool == nil:
		return nil, errors.New("signup: profile pool is required")
	case opts.Checks == nil:
		return nil, errors.New("signup: check registry is required")
	case opts.Errors == nil || opts.Latency == nil:
		return nil, errors.New("signup: errors and response_time recorders are required")
	}

	j := &Journey{
		baseURL:   opts.BaseURL,
		pool:      opts.Pool,
		tokens:    opts.Tokens,
		checks:    opts.Checks,
		errors:    opts.Errors,
		latency:   opts.Latency,
		thinkTime: opts.ThinkTime,
		sleep:     opts.Sleep,
		logger:    opts.Logger,
		userAgent: opts.UserAgent,
	}
	if j.tokens == nil {
		j.tokens = NewTokenSource(nil)
	}
	if j.thinkTime <= 0 {
		j.thinkTime = defaultThinkTimeUnit
	}
	if j.sleep == nil {
		j.sleep = Sleep
	}
	return j, nil
}

// Recorders registers the journey's custom metrics on registry.
func Recorders(registry *metrics.Registry) (*metrics.Rate, *metrics.Trend, error) {
	errs, err := registry.NewRate(MetricErrors)
	if err != nil {
		return nil, nil, err
	}
	latency, err := registry.NewTrend(MetricResponseTime)
	if err != nil {
		return nil, nil, err
	}
	return errs, latency, nil
}

// Run performs one iteration. Failed requests are failed checks, never
// errors; the returned error is only set when ctx ends the iteration early.
func (j *Journey) Run(ctx context.Context, vuID int, client lhttp.Doer) error {
	profile := j.pool.Pick()
	email := UniqueEmail(profile.Email, j.tokens.Next())
	log := j.logger.With().Int("vu", vuID).Logger()

	signupURL := lhttp.JoinURL(j.baseURL, "/Signup")

	log.Debug().Str("step", RequestSignupPage).Msg("loading signup page")
	page := client.Do(ctx, lhttp.Get(RequestSignupPage, signupURL))
	if err := ctx.Err(); err != nil {
		return err
	}

	pageOK := j.checks.Run(
		check.New(CheckPageLoads, page.StatusCode == http.StatusOK),
		check.New(CheckPageHasForm, page.BodyContains("firstName", "signup")),
		check.New(CheckPageFast, page.DurationMillis() < 2000),
	)
	j.record(pageOK, page)

	if !pageOK {
		stepEvent(log.Error(), RequestSignupPage, page).
			Str("body", page.TruncatedBody(maxLoggedBody)).
			Err(page.Error).
			Msg("failed to load signup page")
		return nil
	}

	if err := j.pause(ctx, 1); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("firstName", profile.FirstName)
	form.Set("lastName", profile.LastName)
	form.Set("email", email)
	form.Set("password", profile.Password)
	form.Set("confirmPassword", profile.ConfirmPassword)
	form.Set("terms", "on")
	form.Set("privacy", "on")

	req := lhttp.PostForm(RequestSignupSubmit, signupURL, form)
	if j.userAgent != "" {
		req.WithHeader("User-Agent", j.userAgent)
	}

	log.Debug().Str("step", RequestSignupSubmit).Str("email", email).Msg("submitting signup form")
	submit := client.Do(ctx, req)
	if err := ctx.Err(); err != nil {
		return err
	}

	accepted := submit.StatusCode == http.StatusOK || submit.StatusCode == http.StatusFound
	submitOK := j.checks.Run(
		check.New(CheckSubmitOK, accepted),
		check.New(CheckSubmitFast, submit.DurationMillis() < 3000),
	)
	j.checks.Run(check.New(CheckNoServerErrors, submit.StatusCode < 500))
	j.record(submitOK, submit)

	if !submitOK {
		stepEvent(log.Error(), RequestSignupSubmit, submit).
			Str("email", email).
			Str("body", submit.TruncatedBody(maxLoggedBody)).
			Err(submit.Error).
			Msg("signup form submission failed")
	} else {
		stepEvent(log.Info(), RequestSignupSubmit, submit).
			Str("email", email).
			Msg("signup form submitted")
	}

	if err := j.pause(ctx, 2); err != nil {
		return err
	}

	if accepted {
		dashboard := client.Do(ctx, lhttp.Get(RequestDashboard, lhttp.JoinURL(j.baseURL, "/dashboard")))
		if err := ctx.Err(); err != nil {
			return err
		}

		dashOK := j.checks.Run(
			check.New(CheckDashboardLoads, dashboard.StatusCode == http.StatusOK),
			check.New(CheckDashboardFast, dashboard.DurationMillis() < 2000),
		)
		j.record(dashOK, dashboard)

		if !dashOK {
			stepEvent(log.Warn(), RequestDashboard, dashboard).Msg("success page check failed")
		}
	}

	return j.pause(ctx, 1)
}

func (j *Journey) record(ok bool, resp *lhttp.Response) {
	j.errors.Add(!ok)
	j.latency.Add(resp.DurationMillis())
}

func (j *Journey) pause(ctx context.Context, units int) error {
	return j.sleep(ctx, time.Duration(units)*j.thinkTime)
}

func stepEvent(e *zerolog.Event, step string, resp *lhttp.Response) *zerolog.Event {
	return e.Str("step", step).
		Int("status", resp.StatusCode).
		Float64("duration_ms", resp.DurationMillis())
}
