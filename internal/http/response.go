package http

import (
	"net/http"
	"strings"
	"time"
)

// TimingInfo stores timing information for an HTTP request.
type TimingInfo struct {
	StartTime      time.Time
	Connecting     time.Duration
	TLSHandshaking time.Duration
	Waiting        time.Duration
	Receiving      time.Duration

	// Duration is the total time from sending the request until the body was fully read
	Duration time.Duration
}

// Response represents an HTTP response with timing information.
type Response struct {
	Name       string
	Method     string
	URL        string
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Timing     TimingInfo

	// Error is set when the request could not be completed
	Error error
}

// DurationMillis returns the request duration in fractional milliseconds.
func (r *Response) DurationMillis() float64 {
	return float64(r.Timing.Duration) / float64(time.Millisecond)
}

// BodyString returns the response body as a string
func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyContains reports whether the body contains any of the given substrings.
func (r *Response) BodyContains(markers ...string) bool {
	body := r.BodyString()
	for _, m := range markers {
		if strings.Contains(body, m) {
			return true
		}
	}
	return false
}

// TruncatedBody returns at most max bytes of the body, marking the cut.
func (r *Response) TruncatedBody(max int) string {
	if len(r.Body) <= max {
		return string(r.Body)
	}
	return string(r.Body[:max]) + "...(truncated)"
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect returns true if the response status code is in the 3xx range
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// IsServerError returns true if the response status code is in the 5xx range
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// Failed reports whether the request counts as failed: a transport error or a
// status outside 200-399.
func (r *Response) Failed() bool {
	return IsFailure(r.StatusCode, r.Error)
}

// IsFailure is the failure rule shared by responses and metric sinks.
func IsFailure(status int, err error) bool {
	return err != nil || status < 200 || status >= 400
}
