package http

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one outgoing request of a journey step.
type Request struct {
	// Name tags the request in per-request metrics
	Name    string
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// NewRequest creates a new HTTP request
func NewRequest(method, rawURL string) *Request {
	return &Request{
		Method:  method,
		URL:     rawURL,
		Headers: make(map[string]string),
	}
}

// Get is shorthand for a named GET request.
func Get(name, rawURL string) *Request {
	return NewRequest(http.MethodGet, rawURL).WithName(name)
}

// PostForm builds a named POST with a form-encoded body.
func PostForm(name, rawURL string, form url.Values) *Request {
	return NewRequest(http.MethodPost, rawURL).
		WithName(name).
		WithHeader("Content-Type", "application/x-www-form-urlencoded").
		WithBody(form.Encode())
}

// WithName sets the metric name of the request
func (r *Request) WithName(name string) *Request {
	r.Name = name
	return r
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body string) *Request {
	r.Body = body
	return r
}

// Build constructs an http.Request bound to ctx.
func (r *Request) Build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// JoinURL appends path to base, keeping exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
