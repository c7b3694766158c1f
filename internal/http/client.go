package http

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"time"
)

// Doer issues a single request and always returns a Response. Transport
// failures are reported through Response.Error with a zero status.
type Doer interface {
	Do(ctx context.Context, req *Request) *Response
}

// Sink receives one data point per completed request.
type Sink interface {
	RecordRequest(name string, status int, duration time.Duration, bytes int64, err error)
}

// Client represents a virtual user's HTTP session: its own cookie jar on top
// of a transport that may be shared with other users.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	sink       Sink
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options.
//
// Redirects are never followed so callers can observe 3xx responses.
func NewClient(options ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)

	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		headers: make(map[string]string),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithTimeout sets the timeout for the client
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithTransport sets the round tripper, usually a transport shared by all VUs.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithHeader adds a header sent on every request unless the request overrides it.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithSink sets where request metrics are recorded.
func WithSink(sink Sink) ClientOption {
	return func(c *Client) {
		c.sink = sink
	}
}

// TransportConfig contains settings for the shared transport.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	InsecureSkipVerify  bool
}

// NewTransport builds a transport suitable for sharing between virtual users.
func NewTransport(cfg TransportConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = cfg.IdleConnTimeout
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for staging targets
	}
	return transport
}

// Do executes an HTTP request and returns the response with timing information.
func (c *Client) Do(ctx context.Context, req *Request) *Response {
	resp := &Response{Name: req.Name, Method: req.Method, URL: req.URL}

	httpReq, err := req.Build(ctx)
	if err != nil {
		resp.Error = err
		return resp
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	var timing TimingInfo
	var connectStart, tlsStart, wroteRequest time.Time

	trace := &httptrace.ClientTrace{
		ConnectStart: func(network, addr string) {
			connectStart = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil && !connectStart.IsZero() {
				timing.Connecting = time.Since(connectStart)
			}
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil && !tlsStart.IsZero() {
				timing.TLSHandshaking = time.Since(tlsStart)
			}
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			wroteRequest = time.Now()
		},
		GotFirstResponseByte: func() {
			if !wroteRequest.IsZero() {
				timing.Waiting = time.Since(wroteRequest)
			}
		},
	}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace))

	timing.StartTime = time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		timing.Duration = time.Since(timing.StartTime)
		resp.Timing = timing
		resp.Error = err
		c.record(resp)
		return resp
	}

	receiveStart := time.Now()
	body, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	timing.Receiving = time.Since(receiveStart)
	timing.Duration = time.Since(timing.StartTime)

	resp.StatusCode = httpResp.StatusCode
	resp.Status = httpResp.Status
	resp.Headers = httpResp.Header
	resp.Body = body
	resp.Timing = timing
	if err != nil {
		resp.Error = err
	}

	c.record(resp)
	return resp
}

func (c *Client) record(resp *Response) {
	if c.sink == nil {
		return
	}
	c.sink.RecordRequest(resp.Name, resp.StatusCode, resp.Timing.Duration, int64(len(resp.Body)), resp.Error)
}

// CloseIdleConnections releases idle connections held by the underlying transport.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

var _ Doer = (*Client)(nil)
