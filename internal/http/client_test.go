package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	name   string
	status int
	bytes  int64
	err    error
}

type fakeSink struct {
	mu      sync.Mutex
	records []recordedRequest
}

func (s *fakeSink) RecordRequest(name string, status int, duration time.Duration, bytes int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recordedRequest{name: name, status: status, bytes: bytes, err: err})
}

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected method GET, got %s", r.Method)
		}
		if r.URL.Path != "/Signup" {
			t.Errorf("Expected path /Signup, got %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "signupload-test" {
			t.Errorf("Expected default User-Agent, got %s", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<form id="signup"><input name="firstName"></form>`))
	}))
	defer server.Close()

	sink := &fakeSink{}
	client := NewClient(
		WithTimeout(5*time.Second),
		WithHeader("User-Agent", "signupload-test"),
		WithSink(sink),
	)

	resp := client.Do(context.Background(), Get("signup_page", JoinURL(server.URL, "/Signup")))
	if resp.Error != nil {
		t.Fatalf("Error executing request: %v", resp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if !resp.BodyContains("firstName") {
		t.Errorf("Expected body to contain firstName, got %s", resp.BodyString())
	}
	if resp.Timing.Duration <= 0 {
		t.Errorf("Expected positive duration, got %v", resp.Timing.Duration)
	}

	if len(sink.records) != 1 {
		t.Fatalf("Expected 1 recorded request, got %d", len(sink.records))
	}
	if sink.records[0].name != "signup_page" || sink.records[0].status != 200 {
		t.Errorf("Unexpected record %+v", sink.records[0])
	}
	if sink.records[0].bytes != int64(len(resp.Body)) {
		t.Errorf("Expected %d bytes recorded, got %d", len(resp.Body), sink.records[0].bytes)
	}
}

func TestClient_DoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Signup" {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	form := url.Values{"email": {"a@example.com"}}
	resp := client.Do(context.Background(), PostForm("signup_submit", JoinURL(server.URL, "Signup"), form))

	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302, got %d", resp.StatusCode)
	}
	if resp.Failed() {
		t.Error("302 should not count as a failed request")
	}
}

func TestClient_KeepsCookiesPerClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Signup":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusFound)
		case "/dashboard":
			if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client := NewClient()
	client.Do(ctx, PostForm("signup_submit", server.URL+"/Signup", url.Values{}))

	if resp := client.Do(ctx, Get("dashboard", server.URL+"/dashboard")); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected session cookie to be replayed, got status %d", resp.StatusCode)
	}

	other := NewClient()
	if resp := other.Do(ctx, Get("dashboard", server.URL+"/dashboard")); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected a fresh client to have no session, got status %d", resp.StatusCode)
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	sink := &fakeSink{}
	client := NewClient(WithTimeout(time.Second), WithSink(sink))
	resp := client.Do(context.Background(), Get("signup_page", addr+"/Signup"))

	if resp.Error == nil {
		t.Fatal("Expected a transport error")
	}
	if resp.StatusCode != 0 {
		t.Errorf("Expected status 0 on transport error, got %d", resp.StatusCode)
	}
	if !resp.Failed() {
		t.Error("Transport errors must count as failed")
	}
	if len(sink.records) != 1 || sink.records[0].err == nil {
		t.Errorf("Expected the failed request to be recorded, got %+v", sink.records)
	}
}

func TestClient_WithOptions(t *testing.T) {
	timeout := 10 * time.Second
	transport := NewTransport(TransportConfig{MaxIdleConnsPerHost: 7, InsecureSkipVerify: true})

	client := NewClient(
		WithTimeout(timeout),
		WithTransport(transport),
		WithHeader("X-Test", "test-value"),
	)

	if client.httpClient.Timeout != timeout {
		t.Errorf("Expected timeout %v, got %v", timeout, client.httpClient.Timeout)
	}
	if client.httpClient.Transport != transport {
		t.Error("Expected shared transport to be used")
	}
	if client.headers["X-Test"] != "test-value" {
		t.Errorf("Expected header X-Test: test-value, got %s", client.headers["X-Test"])
	}
	if transport.MaxIdleConnsPerHost != 7 {
		t.Errorf("Expected MaxIdleConnsPerHost 7, got %d", transport.MaxIdleConnsPerHost)
	}
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("Expected InsecureSkipVerify to be set")
	}
}
