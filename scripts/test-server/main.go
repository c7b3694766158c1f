// Local signup target for trying signupload without a staging environment.
//
//	go run ./scripts/test-server --addr :8080 --latency 50ms --fail-rate 0.02
//	signupload run --base-url http://localhost:8080 --stages "30s:10,1m:10,30s:0"
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/signupload/internal/logging"
)

const signupPage = `<!DOCTYPE html>
<html>
<head><title>Sign up</title></head>
<body>
<form method="post" action="/Signup">
  <input name="firstName"> <input name="lastName">
  <input name="email" type="email">
  <input name="password" type="password"> <input name="confirmPassword" type="password">
  <button type="submit">Create account</button>
</form>
</body>
</html>`

type target struct {
	latency  time.Duration
	failRate float64
	logger   zerolog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	emails map[string]struct{}
}

func (t *target) slow() {
	if t.latency > 0 {
		time.Sleep(t.latency)
	}
}

func (t *target) shouldFail() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failRate > 0 && t.rng.Float64() < t.failRate
}

func (t *target) register(email string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.emails[email]; dup {
		return false
	}
	t.emails[email] = struct{}{}
	return true
}

func (t *target) signup(w http.ResponseWriter, r *http.Request) {
	t.slow()
	if t.shouldFail() {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, signupPage)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		email := r.PostForm.Get("email")
		password := r.PostForm.Get("password")
		if email == "" || password == "" || password != r.PostForm.Get("confirmPassword") {
			http.Error(w, "invalid signup", http.StatusBadRequest)
			return
		}
		if !t.register(email) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		t.logger.Debug().Str("email", email).Msg("registered")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: email, Path: "/"})
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (t *target) dashboard(w http.ResponseWriter, r *http.Request) {
	t.slow()
	if t.shouldFail() {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := r.Cookie("session"); err != nil {
		http.Redirect(w, r, "/Signup", http.StatusFound)
		return
	}
	fmt.Fprint(w, "<h1>Dashboard</h1>")
}

func main() {
	var (
		addr     string
		latency  time.Duration
		failRate float64
		logLevel string
	)

	cmd := &cobra.Command{
		Use:          "test-server",
		Short:        "Serve a minimal signup flow for local load tests",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime.GOMAXPROCS(runtime.NumCPU())

			logger, err := logging.Auto(os.Stderr, logLevel)
			if err != nil {
				return err
			}

			t := &target{
				latency:  latency,
				failRate: failRate,
				logger:   logger,
				rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
				emails:   make(map[string]struct{}),
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/Signup", t.signup)
			mux.HandleFunc("/dashboard", t.dashboard)
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "healthy")
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadTimeout:       5 * time.Second,
				WriteTimeout:      5*time.Second + latency,
				IdleTimeout:       120 * time.Second,
				MaxHeaderBytes:    1 << 20,
				ReadHeaderTimeout: 2 * time.Second,
			}

			logger.Info().
				Str("addr", addr).
				Dur("latency", latency).
				Float64("fail_rate", failRate).
				Int("cpus", runtime.NumCPU()).
				Msg("signup test server listening")
			return server.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "Delay added to every response")
	cmd.Flags().Float64Var(&failRate, "fail-rate", 0, "Fraction of requests answered with 500")
	cmd.Flags().StringVar(&logLevel, "log-level", logging.DefaultLevel, "Log level")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
