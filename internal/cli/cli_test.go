package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/signupload/internal/loadtest/config"
)

func signupServer(t *testing.T, pageStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/Signup", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		w.WriteHeader(pageStatus)
		_, _ = w.Write([]byte(`<form id="signup"><input name="firstName"></form>`))
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("welcome"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func execute(args ...string) (code int, stdout, stderr string) {
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	code = run(root, args, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunOptions_Defaults(t *testing.T) {
	cfg, err := (&runOptions{}).testConfig()
	require.NoError(t, err)

	assert.Equal(t, config.ProfileBaseline, cfg.Profile)
	assert.Len(t, cfg.Stages, 3)
	assert.Contains(t, cfg.Thresholds, "errors")
}

func TestRunOptions_StagesOverrideProfile(t *testing.T) {
	opts := &runOptions{
		profile:   config.ProfileStress,
		stages:    "10s:5,10s:0",
		baseURL:   "http://localhost:8080",
		seed:      9,
		thinkTime: 50 * time.Millisecond,
		name:      "smoke",
	}
	cfg, err := opts.testConfig()
	require.NoError(t, err)

	assert.Equal(t, "smoke", cfg.Name)
	assert.Len(t, cfg.Stages, 2)
	assert.Equal(t, []string{"p(95)<5000"}, cfg.Thresholds["http_req_duration"], "profile thresholds are kept")
	assert.Empty(t, cfg.Metadata.DurationText, "stale profile duration text is dropped")
	assert.Equal(t, int64(9), cfg.Seed)
	assert.Equal(t, 50*time.Millisecond, time.Duration(cfg.ThinkTime))

	_, err = (&runOptions{stages: "oops"}).testConfig()
	assert.Error(t, err)

	_, err = (&runOptions{profile: "soak"}).testConfig()
	assert.Error(t, err)
}

func TestRunOptions_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: file-run
baseUrl: http://localhost:9999
stages:
  - duration: 1s
    target: 1
thresholds:
  errors: ["rate<0.5"]
`), 0644))

	cfg, err := (&runOptions{configFile: path, reportsDir: "out"}).testConfig()
	require.NoError(t, err)

	assert.Equal(t, "file-run", cfg.Name)
	assert.Equal(t, "", cfg.Profile, "a config file without a profile stands alone")
	assert.Equal(t, map[string][]string{"errors": {"rate<0.5"}}, cfg.Thresholds)
	assert.Equal(t, "out", cfg.ReportsDir)

	_, err = (&runOptions{configFile: filepath.Join(t.TempDir(), "missing.yaml")}).testConfig()
	assert.Error(t, err)
}

func TestRunCommand_Passes(t *testing.T) {
	server := signupServer(t, http.StatusOK)
	dir := t.TempDir()

	code, stdout, stderr := execute("run",
		"--base-url", server.URL,
		"--stages", "200ms:2,200ms:0",
		"--think-time", "5ms",
		"--graceful-stop", "5s",
		"--reports-dir", dir,
		"--name", "smoke",
		"--seed", "1",
		"--log-level", "error",
		"--quiet",
	)

	require.Equal(t, 0, code, "stdout: %s\nstderr: %s", stdout, stderr)
	assert.Equal(t, "PASSED", strings.TrimSpace(stdout))

	assert.FileExists(t, filepath.Join(dir, "smoke_test_results.json"))
	assert.FileExists(t, filepath.Join(dir, "smoke_test_summary.html"))
}

func TestRunCommand_FailedThresholdsExitNonZero(t *testing.T) {
	server := signupServer(t, http.StatusServiceUnavailable)

	code, stdout, stderr := execute("run",
		"--base-url", server.URL,
		"--stages", "200ms:1,100ms:0",
		"--think-time", "5ms",
		"--no-report",
		"--log-level", "error",
		"--quiet",
	)

	assert.Equal(t, 1, code)
	assert.Equal(t, "FAILED", strings.TrimSpace(stdout))
	assert.NotContains(t, stderr, "Error:", "a failed threshold is not reported as an error")
}

func TestRunCommand_InvalidFlags(t *testing.T) {
	code, _, stderr := execute("run", "--log-level", "loud", "--no-report")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid log level")

	code, _, stderr = execute("run", "--base-url", "ftp://nowhere", "--no-report")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "baseUrl")
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	results := filepath.Join(dir, "baseline_test_results.json")
	require.NoError(t, os.WriteFile(results, []byte(`{
  "name": "baseline",
  "metrics": {
    "http_reqs": {"type": "counter", "values": {"count": 1000}},
    "http_req_failed": {"type": "rate", "values": {"passes": 5, "fails": 995, "rate": 0.005}},
    "http_req_duration": {"type": "trend", "values": {"avg": 120, "p(95)": 300, "p(99)": 900}}
  },
  "root_group": {"checks": []},
  "passed": true
}`), 0644))

	code, stdout, stderr := execute("report", results)
	require.Equal(t, 0, code, stderr)

	html := filepath.Join(dir, "baseline_test_summary.html")
	assert.Contains(t, stdout, html)

	content, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(content), "0.50%")

	custom := filepath.Join(dir, "custom.html")
	code, _, _ = execute("report", results, "-o", custom, "--title", "Nightly")
	require.Equal(t, 0, code)
	content, err = os.ReadFile(custom)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<title>Nightly</title>")
}

func TestReportCommand_InvalidResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"metrics": []}`), 0644))

	code, _, stderr := execute("report", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid results file")

	code, _, _ = execute("report")
	assert.Equal(t, 1, code)
}

func TestProfilesCommand(t *testing.T) {
	code, stdout, _ := execute("profiles")
	require.Equal(t, 0, code)

	for _, want := range []string{
		"baseline - Baseline Load Test",
		"stress - Stress Test",
		"spike - Spike Test",
		"Max VUs:    1000",
		"http_req_duration p(95)<2000",
	} {
		assert.Contains(t, stdout, want)
	}
}

func TestDefaultReportPath(t *testing.T) {
	assert.Equal(t, "reports/baseline_test_summary.html", defaultReportPath("reports/baseline_test_results.json"))
	assert.Equal(t, "out/run.html", defaultReportPath("out/run.json"))
}
