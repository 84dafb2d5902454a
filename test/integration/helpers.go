// Package integration drives a full daemon over the wire. The tests here
// boot the real service (HTTP listener, config watcher, flush loop) rather
// than an in-process handler, so startup and shutdown paths are covered
// alongside the API surface.
package integration

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tierd/internal/service"
	"github.com/fyrsmithlabs/tierd/pkg/client"
)

// startTestDaemon boots a tierd service on a free localhost port and
// returns a client pointed at it plus the base URL. Shutdown runs through
// t.Cleanup and must complete without error.
func startTestDaemon(t *testing.T, mode string) (*client.Client, string) {
	t.Helper()

	dir := t.TempDir()
	port := freePort(t)

	// The rate limit is raised so a fast test loop never trips it, and the
	// read cache is on so answers exercise it.
	body := fmt.Sprintf(`engine:
  mode: %s
store:
  root: %s
  cache_entries: 64
stats:
  path: %s
server:
  host: 127.0.0.1
  port: %d
  rate_limit_rps: 1000
logging:
  level: error
  format: console
`, mode, filepath.Join(dir, "corpus"), filepath.Join(dir, "stats.json"), port)

	cfgPath := filepath.Join(dir, "config.yaml")
	// The loader rejects group- and world-writable files, so the mode is 0600.
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	svc, err := service.New(ctx, cfgPath, "integration-test")
	require.NoError(t, err, "Should create service")

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("daemon shutdown returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("daemon did not shut down within 5s")
		}
	})

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitForHealthy(t, baseURL)

	c, err := client.New(baseURL)
	require.NoError(t, err, "Should create client")

	return c, baseURL
}

// freePort reserves a localhost port and releases it for the daemon to
// bind. The window between Close and the bind is a race; a lost race shows
// up as a startup failure.
func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "Should reserve a port")
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

func waitForHealthy(t *testing.T, baseURL string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("daemon did not become healthy within 5s")
}

// httpGet fetches a URL and returns the body as a string.
func httpGet(t *testing.T, url string) string {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err, "Should fetch "+url)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "Should read response body")

	return string(body)
}
