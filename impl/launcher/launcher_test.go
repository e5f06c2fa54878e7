package launcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/regfront/regfront/impl/backend"
	"github.com/regfront/regfront/impl/config"
	"github.com/regfront/regfront/impl/globals"
	"github.com/regfront/regfront/impl/testutil"

	"github.com/labstack/echo/v4"
)

type spawnArgs struct {
	dataDir string
	host    string
	port    uint16
}

// recordingEntry returns an entry point that records its arguments and then blocks
// until its context is cancelled
func recordingEntry(calls chan<- spawnArgs) backend.EntryPoint {
	return func(ctx context.Context, dataDir string, host string, port uint16) error {
		calls <- spawnArgs{dataDir, host, port}
		<-ctx.Done()
		return nil
	}
}

func newTestLauncher(entry backend.EntryPoint) (*Launcher, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Launcher{Entry: entry, Out: out, Signals: []os.Signal{syscall.SIGUSR1}}, out
}

func newBuilder(dataDir string, port uint16, backendPort uint16, dryRun bool) *config.Builder {
	return config.NewBuilder(dataDir,
		config.AddressSpec{Host: "127.0.0.1", Port: port},
		config.AddressSpec{Host: "127.0.0.1", Port: backendPort},
		[]string{"registry.local"},
		[]string{"docker.io/library/"}, []string{"quay.io/coreos/etcd:v3.5.0"},
		[]string{"secret/"}, []string{"team/app:bad"},
		dryRun)
}

// unusedPort returns a port nothing is listening on
func unusedPort(t *testing.T) uint16 {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.FailNow()
	}
	defer lis.Close()
	return uint16(lis.Addr().(*net.TCPAddr).Port)
}

// launch runs Launch in a goroutine and waits for the server to be serving
func launch(t *testing.T, l *Launcher, cfg config.RuntimeConfig) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Launch(ctx, cfg)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for l.Phase() != Serving {
		select {
		case err := <-errCh:
			cancel()
			t.Fatalf("launch returned early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("timed out waiting for the server")
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Cleanup(cancel)
	return cancel, errCh
}

// waitReturn waits for Launch to return and returns its error
func waitReturn(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("launch did not return")
	}
	return nil
}

// Dry run prints the banner and returns without binding or spawning the backend
func TestDryRun(t *testing.T) {
	calls := make(chan spawnArgs, 1)
	l, out := newTestLauncher(recordingEntry(calls))
	port := unusedPort(t)
	err := l.Launch(context.Background(), newBuilder(t.TempDir(), port, 51000, true).Build())
	if err != nil {
		t.Fatalf("dry run should succeed: %s", err)
	}
	if len(calls) != 0 {
		t.Error("backend spawned in dry run")
	}
	if l.Addr() != nil || l.Phase() != Terminated {
		t.Error("server should not have been started")
	}
	// nothing should be listening on the port
	if conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second); err == nil {
		conn.Close()
		t.Error("dry run bound a listener")
	}
	banner := out.String()
	facts := []string{fmt.Sprintf("127.0.0.1:%d", port), `"registry.local"`, `"docker.io/library/"`,
		`"quay.io/coreos/etcd:v3.5.0"`, `"secret/"`, `"team/app:bad"`}
	last := -1
	for _, fact := range facts {
		idx := strings.Index(banner, fact)
		if idx <= last {
			t.Errorf("banner is missing %s or has it out of order:\n%s", fact, banner)
		}
		last = idx
	}
}

// The backend is spawned once with the configured arguments, then the API is served
// and every response carries the API version header. Cancellation stops the server.
func TestLaunchScenario(t *testing.T) {
	calls := make(chan spawnArgs, 2)
	l, _ := newTestLauncher(recordingEntry(calls))
	dataDir := t.TempDir()
	cancel, errCh := launch(t, l, newBuilder(dataDir, 0, 51000, false).Build())

	got := <-calls
	if got != (spawnArgs{dataDir, "127.0.0.1", 51000}) {
		t.Errorf("unexpected backend args: %+v", got)
	}
	if len(calls) != 0 {
		t.Error("more than one backend spawned")
	}

	// nothing listens on the backend port, so /v2/ fails but the server keeps serving
	base := fmt.Sprintf("http://%s", l.Addr())
	for _, path := range []string{"/v2/", "/health", "/no-such-route"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %s", path, err)
		}
		resp.Body.Close()
		if resp.Header.Get(globals.ApiVersionHeader) != globals.ApiVersion {
			t.Errorf("GET %s: missing API version header", path)
		}
		if path == "/v2/" && resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected 503 without a backend, got %d", resp.StatusCode)
		}
	}

	cancel()
	if err := waitReturn(t, errCh); err != nil {
		t.Errorf("expected nil on shutdown, got %s", err)
	}
	if l.Phase() != Terminated {
		t.Error("expected terminated phase")
	}
}

// With the real backend, /v2/ succeeds through the channel
func TestLaunchWithBackend(t *testing.T) {
	l, _ := newTestLauncher(backend.Serve)
	dataDir := filepath.Join(t.TempDir(), "data")
	cancel, errCh := launch(t, l, newBuilder(dataDir, 0, unusedPort(t), false).Build())

	url := fmt.Sprintf("http://%s/v2/", l.Addr())
	deadline := time.Now().Add(5 * time.Second)
	status := 0
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close()
			if status == http.StatusOK {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if status != http.StatusOK {
		t.Errorf("expected 200 from /v2/, got %d", status)
	}
	if _, err := os.Stat(filepath.Join(dataDir, backend.BlobsDir)); err != nil {
		t.Error("backend did not create the data directory layout")
	}
	cancel()
	waitReturn(t, errCh)
}

// With TLS material the server serves HTTPS
func TestLaunchTls(t *testing.T) {
	certs, err := testutil.WriteServerCerts(t.TempDir())
	if err != nil {
		t.FailNow()
	}
	calls := make(chan spawnArgs, 1)
	l, out := newTestLauncher(recordingEntry(calls))
	b := newBuilder(t.TempDir(), 0, 51000, false).WithTls(certs.CertFile, certs.KeyFile)
	cancel, errCh := launch(t, l, b.Build())

	httpClient := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: certs.CaPool}}}
	resp, err := httpClient.Get(fmt.Sprintf("https://%s/health", l.Addr()))
	if err != nil {
		t.Fatalf("https request failed: %s", err)
	}
	resp.Body.Close()
	if resp.TLS == nil || resp.StatusCode != http.StatusOK {
		t.Error("expected a TLS response")
	}
	if !strings.Contains(out.String(), "cert="+certs.CertFile) {
		t.Error("banner should describe the TLS material")
	}
	addr := l.Addr().String()
	cancel()
	if err := waitReturn(t, errCh); err != nil {
		t.Errorf("expected nil on shutdown, got %s", err)
	}
	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Error("TLS server still accepting connections after shutdown")
	}
}

// Startup failures are returned and nothing after them runs
func TestLaunchFailures(t *testing.T) {
	td := t.TempDir()
	aFile := filepath.Join(td, "file")
	os.WriteFile(aFile, []byte("x"), 0600)

	var cfgErr *config.ConfigurationError
	var spawnErr *backend.SpawnError
	tests := []struct {
		name   string
		cfg    config.RuntimeConfig
		nilEnt bool
		check  func(error) bool
	}{
		{"bad TLS files", newBuilder(td, 0, 51000, false).WithTls(td+"/no.crt", td+"/no.key").Build(), false,
			func(err error) bool { return errors.As(err, &cfgErr) }},
		{"bad TLS files in dry run", newBuilder(td, 0, 51000, true).WithTls(td+"/no.crt", td+"/no.key").Build(), false,
			func(err error) bool { return errors.As(err, &cfgErr) }},
		{"data dir is a file", newBuilder(aFile, 0, 51000, false).Build(), false,
			func(err error) bool { return errors.As(err, &cfgErr) }},
		{"no backend entry point", newBuilder(td, 0, 51000, false).Build(), true,
			func(err error) bool { return errors.As(err, &spawnErr) }},
	}
	for _, test := range tests {
		calls := make(chan spawnArgs, 1)
		l, _ := newTestLauncher(recordingEntry(calls))
		if test.nilEnt {
			l.Entry = nil
		}
		err := l.Launch(context.Background(), test.cfg)
		if !test.check(err) {
			t.Errorf("%s: unexpected error %v", test.name, err)
		}
		if len(calls) != 0 {
			t.Errorf("%s: backend should not have been spawned", test.name)
		}
		if l.Addr() != nil {
			t.Errorf("%s: server should not be serving", test.name)
		}
	}
}

// A port that is already in use fails the launch
func TestLaunchBindFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.FailNow()
	}
	defer lis.Close()
	port := uint16(lis.Addr().(*net.TCPAddr).Port)
	calls := make(chan spawnArgs, 1)
	l, _ := newTestLauncher(recordingEntry(calls))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Launch(ctx, newBuilder(t.TempDir(), port, 51000, false).Build()); err == nil {
		t.Error("expected a bind error")
	}
}

// A termination signal stops the server and Launch returns nil
func TestSignalShutdown(t *testing.T) {
	calls := make(chan spawnArgs, 1)
	l, _ := newTestLauncher(recordingEntry(calls))
	_, errCh := launch(t, l, newBuilder(t.TempDir(), 0, 51000, false).Build())
	addr := l.Addr().String()
	if err := syscall.Kill(os.Getpid(), syscall.SIGUSR1); err != nil {
		t.FailNow()
	}
	if err := waitReturn(t, errCh); err != nil {
		t.Errorf("expected nil after signal, got %s", err)
	}
	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		conn.Close()
		t.Error("server still accepting connections after shutdown")
	}
}

// A backend that stops does not take the server down
func TestBackendExitKeepsServing(t *testing.T) {
	exited := make(chan struct{})
	l, _ := newTestLauncher(func(context.Context, string, string, uint16) error {
		close(exited)
		return errors.New("backend crashed")
	})
	cancel, errCh := launch(t, l, newBuilder(t.TempDir(), 0, unusedPort(t), false).Build())
	<-exited
	time.Sleep(50 * time.Millisecond)
	resp, err := http.Get(fmt.Sprintf("http://%s/v2/", l.Addr()))
	if err != nil {
		t.Fatalf("server stopped after the backend exited: %s", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
	cancel()
	waitReturn(t, errCh)
}

// The version header replaces whatever the handler set
func TestApiVersionHeaderOverrides(t *testing.T) {
	e := echo.New()
	e.Use(ApiVersionHeader())
	e.GET("/", func(c echo.Context) error {
		c.Response().Header().Set(globals.ApiVersionHeader, "registry/1.0")
		return c.String(http.StatusOK, "ok")
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Values(globals.ApiVersionHeader); len(got) != 1 || got[0] != globals.ApiVersion {
		t.Errorf("unexpected header values %v", got)
	}
}

func TestPhaseString(t *testing.T) {
	if Serving.String() != "serving" || Phase(42).String() != "phase(42)" {
		t.Fail()
	}
}
