// Package launcher runs the startup sequence: validate the frozen configuration, resolve TLS,
// print the banner, start the backend, connect to it, and serve the registry API until a
// termination signal arrives.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/regfront/regfront/impl/backend"
	"github.com/regfront/regfront/impl/client"
	"github.com/regfront/regfront/impl/config"
	"github.com/regfront/regfront/impl/globals"
	"github.com/regfront/regfront/impl/routes"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Phase is where the launcher is in the process lifetime
type Phase int32

const (
	Unconfigured Phase = iota
	Configured
	BackendStarting
	BackendRunning
	Serving
	Terminated
)

var phaseNames = map[Phase]string{
	Unconfigured:    "unconfigured",
	Configured:      "configured",
	BackendStarting: "backend starting",
	BackendRunning:  "backend running",
	Serving:         "serving",
	Terminated:      "terminated",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// listenerTimeout bounds the wait for the HTTP listener to come up
const listenerTimeout = 3 * time.Second

// Launcher runs the server. The zero value is not usable, use New.
type Launcher struct {
	// Entry is the backend entry point
	Entry backend.EntryPoint
	// Out receives the startup banner
	Out io.Writer
	// Signals terminate the server
	Signals []os.Signal

	phase atomic.Int32
	mu    sync.Mutex
	addr  net.Addr
}

// New returns a launcher running the default backend, printing the banner to stderr, and
// terminating on SIGINT or SIGTERM.
func New() *Launcher {
	return &Launcher{
		Entry:   backend.Serve,
		Out:     os.Stderr,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Start is the only path to running the system from a builder: it freezes the builder's
// configuration and launches it with the default launcher.
func Start(ctx context.Context, b *config.Builder) error {
	return New().Launch(ctx, b.Build())
}

// Phase returns the current phase
func (l *Launcher) Phase() Phase {
	return Phase(l.phase.Load())
}

// Addr returns the address the API server is bound to, or nil if it is not serving
func (l *Launcher) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addr
}

func (l *Launcher) setPhase(p Phase) {
	log.Debugf("launcher phase: %s", p)
	l.phase.Store(int32(p))
}

// Launch runs the startup sequence and then blocks serving requests. Any startup failure is
// returned and nothing after it runs. In dry-run mode Launch returns nil after printing the
// banner, without binding a listener or starting the backend. On a termination signal (or
// cancellation of ctx) the server is closed immediately without draining in-flight requests,
// and Launch returns nil.
func (l *Launcher) Launch(ctx context.Context, cfg config.RuntimeConfig) error {
	l.setPhase(Configured)
	if err := cfg.Validate(); err != nil {
		return err
	}
	tlsCfg, err := globals.ParseTls(cfg.Tls())
	if err != nil {
		return err
	}
	l.printBanner(cfg)
	if cfg.DryRun() {
		log.Info("dry run, exiting")
		l.setPhase(Terminated)
		return nil
	}

	l.setPhase(BackendStarting)
	backendCtx, stopBackend := context.WithCancel(ctx)
	defer stopBackend()
	backendAddr := cfg.BackendAddr()
	handle, err := backend.NewSupervisor(l.Entry).Start(backendCtx, cfg.DataDir(), backendAddr.Host, backendAddr.Port)
	if err != nil {
		return err
	}
	cl, err := client.Connect(backendAddr.Host, backendAddr.Port)
	if err != nil {
		return err
	}
	defer cl.Close()
	l.setPhase(BackendRunning)

	sigCtx, stop := signal.NotifyContext(ctx, l.Signals...)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(ApiVersionHeader())
	e.Use(globals.GetEchoLoggingFunc())
	routes.Register(e, routes.NewState(cl, cfg))

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Addr().String()
		if tlsCfg != nil {
			// echo's own TLS server, so that e.Close reaches it
			e.TLSServer.Addr = addr
			e.TLSServer.TLSConfig = tlsCfg
			errCh <- e.StartServer(e.TLSServer)
		} else {
			errCh <- e.Start(addr)
		}
	}()
	addr, err := waitForEchoListener(e, tlsCfg != nil, errCh)
	if err != nil {
		l.setPhase(Terminated)
		return fmt.Errorf("unable to start the server on %s: %w", cfg.Addr(), err)
	}
	l.mu.Lock()
	l.addr = addr
	l.mu.Unlock()
	l.setPhase(Serving)
	log.Infof("server is running on %s", addr)

	backendDone := handle.Done()
	for {
		select {
		case <-backendDone:
			log.Errorf("backend is no longer running (state: %s), requests that need it will fail", handle.State())
			backendDone = nil
		case <-sigCtx.Done():
			log.Info("termination signal caught, shutting down")
			e.Close()
			l.setPhase(Terminated)
			return nil
		case err := <-errCh:
			l.setPhase(Terminated)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server stopped: %w", err)
		}
	}
}

// ApiVersionHeader stamps the registry API version header on every response, replacing
// whatever the handler set.
func ApiVersionHeader() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			res := c.Response()
			res.Before(func() {
				res.Header().Set(globals.ApiVersionHeader, globals.ApiVersion)
			})
			return next(c)
		}
	}
}

// waitForEchoListener waits for the listener in the Echo server to be initialized, which
// supports starting the server on port zero. If the server fails to start, its error is
// returned.
func waitForEchoListener(e *echo.Echo, useTls bool, errCh <-chan error) (net.Addr, error) {
	timeout := time.After(listenerTimeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		var addr net.Addr
		if useTls {
			addr = e.TLSListenerAddr()
		} else {
			addr = e.ListenerAddr()
		}
		if addr != nil {
			return addr, nil
		}
		select {
		case err := <-errCh:
			return nil, err
		case <-timeout:
			return nil, errors.New("timed out waiting for the listener")
		case <-ticker.C:
		}
	}
}
