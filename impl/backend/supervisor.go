// Package backend starts the storage backend in its own goroutine and reports what happens
// to it. The backend is reached only through the network channel in package client.
package backend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/regfront/regfront/impl/metrics"

	log "github.com/sirupsen/logrus"
)

// EntryPoint runs a backend serving the passed data directory on host:port. It is not
// expected to return under normal operation.
type EntryPoint func(ctx context.Context, dataDir string, host string, port uint16) error

// State is the state of a started backend
type State int32

const (
	// the entry point has not returned
	Running State = iota
	// the entry point returned without an error
	Exited
	// the entry point returned an error or panicked
	Failed
	// the entry point returned nil after ctx was cancelled
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// SpawnError is returned when the backend cannot be started
type SpawnError struct {
	Msg string
}

func (e *SpawnError) Error() string {
	return "unable to start backend: " + e.Msg
}

// Handle tracks one started backend
type Handle struct {
	done  chan struct{}
	state atomic.Int32
	err   error
}

// Done is closed when the backend entry point returns
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

// Err returns the error the entry point returned. It is only meaningful once Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Supervisor starts a backend at most once. There is no restart policy.
type Supervisor struct {
	entry   EntryPoint
	mu      sync.Mutex
	started bool
}

func NewSupervisor(entry EntryPoint) *Supervisor {
	return &Supervisor{entry: entry}
}

// Start runs the entry point in a new goroutine with the passed arguments and returns
// immediately. If the entry point returns while ctx is still live, that is logged as an
// anomaly and the handle moves to Exited or Failed. Returning nil after ctx is cancelled is
// a clean shutdown and moves the handle to Stopped.
func (s *Supervisor) Start(ctx context.Context, dataDir string, host string, port uint16) (*Handle, error) {
	if s.entry == nil {
		return nil, &SpawnError{Msg: "no backend entry point"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, &SpawnError{Msg: "backend already started"}
	}
	s.started = true

	log.Debugf("starting backend: data dir %s, listen %s:%d", dataDir, host, port)
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		err := s.run(ctx, dataDir, host, port)
		h.err = err
		if err == nil && ctx.Err() != nil {
			log.Info("backend stopped")
			h.state.Store(int32(Stopped))
			return
		}
		state := Exited
		if err != nil {
			state = Failed
			log.Errorf("backend failed: %s", err)
		} else {
			log.Error("backend exited unexpectedly")
		}
		h.state.Store(int32(state))
		metrics.IncBackendExits(state.String())
	}()
	return h, nil
}

// run calls the entry point, converting a panic into an error
func (s *Supervisor) run(ctx context.Context, dataDir string, host string, port uint16) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panicked: %v", r)
		}
	}()
	return s.entry(ctx, dataDir, host, port)
}
