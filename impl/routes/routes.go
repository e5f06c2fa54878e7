// Package routes has the route table of the registry API. Every handler gets the shared
// State built at startup.
package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/regfront/regfront/impl/client"
	"github.com/regfront/regfront/impl/config"
	"github.com/regfront/regfront/impl/metrics"
	"github.com/regfront/regfront/impl/policy"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Backend is what the handlers need from the backend channel
type Backend interface {
	Ping(ctx context.Context) error
}

// State is shared by every request handler. None of it is mutated after startup.
type State struct {
	Backend Backend
	Config  config.RuntimeConfig
	Matcher *policy.Matcher
}

// NewState creates the handler state from the frozen configuration and the backend client
func NewState(backend Backend, cfg config.RuntimeConfig) *State {
	return &State{
		Backend: backend,
		Config:  cfg,
		Matcher: policy.New(cfg.HostNames(), cfg.Policy()),
	}
}

// registryError is an OCI distribution API error
type registryError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type registryErrors struct {
	Errors []registryError `json:"errors"`
}

// Register mounts the route table on the passed echo server
func Register(e *echo.Echo, st *State) {
	e.GET("/v2/", st.handleV2Default)
	e.HEAD("/v2/", st.handleV2Default)
	e.GET("/health", func(ctx echo.Context) error {
		return ctx.NoContent(http.StatusOK)
	})
	e.POST("/validate-image", st.handleValidateImage)
}

// GET or HEAD /v2/ answers whether the registry is usable, which requires the backend.
// A failed backend call fails only this request.
func (st *State) handleV2Default(ctx echo.Context) error {
	metrics.IncApiRequests()
	if err := st.Backend.Ping(ctx.Request().Context()); err != nil {
		var chErr *client.ChannelError
		if errors.As(err, &chErr) {
			log.Warnf("backend unavailable: %s", err)
		} else {
			log.Errorf("backend ping failed: %s", err)
		}
		if ctx.Request().Method == http.MethodHead {
			return ctx.NoContent(http.StatusServiceUnavailable)
		}
		return ctx.JSON(http.StatusServiceUnavailable, registryErrors{
			Errors: []registryError{{Code: "UNAVAILABLE", Message: "registry backend unavailable"}},
		})
	}
	if ctx.Request().Method == http.MethodHead {
		return ctx.NoContent(http.StatusOK)
	}
	return ctx.JSON(http.StatusOK, struct{}{})
}
