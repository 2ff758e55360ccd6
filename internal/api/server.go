// Package api exposes the session registry over HTTP: session
// lifecycle plus code execution against a session's kernel. It is the
// host-side counterpart of the in-sandbox resource daemon.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kernelbox/kernelbox/internal/session"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
	"github.com/kernelbox/kernelbox/pkg/types"
)

// Server holds the API server dependencies.
type Server struct {
	echo     *echo.Echo
	registry *session.Registry
}

// NewServer creates an API server over the given registry.
func NewServer(registry *session.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, registry: registry}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, types.StatusResponse{Status: "ok"})
	})

	e.POST("/sessions", s.createSession)
	e.GET("/sessions", s.listSessions)
	e.DELETE("/sessions/:id", s.destroySession)
	e.POST("/sessions/:id/exec", s.execCode)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	slog.Info("session API listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) createSession(c echo.Context) error {
	sess, err := s.registry.Create(c.Request().Context())
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionInfo(sess))
}

func (s *Server) listSessions(c echo.Context) error {
	ids := s.registry.List()
	infos := make([]types.SessionInfo, 0, len(ids))
	for _, id := range ids {
		sess, err := s.registry.Get(id)
		if err != nil {
			continue // reaped between List and Get
		}
		infos = append(infos, sessionInfo(sess))
	}
	return c.JSON(http.StatusOK, infos)
}

func (s *Server) destroySession(c echo.Context) error {
	if err := s.registry.Destroy(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) execCode(c echo.Context) error {
	sess, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return httpError(c, err)
	}

	var req types.ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return httpError(c, fmt.Errorf("%w: %v", errdefs.ErrValidation, err))
	}
	if req.Code == "" {
		return httpError(c, fmt.Errorf("%w: code must not be empty", errdefs.ErrValidation))
	}

	result, err := sess.Execute(c.Request().Context(), req.Code)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, types.ExecuteResponse{
		Text:   result.Text,
		Images: result.Images,
	})
}

func sessionInfo(sess *session.Session) types.SessionInfo {
	return types.SessionInfo{ID: sess.ID(), CreatedAt: sess.CreatedAt()}
}

// httpError maps the error taxonomy onto response codes. Failed
// executions keep their kernel diagnostics; everything unclassified
// stays 500.
func httpError(c echo.Context, err error) error {
	var execErr *errdefs.ExecutionError
	if errors.As(err, &execErr) {
		return c.JSON(http.StatusUnprocessableEntity, types.ExecutionErrorResponse{
			Error: execErr.Error(),
			Trace: execErr.Trace,
		})
	}
	if errdefs.IsTimeout(err) {
		return c.JSON(http.StatusRequestTimeout, types.ErrorResponse{Error: err.Error()})
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errdefs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errdefs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errdefs.ErrState):
		status = http.StatusConflict
	}
	return c.JSON(status, types.ErrorResponse{Error: err.Error()})
}
