// Package resource implements the HTTP service on the sandbox's
// resource port: file transfer, module-source retrieval and MCP tool
// code generation. It runs inside the container, next to the kernel, so
// the sources it writes land on the same filesystem the kernel imports
// from.
package resource

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kernelbox/kernelbox/pkg/errdefs"
	"github.com/kernelbox/kernelbox/pkg/types"
)

// DefaultRootDir is where generated and transferred files live inside
// the sandbox; it is on the kernel's import path.
const DefaultRootDir = "/app"

// Server serves the resource API.
type Server struct {
	echo *echo.Echo
	root string
}

// NewServer creates a resource server rooted at rootDir.
func NewServer(rootDir string) *Server {
	if rootDir == "" {
		rootDir = DefaultRootDir
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, root: rootDir}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())

	e.GET("/status", s.status)
	e.GET("/modules", s.getModules)

	e.PUT("/files/*", s.putFile)
	e.GET("/files/*", s.getFile)
	e.DELETE("/files/*", s.deleteFile)

	e.PUT("/mcp/*", s.generateMCP)
	e.GET("/mcp/*", s.getMCPSources)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	slog.Info("resource server listening", "addr", addr, "root", s.root)
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

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, types.StatusResponse{Status: "ok"})
}

// httpError maps the error taxonomy onto response codes; unclassified
// errors stay 500.
func httpError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errdefs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errdefs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errdefs.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, errdefs.ErrState):
		status = http.StatusConflict
	}
	return c.JSON(status, types.ErrorResponse{Error: err.Error()})
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	})
}
