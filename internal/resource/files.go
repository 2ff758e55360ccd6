package resource

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kernelbox/kernelbox/internal/archive"
	"github.com/kernelbox/kernelbox/internal/metrics"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

// archiveContentType marks a request or response body as a tar+gzip
// directory stream rather than a single file.
const archiveContentType = "application/x-tar+gzip"

// resolve maps a request path onto the served root, rejecting escapes.
func (s *Server) resolve(rel string) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(rel))
	if target != filepath.Clean(s.root) &&
		!strings.HasPrefix(target, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path %q escapes the served root", errdefs.ErrValidation, rel)
	}
	return target, nil
}

func isArchiveRequest(c echo.Context) bool {
	return c.QueryParam("dir") == "true" || c.Request().Header.Get("Content-Type") == archiveContentType
}

func (s *Server) putFile(c echo.Context) error {
	target, err := s.resolve(c.Param("*"))
	if err != nil {
		return httpError(c, err)
	}

	if isArchiveRequest(c) {
		if err := archive.Unpack(c.Request().Body, target); err != nil {
			return httpError(c, err)
		}
		metrics.FilesTransferred.WithLabelValues("upload").Inc()
		return c.NoContent(http.StatusNoContent)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return httpError(c, err)
	}
	f, err := os.Create(target)
	if err != nil {
		return httpError(c, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, c.Request().Body); err != nil {
		return httpError(c, err)
	}

	metrics.FilesTransferred.WithLabelValues("upload").Inc()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getFile(c echo.Context) error {
	target, err := s.resolve(c.Param("*"))
	if err != nil {
		return httpError(c, err)
	}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return httpError(c, fmt.Errorf("%w: %s", errdefs.ErrNotFound, c.Param("*")))
	}
	if err != nil {
		return httpError(c, err)
	}

	metrics.FilesTransferred.WithLabelValues("download").Inc()

	if info.IsDir() {
		c.Response().Header().Set(echo.HeaderContentType, archiveContentType)
		c.Response().WriteHeader(http.StatusOK)
		return archive.Pack(c.Response(), target)
	}
	return c.File(target)
}

func (s *Server) deleteFile(c echo.Context) error {
	target, err := s.resolve(c.Param("*"))
	if err != nil {
		return httpError(c, err)
	}

	if _, err := os.Stat(target); os.IsNotExist(err) {
		return httpError(c, fmt.Errorf("%w: %s", errdefs.ErrNotFound, c.Param("*")))
	}
	if err := os.RemoveAll(target); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
