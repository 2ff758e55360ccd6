package resource

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kernelbox/kernelbox/internal/mcpgen"
	"github.com/kernelbox/kernelbox/internal/metrics"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
	"github.com/kernelbox/kernelbox/pkg/types"
)

// generateMCP connects to the described tool server, generates one
// module per tool under {relpath}/{server} and returns the sanitized
// tool names in order.
func (s *Server) generateMCP(c echo.Context) error {
	wildcard := strings.Trim(c.Param("*"), "/")
	relpath, serverName := path.Split(wildcard)
	relpath = strings.Trim(relpath, "/")
	if relpath == "" || serverName == "" {
		return httpError(c, fmt.Errorf("%w: expected /mcp/{relpath}/{server_name}", errdefs.ErrValidation))
	}

	var params types.ServerParams
	if err := c.Bind(&params); err != nil {
		return httpError(c, fmt.Errorf("%w: %v", errdefs.ErrValidation, err))
	}
	if err := params.Validate(); err != nil {
		return httpError(c, err)
	}

	tools, err := mcpgen.ListTools(c.Request().Context(), params)
	if err != nil {
		return httpError(c, err)
	}

	dir, err := s.resolve(path.Join(relpath, mcpgen.SanitizeName(serverName)))
	if err != nil {
		return httpError(c, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return httpError(c, err)
	}

	// The connection descriptor is written once per server, shared by
	// every generated tool module.
	initPath := filepath.Join(dir, mcpgen.InitModule+".py")
	if err := os.WriteFile(initPath, []byte(mcpgen.GenerateInit(params)), 0o644); err != nil {
		return httpError(c, err)
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		source, err := mcpgen.GenerateTool(tool)
		if err != nil {
			return httpError(c, err)
		}
		name := mcpgen.SanitizeName(tool.Name)
		if err := os.WriteFile(filepath.Join(dir, name+".py"), []byte(source), 0o644); err != nil {
			return httpError(c, err)
		}
		names = append(names, name)
	}

	metrics.MCPGenerations.Inc()
	return c.JSON(http.StatusOK, names)
}

// getMCPSources returns previously generated sources for one server as
// a name→source mapping. An existing server directory with no generated
// modules yields an empty mapping; a missing directory is a 404.
func (s *Server) getMCPSources(c echo.Context) error {
	relpath := strings.Trim(c.Param("*"), "/")
	serverName := c.QueryParam("server_name")
	if serverName == "" {
		return httpError(c, fmt.Errorf("%w: missing server_name parameter", errdefs.ErrValidation))
	}

	dir, err := s.resolve(path.Join(relpath, mcpgen.SanitizeName(serverName)))
	if err != nil {
		return httpError(c, err)
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return httpError(c, fmt.Errorf("%w: server %q under %q", errdefs.ErrNotFound, serverName, relpath))
	}
	if err != nil {
		return httpError(c, err)
	}

	sources := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".py") {
			continue
		}
		tool := strings.TrimSuffix(name, ".py")
		if tool == mcpgen.InitModule {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return httpError(c, err)
		}
		sources[tool] = string(data)
	}
	return c.JSON(http.StatusOK, sources)
}
