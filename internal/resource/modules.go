package resource

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

// findModuleScript prints the source of one importable module, or exits
// with 3 when the name does not resolve to a source-backed module.
const findModuleScript = `import importlib.util, sys
try:
    spec = importlib.util.find_spec(sys.argv[1])
except (ImportError, ValueError):
    spec = None
if spec is None or spec.origin in (None, "built-in", "frozen"):
    sys.exit(3)
with open(spec.origin) as f:
    sys.stdout.write(f.read())
`

// getModules returns the full source text of every requested module.
// Any unresolved name fails the whole request; callers never see
// partial results.
func (s *Server) getModules(c echo.Context) error {
	names := c.QueryParams()["q"]
	if len(names) == 0 {
		return httpError(c, fmt.Errorf("%w: missing q parameter", errdefs.ErrValidation))
	}

	sources := make(map[string]string, len(names))
	for _, name := range names {
		source, err := moduleSource(c.Request().Context(), name)
		if err != nil {
			return httpError(c, err)
		}
		sources[name] = source
	}
	return c.JSON(http.StatusOK, sources)
}

// moduleSource resolves a module through the sandbox interpreter's own
// import machinery, so the answer matches exactly what the kernel would
// import.
func moduleSource(ctx context.Context, name string) (string, error) {
	cmd := exec.CommandContext(ctx, "python3", "-c", findModuleScript, name)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 3 {
			return "", fmt.Errorf("%w: module %q", errdefs.ErrNotFound, name)
		}
		return "", fmt.Errorf("resolving module %q: %w: %s", name, err, strings.TrimSpace(stderrOf(err)))
	}
	return string(out), nil
}

func stderrOf(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(exitErr.Stderr)
	}
	return ""
}
