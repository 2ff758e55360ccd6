package resource

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	return NewServer(root), root
}

func do(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	s, _ := testServer(t)
	rec := do(t, s, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFiles_UploadCreatesParents(t *testing.T) {
	s, root := testServer(t)

	rec := do(t, s, http.MethodPut, "/files/deep/nested/hello.txt", []byte("hi there"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	data, err := os.ReadFile(filepath.Join(root, "deep", "nested", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi there", string(data))
}

func TestFiles_DownloadByteExact(t *testing.T) {
	s, root := testServer(t)
	content := []byte{0, 1, 2, 253, 254, 255}
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), content, 0o644))

	rec := do(t, s, http.MethodGet, "/files/blob.bin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestFiles_MissingIsNotFound(t *testing.T) {
	s, _ := testServer(t)

	rec := do(t, s, http.MethodGet, "/files/absent.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodDelete, "/files/absent.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFiles_Delete(t *testing.T) {
	s, root := testServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "gone.txt"), []byte("x"), 0o644))

	rec := do(t, s, http.MethodDelete, "/files/gone.txt", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := os.Stat(filepath.Join(root, "gone.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestFiles_EscapeRejected(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/files/x", nil)
	req.URL.Path = "/files/../../etc/passwd"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFiles_DirectoryRoundTrip(t *testing.T) {
	s, root := testServer(t)

	// Seed a tree server-side and download it as an archive.
	files := map[string]string{
		"pkg/a.py":     "A = 1\n",
		"pkg/sub/b.py": "B = 2\n",
		"data/raw.bin": string([]byte{9, 8, 7}),
	}
	for rel, content := range files {
		path := filepath.Join(root, "tree", filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	rec := do(t, s, http.MethodGet, "/files/tree?dir=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, archiveContentType, rec.Header().Get("Content-Type"))

	// Upload the stream to a second location; the tree must reproduce
	// byte for byte.
	req := httptest.NewRequest(http.MethodPut, "/files/copy?dir=true", bytes.NewReader(rec.Body.Bytes()))
	req.Header.Set("Content-Type", archiveContentType)
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusNoContent, rec2.Code)

	for rel, want := range files {
		data, err := os.ReadFile(filepath.Join(root, "copy", filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, want, string(data), rel)
	}
}

func TestModules_Missing(t *testing.T) {
	requirePython(t)
	s, _ := testServer(t)

	rec := do(t, s, http.MethodGet, "/modules?q=non_existent_module_123456789", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestModules_MixedValidityFailsWhole(t *testing.T) {
	requirePython(t)
	s, _ := testServer(t)

	rec := do(t, s, http.MethodGet, "/modules?q=json&q=non_existent_module_123456789", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no partial success on unresolved names")
}

func TestModules_Valid(t *testing.T) {
	requirePython(t)
	s, _ := testServer(t)

	rec := do(t, s, http.MethodGet, "/modules?q=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sources map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	assert.Contains(t, sources["json"], "import")
}

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestMCP_DescriptorWithoutCommandOrURL(t *testing.T) {
	s, _ := testServer(t)

	body := []byte(`{"env": {"KEY": "value"}}`)
	req := httptest.NewRequest(http.MethodPut, "/mcp/gen/myserver", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty descriptor is a validation error, not a connection failure")
}

func TestMCP_GetSourcesMissingServer(t *testing.T) {
	s, _ := testServer(t)
	rec := do(t, s, http.MethodGet, "/mcp/gen?server_name=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMCP_GetSourcesEmptyServerDir(t *testing.T) {
	s, root := testServer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "gen", "empty_server"), 0o755))

	rec := do(t, s, http.MethodGet, "/mcp/gen?server_name=empty_server", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestMCP_GetSources(t *testing.T) {
	s, root := testServer(t)
	dir := filepath.Join(root, "gen", "weather")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "get_weather.py"), []byte("def get_weather(): ...\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_init_.py"), []byte("SERVER_PARAMS = {}\n"), 0o644))

	rec := do(t, s, http.MethodGet, "/mcp/gen?server_name=weather", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sources map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	// The shared initializer artifact is not a tool.
	require.Len(t, sources, 1)
	assert.Contains(t, sources["get_weather"], "def get_weather")
}
