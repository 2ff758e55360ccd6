package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelbox/kernelbox/internal/kernel"
	"github.com/kernelbox/kernelbox/internal/session"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
	"github.com/kernelbox/kernelbox/pkg/types"
)

type scriptedBackend struct{}

func (b *scriptedBackend) Execute(ctx context.Context, code string) (*kernel.Result, error) {
	switch code {
	case "2/0":
		return nil, &errdefs.ExecutionError{
			Name:  "ZeroDivisionError",
			Value: "division by zero",
			Trace: "Traceback (most recent call last):\nZeroDivisionError: division by zero",
		}
	case "while True: pass":
		return nil, &errdefs.TimeoutError{Op: "execute", Timeout: time.Second}
	default:
		return &kernel.Result{Text: "ran " + code, Images: [][]byte{}}, nil
	}
}

func (b *scriptedBackend) Close(ctx context.Context) error { return nil }

func testAPI(t *testing.T) *Server {
	t.Helper()
	reg, err := session.NewRegistry(session.Options{
		Start: func(ctx context.Context, id string) (session.Backend, error) {
			return &scriptedBackend{}, nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return NewServer(reg)
}

func do(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var info types.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.NotEmpty(t, info.ID)
	return info.ID
}

func TestHealth(t *testing.T) {
	s := testAPI(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	s := testAPI(t)
	id := createSession(t, s)

	rec := do(t, s, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []types.SessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)

	rec = do(t, s, http.MethodDelete, "/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExec(t *testing.T) {
	s := testAPI(t)
	id := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/sessions/"+id+"/exec", types.ExecuteRequest{Code: "print('hi')"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ran print('hi')", resp.Text)
	assert.NotNil(t, resp.Images)
}

func TestExec_UnknownSession(t *testing.T) {
	s := testAPI(t)
	rec := do(t, s, http.MethodPost, "/sessions/nope/exec", types.ExecuteRequest{Code: "x = 1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExec_EmptyCode(t *testing.T) {
	s := testAPI(t)
	id := createSession(t, s)
	rec := do(t, s, http.MethodPost, "/sessions/"+id+"/exec", types.ExecuteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExec_ExecutionError(t *testing.T) {
	s := testAPI(t)
	id := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/sessions/"+id+"/exec", types.ExecuteRequest{Code: "2/0"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp types.ExecutionErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ZeroDivisionError: division by zero", resp.Error)
	assert.Contains(t, resp.Trace, "Traceback")
}

func TestExec_Timeout(t *testing.T) {
	s := testAPI(t)
	id := createSession(t, s)
	rec := do(t, s, http.MethodPost, "/sessions/"+id+"/exec", types.ExecuteRequest{Code: "while True: pass"})
	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
}
