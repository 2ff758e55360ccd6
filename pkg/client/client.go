// Package client is the host-side SDK for the resource API served
// inside a sandbox. It speaks plain HTTP against the published resource
// port; directory transfer streams tar+gzip archives in both directions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kernelbox/kernelbox/internal/archive"
	"github.com/kernelbox/kernelbox/internal/probe"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
	"github.com/kernelbox/kernelbox/pkg/types"
)

const archiveContentType = "application/x-tar+gzip"

// Options configures a resource client.
type Options struct {
	Host  string // defaults to localhost
	Port  int
	Probe probe.Config
}

// Client is an HTTP client for the sandbox resource API.
type Client struct {
	baseURL    string
	probe      probe.Config
	httpClient *http.Client
}

// NewClient creates a resource API client. Call Connect before use.
func NewClient(opts Options) *Client {
	host := opts.Host
	if host == "" {
		host = "localhost"
	}
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, opts.Port),
		probe:      opts.Probe,
		httpClient: &http.Client{},
	}
}

// Connect waits for the resource daemon to answer its status endpoint.
// A freshly started sandbox needs a moment before the daemon is up.
func (c *Client) Connect(ctx context.Context) error {
	return probe.Run(ctx, c.probe, c.baseURL, c.Status)
}

// Status performs a single health check.
func (c *Client) Status(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/status", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// GetModuleSources returns the source code of the named importable
// modules, keyed by module name. All names must resolve or the whole
// call fails.
func (c *Client) GetModuleSources(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no module names given", errdefs.ErrValidation)
	}
	q := url.Values{}
	for _, name := range names {
		q.Add("q", name)
	}
	resp, err := c.do(ctx, http.MethodGet, "/modules?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var sources map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&sources); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return sources, nil
}

// UploadFile stores a single file at relpath under the sandbox root,
// creating parent directories as needed.
func (c *Client) UploadFile(ctx context.Context, relpath string, r io.Reader) error {
	resp, err := c.do(ctx, http.MethodPut, filePath(relpath), r, "application/octet-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

// DownloadFile streams the file at relpath into w.
func (c *Client) DownloadFile(ctx context.Context, relpath string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, filePath(relpath), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return nil
}

// DeleteFile removes the file or directory at relpath.
func (c *Client) DeleteFile(ctx context.Context, relpath string) error {
	resp, err := c.do(ctx, http.MethodDelete, filePath(relpath), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

// UploadDirectory replicates localDir at relpath under the sandbox
// root, streamed as one archive.
func (c *Client) UploadDirectory(ctx context.Context, relpath, localDir string) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(archive.Pack(pw, localDir))
	}()

	resp, err := c.do(ctx, http.MethodPut, filePath(relpath)+"?dir=true", pr, archiveContentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return apiError(resp)
	}
	return nil
}

// DownloadDirectory replicates the sandbox directory at relpath into
// localDir on the host.
func (c *Client) DownloadDirectory(ctx context.Context, relpath, localDir string) error {
	resp, err := c.do(ctx, http.MethodGet, filePath(relpath)+"?dir=true", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := os.MkdirAll(filepath.Clean(localDir), 0o755); err != nil {
		return err
	}
	return archive.Unpack(resp.Body, localDir)
}

// GenerateMCPSources connects the sandbox to the described MCP server
// and generates one importable module per tool under relpath. It
// returns the sanitized tool names.
func (c *Client) GenerateMCPSources(ctx context.Context, relpath, serverName string, params types.ServerParams) ([]string, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal server params: %w", err)
	}

	target := "/mcp/" + path.Join(escapePath(relpath), url.PathEscape(serverName))
	resp, err := c.do(ctx, http.MethodPut, target, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return names, nil
}

// GetMCPSources returns previously generated tool sources for one
// server, keyed by sanitized tool name.
func (c *Client) GetMCPSources(ctx context.Context, relpath, serverName string) (map[string]string, error) {
	q := url.Values{"server_name": []string{serverName}}
	target := "/mcp/" + escapePath(relpath) + "?" + q.Encode()
	resp, err := c.do(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var sources map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&sources); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return sources, nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrConnection, err)
	}
	return resp, nil
}

// apiError maps a non-2xx response back onto the error taxonomy,
// preserving the server's message.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	msg := strings.TrimSpace(string(data))
	var er types.ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		msg = er.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = errdefs.ErrNotFound
	case http.StatusBadRequest:
		sentinel = errdefs.ErrValidation
	case http.StatusForbidden:
		sentinel = errdefs.ErrPermission
	case http.StatusConflict:
		sentinel = errdefs.ErrState
	default:
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

func filePath(relpath string) string {
	return "/files/" + escapePath(relpath)
}

// escapePath escapes each path segment while keeping separators.
func escapePath(relpath string) string {
	segments := strings.Split(strings.Trim(relpath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
