// Package kernel implements the client side of the kernel messaging
// protocol spoken by the execution port of a sandbox. The interactive
// kernel behind the gateway is a black-box peer: this package creates
// kernels, submits code, folds the event stream into results, and
// interrupts on timeout. It never looks inside the kernel.
package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kernelbox/kernelbox/internal/probe"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

// DefaultExecuteTimeout bounds Execute when the caller passes none.
const DefaultExecuteTimeout = 120 * time.Second

// Options configures a kernel client.
type Options struct {
	Host  string // defaults to "localhost"
	Port  int    // required: host port of the execution endpoint
	Probe probe.Config
}

// Client is a connected kernel session. Each Connect creates a fresh
// kernel: two clients on the same sandbox never share interpreter state.
// A kernel processes one execution at a time; callers must not submit
// overlapping executions on one client.
type Client struct {
	host  string
	port  int
	probe probe.Config
	http  *http.Client

	mu       sync.Mutex
	kernelID string
	session  string
	conn     *websocket.Conn
	exec     *Execution
	writeMu  sync.Mutex
}

// NewClient creates a disconnected kernel client.
func NewClient(opts Options) *Client {
	host := opts.Host
	if host == "" {
		host = "localhost"
	}
	return &Client{
		host:  host,
		port:  opts.Port,
		probe: opts.Probe,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) baseURL() string {
	return fmt.Sprintf("http://%s:%d", c.host, c.port)
}

// Connect waits for the gateway to become reachable, creates a kernel
// and attaches the channels websocket. Exhausting the readiness budget
// surfaces as a ConnectionError.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("%w: kernel client already connected", errdefs.ErrState)
	}

	endpoint := fmt.Sprintf("%s:%d", c.host, c.port)
	err := probe.Run(ctx, c.probe, endpoint, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/api", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("gateway status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return err
	}

	kernelID, err := c.createKernel(ctx)
	if err != nil {
		return err
	}

	wsURL := fmt.Sprintf("ws://%s:%d/api/kernels/%s/channels", c.host, c.port, kernelID)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		_ = c.deleteKernel(context.WithoutCancel(ctx), kernelID)
		return fmt.Errorf("dialing kernel channels: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	c.kernelID = kernelID
	c.session = uuid.New().String()
	c.conn = conn

	// A kernel_info round trip confirms the kernel behind the fresh
	// websocket is actually processing messages.
	if err := c.awaitKernelInfo(ctx); err != nil {
		conn.Close()
		_ = c.deleteKernel(context.WithoutCancel(ctx), kernelID)
		c.conn = nil
		c.kernelID = ""
		return err
	}

	slog.Debug("kernel connected", "kernel_id", kernelID, "port", c.port)
	return nil
}

// Close detaches the channel and deletes the kernel. Safe to call on a
// disconnected client.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.conn.Close()
	err := c.deleteKernel(ctx, c.kernelID)
	c.conn = nil
	c.kernelID = ""
	c.exec = nil
	return err
}

func (c *Client) createKernel(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"name": "python"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api/kernels", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating kernel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("creating kernel (status %d): %s", resp.StatusCode, msg)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding kernel response: %w", err)
	}
	return created.ID, nil
}

func (c *Client) deleteKernel(ctx context.Context, kernelID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/kernels/%s", c.baseURL(), kernelID), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deleting kernel %s: %w", kernelID, err)
	}
	resp.Body.Close()
	return nil
}

// Interrupt requests that the kernel abort its in-progress execution.
// Best-effort: the kernel's state is left wherever the interrupt lands.
func (c *Client) Interrupt(ctx context.Context) error {
	c.mu.Lock()
	kernelID := c.kernelID
	c.mu.Unlock()
	if kernelID == "" {
		return fmt.Errorf("%w: kernel client not connected", errdefs.ErrState)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/kernels/%s/interrupt", c.baseURL(), kernelID), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("interrupting kernel %s: %w", kernelID, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) awaitKernelInfo(ctx context.Context) error {
	msg := newMessage(c.session, msgKernelInfoReq, map[string]any{})
	if err := c.writeMessage(msg); err != nil {
		return err
	}

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for {
		_ = c.conn.SetReadDeadline(deadline)
		var in message
		if err := c.conn.ReadJSON(&in); err != nil {
			return fmt.Errorf("awaiting kernel info: %w", err)
		}
		if in.Header.MsgType == msgKernelInfoReply && in.ParentHeader.MsgID == msg.Header.MsgID {
			_ = c.conn.SetReadDeadline(time.Time{})
			return nil
		}
	}
}

func (c *Client) writeMessage(msg outMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Execute submits code and blocks until the kernel returns to idle,
// bounded by DefaultExecuteTimeout.
func (c *Client) Execute(ctx context.Context, code string) (*Result, error) {
	return c.ExecuteWithTimeout(ctx, code, DefaultExecuteTimeout)
}

// ExecuteWithTimeout submits code and blocks until the kernel returns to
// idle or the timeout elapses. On timeout it interrupts the kernel and
// returns a TimeoutError; any partial side effects of the interrupted
// code remain visible to later executions on this client.
func (c *Client) ExecuteWithTimeout(ctx context.Context, code string, timeout time.Duration) (*Result, error) {
	exec, err := c.Submit(ctx, code)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-exec.doneCh():
		return exec.Result(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		if err := c.Interrupt(ctx); err != nil {
			slog.Warn("interrupt after timeout failed", "error", err)
		}
		return nil, &errdefs.TimeoutError{Op: "execute", Timeout: timeout}
	}
}
