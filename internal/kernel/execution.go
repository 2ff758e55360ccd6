package kernel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

// Result is the folded view of one execution's output events.
type Result struct {
	// Text is the concatenation of all stream chunks, trimmed once
	// after the final chunk. Empty means the code produced no output.
	Text string

	// Images holds every image payload, decoded from its wire
	// encoding, in emission order. Never nil.
	Images [][]byte

	raw []string
}

// HasOutput reports whether the execution produced any text.
func (r *Result) HasOutput() bool { return r.Text != "" }

// jsonReader is the part of the websocket connection the event fold
// needs; tests substitute a scripted reader.
type jsonReader interface {
	ReadJSON(v any) error
}

// Execution is the handle for one submitted code cell. Stream yields
// raw output chunks as they arrive; Result blocks until the kernel is
// idle again. Stream is forward-only and single-pass: once consumption
// has begun it cannot be restarted, and concurrent consumers must
// serialize among themselves.
type Execution struct {
	client *Client
	conn   jsonReader
	msgID  string

	mu       sync.Mutex
	chunks   []string
	images   [][]byte
	execErr  *errdefs.ExecutionError
	finished bool
	readErr  error

	notify chan struct{}
	done   chan struct{}

	streamOnce sync.Once
	stream     chan string
}

// Submit sends code to the kernel and returns immediately with an
// execution handle. The connection supports one reader at a time, so
// Submit first waits for the previous execution's event stream to run
// dry. That covers a timed-out execution: the interrupt makes the
// kernel finish the aborted request, after which the next Submit
// proceeds. Concurrent Submit calls are a caller error.
func (c *Client) Submit(ctx context.Context, code string) (*Execution, error) {
	c.mu.Lock()
	conn := c.conn
	session := c.session
	prev := c.exec
	c.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("%w: kernel client not connected", errdefs.ErrState)
	}
	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	msg := newMessage(session, msgExecuteRequest, executeRequestContent{
		Code:            code,
		StoreHistory:    true,
		UserExpressions: map[string]any{},
		StopOnError:     true,
	})

	x := &Execution{
		client: c,
		conn:   conn,
		msgID:  msg.Header.MsgID,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	if err := c.writeMessage(msg); err != nil {
		return nil, fmt.Errorf("submitting execution: %w", err)
	}

	c.mu.Lock()
	c.exec = x
	c.mu.Unlock()

	go x.drain()
	return x, nil
}

func (x *Execution) doneCh() <-chan struct{} { return x.done }

// drain reads protocol events for this execution until the kernel
// reports idle and the execute reply has arrived, folding them as they
// pass. Events correlated to other requests are ignored.
func (x *Execution) drain() {
	defer close(x.done)

	var sawIdle, sawReply bool
	for !(sawIdle && sawReply) {
		var in message
		if err := x.conn.ReadJSON(&in); err != nil {
			x.mu.Lock()
			x.readErr = fmt.Errorf("reading kernel events: %w", err)
			x.finish()
			x.mu.Unlock()
			return
		}
		if in.ParentHeader.MsgID != x.msgID {
			continue
		}

		switch in.Header.MsgType {
		case msgStream:
			var sc streamContent
			if err := json.Unmarshal(in.Content, &sc); err == nil {
				x.addChunk(sc.Text)
			}

		case msgDisplayData, msgExecuteResult:
			var dc displayContent
			if err := json.Unmarshal(in.Content, &dc); err == nil {
				x.addImage(dc)
			}

		case msgError:
			var ec errorContent
			if err := json.Unmarshal(in.Content, &ec); err == nil {
				x.setError(ec.Name, ec.Value, ec.Traceback)
			}

		case msgExecuteReply:
			var rc replyContent
			if err := json.Unmarshal(in.Content, &rc); err == nil && rc.Status == "error" {
				x.setError(rc.Name, rc.Value, rc.Traceback)
			}
			sawReply = true

		case msgStatus:
			var st statusContent
			if err := json.Unmarshal(in.Content, &st); err == nil && st.ExecutionState == "idle" {
				sawIdle = true
			}
		}
	}

	x.mu.Lock()
	x.finish()
	x.mu.Unlock()
}

func (x *Execution) addChunk(text string) {
	x.mu.Lock()
	x.chunks = append(x.chunks, text)
	x.mu.Unlock()
	x.wake()
}

func (x *Execution) addImage(dc displayContent) {
	raw, ok := dc.Data["image/png"]
	if !ok {
		return
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return
	}
	x.mu.Lock()
	x.images = append(x.images, decoded)
	x.mu.Unlock()
}

func (x *Execution) setError(name, value string, traceback []string) {
	x.mu.Lock()
	if x.execErr == nil {
		x.execErr = &errdefs.ExecutionError{
			Name:  name,
			Value: value,
			Trace: strings.Join(traceback, "\n"),
		}
	}
	x.mu.Unlock()
}

// finish marks the fold complete. Callers hold x.mu.
func (x *Execution) finish() {
	x.finished = true
	x.wake()
}

func (x *Execution) wake() {
	select {
	case x.notify <- struct{}{}:
	default:
	}
}

// Stream returns the raw output chunks in arrival order. The channel is
// closed when the execution completes; errors are reported by Result.
func (x *Execution) Stream() <-chan string {
	x.streamOnce.Do(func() {
		out := make(chan string)
		x.stream = out
		go func() {
			defer close(out)
			i := 0
			for {
				x.mu.Lock()
				for i < len(x.chunks) {
					chunk := x.chunks[i]
					i++
					x.mu.Unlock()
					out <- chunk
					x.mu.Lock()
				}
				finished := x.finished
				x.mu.Unlock()
				if finished {
					return
				}
				<-x.notify
			}
		}()
	})
	return x.stream
}

// Result blocks until the execution completes and returns the folded
// aggregate. Remote exceptions surface as *errdefs.ExecutionError with
// the kernel's diagnostics preserved verbatim.
func (x *Execution) Result(ctx context.Context) (*Result, error) {
	select {
	case <-x.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.readErr != nil {
		return nil, x.readErr
	}
	if x.execErr != nil {
		return nil, x.execErr
	}

	images := x.images
	if images == nil {
		images = [][]byte{}
	}
	return &Result{
		Text:   strings.TrimSpace(strings.Join(x.chunks, "")),
		Images: images,
		raw:    x.chunks,
	}, nil
}
