package types

import "time"

// SessionInfo describes one live sandbox session.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExecuteRequest carries code to run in a session.
type ExecuteRequest struct {
	Code string `json:"code"`
}

// ExecuteResponse is the folded output of one execution. Images are
// base64-encoded PNG payloads in emission order.
type ExecuteResponse struct {
	Text   string   `json:"text"`
	Images [][]byte `json:"images"`
}

// ExecutionErrorResponse reports a failed execution with the kernel's
// diagnostics preserved verbatim.
type ExecutionErrorResponse struct {
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}
