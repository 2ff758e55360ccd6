package types

import (
	"fmt"

	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

// ServerParams is the connection descriptor for an external MCP tool
// server. Exactly one of Command (stdio transport, process launched
// inside the sandbox) or URL (streamable HTTP transport) must be set.
type ServerParams struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	URL  string `json:"url,omitempty"`
	Type string `json:"type,omitempty"` // "streamable_http" (default) or "sse"
}

// Stdio reports whether the descriptor addresses a process-based server.
func (p ServerParams) Stdio() bool { return p.Command != "" }

// Validate checks that the descriptor names a reachable server. A
// descriptor lacking both a command and a URL is a validation error,
// not a connection failure.
func (p ServerParams) Validate() error {
	if p.Command == "" && p.URL == "" {
		return fmt.Errorf("%w: server params need either a command or a url", errdefs.ErrValidation)
	}
	return nil
}

// ToolSchema is the subset of JSON Schema the tool-code generator
// consumes: an object schema with typed properties and a required list.
type ToolSchema struct {
	Type       string                 `json:"type,omitempty"`
	Properties map[string]PropSchema  `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// PropSchema describes a single tool parameter.
type PropSchema struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// ToolInfo is the per-tool metadata listed from a tool server.
type ToolInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema ToolSchema `json:"inputSchema"`
}
