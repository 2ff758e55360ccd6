package mcpgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kernelbox/kernelbox/pkg/types"
)

// ListTools connects to the tool server described by params, lists its
// tools and returns their metadata in a stable (name-sorted) order.
// Process-based servers are launched over stdio; URL-based servers are
// reached over the streaming HTTP transport.
func ListTools(ctx context.Context, params types.ServerParams) ([]types.ToolInfo, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "kernelbox",
		Version: "1.0.0",
	}, nil)

	transport, err := buildTransport(params)
	if err != nil {
		return nil, err
	}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to tool server: %w", err)
	}
	defer session.Close()

	var tools []types.ToolInfo
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools: %w", err)
		}
		info, err := convertTool(tool)
		if err != nil {
			return nil, fmt.Errorf("converting tool %q: %w", tool.Name, err)
		}
		tools = append(tools, info)
	}

	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools, nil
}

func buildTransport(params types.ServerParams) (mcp.Transport, error) {
	if params.Stdio() {
		cmd := exec.Command(params.Command, params.Args...)
		cmd.Env = os.Environ()
		for k, v := range params.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	}

	switch params.Type {
	case "sse":
		return &mcp.SSEClientTransport{Endpoint: params.URL}, nil
	case "streamable_http", "":
		return &mcp.StreamableClientTransport{Endpoint: params.URL}, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", params.Type)
	}
}

// convertTool maps an SDK tool to the generator's schema subset by
// round-tripping the input schema through JSON.
func convertTool(t *mcp.Tool) (types.ToolInfo, error) {
	info := types.ToolInfo{
		Name:        t.Name,
		Description: t.Description,
	}

	if t.InputSchema != nil {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			return types.ToolInfo{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		if err := json.Unmarshal(raw, &info.InputSchema); err != nil {
			return types.ToolInfo{}, fmt.Errorf("decoding input schema: %w", err)
		}
	}
	return info, nil
}
