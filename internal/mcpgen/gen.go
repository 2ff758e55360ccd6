// Package mcpgen generates Python client modules from MCP tool
// metadata. Generation is a pure transformation: identical inputs
// produce byte-identical sources, so regenerating a server overwrites
// its previous artifacts without churn.
package mcpgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kernelbox/kernelbox/pkg/types"
)

// InitModule is the shared sibling artifact holding the server's
// connection descriptor; generated tool modules import it.
const InitModule = "_init_"

// SanitizeName converts a raw tool name into a valid Python identifier:
// lower-cased, with non-identifier characters replaced by underscores.
// Already-valid names pass through unchanged.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// GenerateTool renders the module source for one tool: a typed Params
// container derived from the tool's parameter schema and a function
// whose body delegates the invocation to the tool server.
func GenerateTool(tool types.ToolInfo) (string, error) {
	name := SanitizeName(tool.Name)

	var b strings.Builder
	b.WriteString("from dataclasses import dataclass\n")
	b.WriteString("from typing import Any, Optional\n")
	b.WriteString("\n")
	b.WriteString("from kernelbox.mcp.run import run_sync\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "from .%s import SERVER_PARAMS\n", InitModule)
	b.WriteString("\n\n")

	b.WriteString("@dataclass\n")
	b.WriteString("class Params:\n")
	fields := paramFields(tool.InputSchema)
	if len(fields) == 0 {
		b.WriteString("    pass\n")
	} else {
		for _, f := range fields {
			b.WriteString("    " + f + "\n")
		}
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "def %s(params: Params) -> str:\n", name)
	if doc := escapeDocstring(tool.Description); doc != "" {
		fmt.Fprintf(&b, "    \"\"\"%s\"\"\"\n", doc)
	}
	fmt.Fprintf(&b, "    return run_sync(%q, SERVER_PARAMS, params.__dict__)\n", tool.Name)

	return b.String(), nil
}

// GenerateInit renders the shared initializer module embedding the
// server's connection descriptor verbatim, once per server.
func GenerateInit(params types.ServerParams) string {
	var b strings.Builder
	b.WriteString("SERVER_PARAMS = {\n")
	if params.Command != "" {
		fmt.Fprintf(&b, "    'command': %s,\n", pyString(params.Command))
		fmt.Fprintf(&b, "    'args': %s,\n", pyStringList(params.Args))
		if len(params.Env) > 0 {
			b.WriteString("    'env': {\n")
			for _, k := range sortedKeys(params.Env) {
				fmt.Fprintf(&b, "        %s: %s,\n", pyString(k), pyString(params.Env[k]))
			}
			b.WriteString("    },\n")
		}
	}
	if params.URL != "" {
		fmt.Fprintf(&b, "    'url': %s,\n", pyString(params.URL))
		transport := params.Type
		if transport == "" {
			transport = "streamable_http"
		}
		fmt.Fprintf(&b, "    'type': %s,\n", pyString(transport))
	}
	b.WriteString("}\n")
	return b.String()
}

// paramFields maps schema properties to dataclass field lines. Required
// fields come first (dataclass fields without defaults must precede
// defaulted ones); within each group properties are sorted by name so
// output is stable regardless of map iteration order.
func paramFields(schema types.ToolSchema) []string {
	if len(schema.Properties) == 0 {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	var reqNames, optNames []string
	for name := range schema.Properties {
		if required[name] {
			reqNames = append(reqNames, name)
		} else {
			optNames = append(optNames, name)
		}
	}
	sort.Strings(reqNames)
	sort.Strings(optNames)

	var fields []string
	for _, name := range reqNames {
		fields = append(fields, fmt.Sprintf("%s: %s", SanitizeName(name), pyType(schema.Properties[name].Type)))
	}
	for _, name := range optNames {
		fields = append(fields, fmt.Sprintf("%s: Optional[%s] = None", SanitizeName(name), pyType(schema.Properties[name].Type)))
	}
	return fields
}

func pyType(schemaType string) string {
	switch schemaType {
	case "string":
		return "str"
	case "number":
		return "float"
	case "integer":
		return "int"
	case "boolean":
		return "bool"
	case "array":
		return "list"
	case "object":
		return "dict"
	default:
		return "Any"
	}
}

// escapeDocstring neutralizes sequences that would terminate the
// generated docstring early. Every quote is escaped: a bare quote is
// harmless mid-string but merges with the closing delimiter when the
// description ends in one.
func escapeDocstring(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.TrimSpace(s)
}

func pyString(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

func pyStringList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = pyString(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
