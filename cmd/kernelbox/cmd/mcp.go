package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kernelbox/kernelbox/pkg/types"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Generate and inspect MCP tool bindings in a sandbox",
}

var mcpGenerateCmd = &cobra.Command{
	Use:   "generate <relpath> <server-name>",
	Short: "Generate one importable module per tool of an MCP server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := resourceClient(cmd)
		if err != nil {
			return err
		}

		command, _ := cmd.Flags().GetString("command")
		cmdArgs, _ := cmd.Flags().GetStringArray("arg")
		env, _ := cmd.Flags().GetStringToString("env")
		serverURL, _ := cmd.Flags().GetString("url")
		serverType, _ := cmd.Flags().GetString("type")

		params := types.ServerParams{
			Command: command,
			Args:    cmdArgs,
			Env:     env,
			URL:     serverURL,
			Type:    serverType,
		}

		names, err := c.GenerateMCPSources(context.Background(), args[0], args[1], params)
		if err != nil {
			return fmt.Errorf("failed to generate tool bindings: %w", err)
		}

		fmt.Printf("✓ Generated %d tool(s) for %s:\n", len(names), args[1])
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
		return nil
	},
}

var mcpShowCmd = &cobra.Command{
	Use:   "show <relpath> <server-name>",
	Short: "Print previously generated tool sources",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := resourceClient(cmd)
		if err != nil {
			return err
		}

		sources, err := c.GetMCPSources(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to fetch tool sources: %w", err)
		}
		if len(sources) == 0 {
			fmt.Println("No generated tools found")
			return nil
		}
		for name, source := range sources {
			fmt.Printf("# %s\n%s\n", name, source)
		}
		return nil
	},
}

func init() {
	mcpCmd.PersistentFlags().Int("port", 0, "published resource port of the sandbox")
	mcpGenerateCmd.Flags().String("command", "", "stdio server launch command")
	mcpGenerateCmd.Flags().StringArray("arg", nil, "argument for the launch command (repeatable)")
	mcpGenerateCmd.Flags().StringToString("env", nil, "environment for the launched server")
	mcpGenerateCmd.Flags().String("url", "", "HTTP server URL (streamable or SSE)")
	mcpGenerateCmd.Flags().String("type", "", "HTTP transport type: streamable_http or sse")
	mcpCmd.AddCommand(mcpGenerateCmd, mcpShowCmd)
	rootCmd.AddCommand(mcpCmd)
}
