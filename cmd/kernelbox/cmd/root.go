package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/kernelbox/kernelbox/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kernelbox",
	Short: "Run code execution sandboxes from the command line",
	Long: `kernelbox manages containerized code execution sandboxes.

Each sandbox runs an IPython kernel gateway and a resource daemon.
Commands talk to the published ports of a running sandbox to execute
code, transfer files and generate MCP tool bindings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.SlogLevel(),
			TimeFormat: time.TimeOnly,
		})))
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
