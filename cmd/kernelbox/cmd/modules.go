package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules <name>...",
	Short: "Print the source of importable modules inside the sandbox",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := resourceClient(cmd)
		if err != nil {
			return err
		}
		sources, err := c.GetModuleSources(context.Background(), args)
		if err != nil {
			return fmt.Errorf("failed to fetch module sources: %w", err)
		}
		for _, name := range args {
			fmt.Printf("# %s\n%s\n", name, sources[name])
		}
		return nil
	},
}

func init() {
	modulesCmd.Flags().Int("port", 0, "published resource port of the sandbox")
	rootCmd.AddCommand(modulesCmd)
}
