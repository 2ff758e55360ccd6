package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kernelbox/kernelbox/internal/kernel"
)

var execCmd = &cobra.Command{
	Use:   "exec [code]",
	Short: "Execute code in a running sandbox",
	Long: `Execute code against the kernel gateway of a running sandbox and
print the captured output. Code is read from the argument, or from
stdin when no argument is given. Generated images are written as PNG
files when --save-images is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		timeoutSec, _ := cmd.Flags().GetInt("timeout")
		imagesDir, _ := cmd.Flags().GetString("save-images")

		var code string
		if len(args) == 1 {
			code = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			code = string(data)
		}

		if timeoutSec <= 0 {
			timeoutSec = cfg.ExecuteTimeoutSec
		}

		kc := kernel.NewClient(kernel.Options{Port: port})
		ctx := context.Background()
		if err := kc.Connect(ctx); err != nil {
			return err
		}
		defer kc.Close(context.Background())

		result, err := kc.ExecuteWithTimeout(ctx, code, time.Duration(timeoutSec)*time.Second)
		if err != nil {
			return err
		}

		if result.Text != "" {
			fmt.Println(result.Text)
		}
		if imagesDir != "" {
			if err := os.MkdirAll(imagesDir, 0o755); err != nil {
				return err
			}
			for i, img := range result.Images {
				path := filepath.Join(imagesDir, fmt.Sprintf("image_%d.png", i))
				if err := os.WriteFile(path, img, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "saved %s\n", path)
			}
		}
		return nil
	},
}

func init() {
	execCmd.Flags().Int("port", 0, "published executor port of the sandbox")
	execCmd.Flags().Int("timeout", 0, "execution timeout in seconds")
	execCmd.Flags().String("save-images", "", "directory to write generated PNG images to")
	_ = execCmd.MarkFlagRequired("port")
	rootCmd.AddCommand(execCmd)
}
