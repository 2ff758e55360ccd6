package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kernelbox/kernelbox/pkg/client"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Transfer files to and from a running sandbox",
}

var filesPutCmd = &cobra.Command{
	Use:   "put <local> <remote>",
	Short: "Upload a file or directory into the sandbox",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := resourceClient(cmd)
		if err != nil {
			return err
		}
		local, remote := args[0], args[1]

		info, err := os.Stat(local)
		if err != nil {
			return err
		}

		ctx := context.Background()
		if info.IsDir() {
			if err := c.UploadDirectory(ctx, remote, local); err != nil {
				return fmt.Errorf("failed to upload directory: %w", err)
			}
		} else {
			f, err := os.Open(local)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := c.UploadFile(ctx, remote, f); err != nil {
				return fmt.Errorf("failed to upload file: %w", err)
			}
		}
		fmt.Printf("✓ Uploaded %s -> %s\n", local, remote)
		return nil
	},
}

var filesGetCmd = &cobra.Command{
	Use:   "get <remote> <local>",
	Short: "Download a file or directory from the sandbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("expected <remote> <local>")
		}
		c, err := resourceClient(cmd)
		if err != nil {
			return err
		}
		remote, local := args[0], args[1]
		dir, _ := cmd.Flags().GetBool("dir")

		ctx := context.Background()
		if dir {
			if err := c.DownloadDirectory(ctx, remote, local); err != nil {
				return fmt.Errorf("failed to download directory: %w", err)
			}
		} else {
			f, err := os.Create(local)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := c.DownloadFile(ctx, remote, f); err != nil {
				return fmt.Errorf("failed to download file: %w", err)
			}
		}
		fmt.Printf("✓ Downloaded %s -> %s\n", remote, local)
		return nil
	},
}

var filesRmCmd = &cobra.Command{
	Use:   "rm <remote>",
	Short: "Delete a file or directory in the sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := resourceClient(cmd)
		if err != nil {
			return err
		}
		if err := c.DeleteFile(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete: %w", err)
		}
		fmt.Printf("✓ Deleted %s\n", args[0])
		return nil
	},
}

// resourceClient builds a connected client from the --port flag.
func resourceClient(cmd *cobra.Command) (*client.Client, error) {
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		return nil, fmt.Errorf("--port is required")
	}
	c := client.NewClient(client.Options{Port: port})
	if err := c.Connect(cmd.Context()); err != nil {
		return nil, err
	}
	return c, nil
}

func init() {
	filesCmd.PersistentFlags().Int("port", 0, "published resource port of the sandbox")
	filesGetCmd.Flags().Bool("dir", false, "download a directory instead of a single file")
	filesCmd.AddCommand(filesPutCmd, filesGetCmd, filesRmCmd)
	rootCmd.AddCommand(filesCmd)
}
