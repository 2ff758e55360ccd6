package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kernelbox/kernelbox/internal/container"
	"github.com/kernelbox/kernelbox/internal/docker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a sandbox and block until interrupted",
	Long: `Start a sandbox container, print its published ports and keep it
running until SIGINT or SIGTERM. The container is removed on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")
		binds, _ := cmd.Flags().GetStringArray("bind")
		env, _ := cmd.Flags().GetStringToString("env")
		allowed, _ := cmd.Flags().GetStringSlice("allow")

		if image == "" {
			image = cfg.Image
		}

		client, err := docker.NewClient()
		if err != nil {
			return err
		}
		box := container.New(client, container.Options{
			Image: image,
			Binds: binds,
			Env:   env,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()
		if err := box.Run(ctx); err != nil {
			return fmt.Errorf("failed to start sandbox: %w", err)
		}

		if cmd.Flags().Changed("allow") {
			if err := box.InitFirewall(ctx, allowed); err != nil {
				_ = box.Kill(context.Background())
				return fmt.Errorf("failed to init firewall: %w", err)
			}
		}

		executorPort, err := box.ExecutorPort()
		if err != nil {
			return err
		}
		resourcePort, err := box.ResourcePort()
		if err != nil {
			return err
		}

		fmt.Printf("✓ Sandbox started: %s\n", box.ID())
		fmt.Printf("  Executor port: %d\n", executorPort)
		fmt.Printf("  Resource port: %d\n", resourcePort)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		fmt.Println("Stopping sandbox...")
		return box.Kill(context.Background())
	},
}

func init() {
	runCmd.Flags().String("image", "", "sandbox image (default from KERNELBOX_IMAGE)")
	runCmd.Flags().StringArray("bind", nil, "host:container bind mount (repeatable)")
	runCmd.Flags().StringToString("env", nil, "environment variables for the container")
	runCmd.Flags().StringSlice("allow", nil, "restrict egress to these hosts (empty = block all)")
	rootCmd.AddCommand(runCmd)
}
