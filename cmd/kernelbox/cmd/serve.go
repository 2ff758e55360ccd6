package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kernelbox/kernelbox/internal/api"
	"github.com/kernelbox/kernelbox/internal/container"
	"github.com/kernelbox/kernelbox/internal/docker"
	"github.com/kernelbox/kernelbox/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API over HTTP",
	Long: `Start the host-side session API. Each created session launches its
own sandbox container with a connected kernel; sessions idle past the
configured timeout are reaped. All sessions are torn down on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		image, _ := cmd.Flags().GetString("image")

		if image == "" {
			image = cfg.Image
		}

		client, err := docker.NewClient()
		if err != nil {
			return err
		}
		registry, err := session.NewRegistry(session.Options{
			MaxSessions: cfg.MaxSessions,
			IdleTimeout: time.Duration(cfg.IdleTimeoutSec) * time.Second,
			Start: session.ContainerStarter(client, container.Options{Image: image},
				time.Duration(cfg.ExecuteTimeoutSec)*time.Second),
		})
		if err != nil {
			return err
		}

		srv := api.NewServer(registry)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(fmt.Sprintf(":%d", port))
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		select {
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig.String())
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				_ = registry.Close(context.Background())
				return err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("server shutdown failed", "error", err)
		}
		return registry.Close(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "listen port for the session API")
	serveCmd.Flags().String("image", "", "sandbox image (default from KERNELBOX_IMAGE)")
	rootCmd.AddCommand(serveCmd)
}
