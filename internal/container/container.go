// Package container manages one isolated container per execution
// session: lifecycle, port publishing, mounts, environment, and the
// firewall entry point.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kernelbox/kernelbox/internal/docker"
	"github.com/kernelbox/kernelbox/internal/firewall"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

const (
	labelPrefix  = "kernelbox"
	labelID      = labelPrefix + ".id"
	labelCreated = labelPrefix + ".created"

	containerName = "kbx"

	// Ports the in-container services listen on. The kernel gateway
	// and the resource daemon are published to ephemeral host ports.
	executorContainerPort = 8888
	resourceContainerPort = 8900

	DefaultImage = "ghcr.io/kernelbox/kernelbox"
)

// Options configures a new execution container.
type Options struct {
	Image string
	Binds []string          // host:container mount specs
	Env   map[string]string // environment inside the container
}

// ExecutionContainer is one sandbox session: a single container exposing
// an execution port (kernel gateway) and a resource port (resource
// daemon). Exactly one container backs a session; Kill destroys it.
type ExecutionContainer struct {
	docker *docker.Client
	opts   Options

	mu           sync.Mutex
	name         string
	id           string
	running      bool
	executorPort int
	resourcePort int
}

// New creates an unstarted execution container.
func New(client *docker.Client, opts Options) *ExecutionContainer {
	if opts.Image == "" {
		opts.Image = DefaultImage
	}
	return &ExecutionContainer{docker: client, opts: opts}
}

// Run creates and starts the container and resolves the published host
// ports. It fails with ErrState when the session is already running. On
// any later failure the container is removed again so sessions are never
// leaked half-started.
func (c *ExecutionContainer) Run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("%w: container already running", errdefs.ErrState)
	}

	exists, err := c.docker.ImageExists(ctx, c.opts.Image)
	if err != nil {
		return err
	}
	if !exists {
		slog.Info("pulling sandbox image", "image", c.opts.Image)
		if err := c.docker.PullImage(ctx, c.opts.Image); err != nil {
			return err
		}
	}

	id := uuid.New().String()[:8]
	name := fmt.Sprintf("%s-%s", containerName, id)

	cfg := docker.ContainerConfig{
		Name:  name,
		Image: c.opts.Image,
		Labels: map[string]string{
			labelID:      id,
			labelCreated: time.Now().Format(time.RFC3339),
		},
		Env:   c.opts.Env,
		Binds: c.opts.Binds,
		Publish: []string{
			fmt.Sprintf("127.0.0.1::%d", executorContainerPort),
			fmt.Sprintf("127.0.0.1::%d", resourceContainerPort),
		},
		// iptables inside the container needs NET_ADMIN; the rules
		// themselves are only installable via the controlled sudo path.
		CapAdd: []string{"NET_ADMIN"},
	}

	if _, err := c.docker.CreateContainer(ctx, cfg); err != nil {
		return fmt.Errorf("failed to create sandbox container: %w", err)
	}
	if err := c.docker.StartContainer(ctx, name); err != nil {
		_ = c.docker.RemoveContainer(ctx, name, true)
		return fmt.Errorf("failed to start sandbox container: %w", err)
	}

	executorPort, err := c.docker.HostPort(ctx, name, executorContainerPort)
	if err == nil {
		c.resourcePort, err = c.docker.HostPort(ctx, name, resourceContainerPort)
	}
	if err != nil {
		_ = c.docker.RemoveContainer(ctx, name, true)
		return fmt.Errorf("failed to resolve published ports: %w", err)
	}

	c.name = name
	c.id = id
	c.executorPort = executorPort
	c.running = true

	slog.Info("sandbox started", "id", id,
		"executor_port", c.executorPort, "resource_port", c.resourcePort)
	return nil
}

// Kill terminates and removes the container and releases its ports.
// Killing an already-stopped session is a no-op.
func (c *ExecutionContainer) Kill(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	if err := c.docker.RemoveContainer(ctx, c.name, true); err != nil {
		return err
	}
	slog.Info("sandbox killed", "id", c.id)
	c.running = false
	c.executorPort = 0
	c.resourcePort = 0
	return nil
}

// ID returns the session identifier, or "" before Run.
func (c *ExecutionContainer) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// ExecutorPort returns the host port of the kernel gateway.
func (c *ExecutionContainer) ExecutorPort() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0, fmt.Errorf("%w: container not running", errdefs.ErrState)
	}
	return c.executorPort, nil
}

// ResourcePort returns the host port of the resource daemon.
func (c *ExecutionContainer) ResourcePort() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0, fmt.Errorf("%w: container not running", errdefs.ErrState)
	}
	return c.resourcePort, nil
}

// InitFirewall restricts egress from the running container to the given
// domains and IPs. See firewall.Controller for the guarantees.
func (c *ExecutionContainer) InitFirewall(ctx context.Context, allowed []string) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return fmt.Errorf("%w: container not running", errdefs.ErrState)
	}
	name := c.name
	c.mu.Unlock()

	return firewall.NewController(c.docker, name).Activate(ctx, allowed)
}
