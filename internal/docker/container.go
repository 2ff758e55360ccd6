package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ContainerConfig defines how to create a container.
type ContainerConfig struct {
	Name    string
	Image   string
	Labels  map[string]string
	Env     map[string]string
	Binds   []string          // host:container mount specs
	Publish []string          // port mappings, e.g. "0:8888/tcp" for an ephemeral host port
	User    string            // container user override, empty keeps the image default
	CapAdd  []string
	Network string // "bridge" (default), "none"
}

// CreateContainer creates a container with the given config and returns
// the container ID.
func (c *Client) CreateContainer(ctx context.Context, cfg ContainerConfig) (string, error) {
	args := []string{"create", "--name", cfg.Name}

	for k, v := range cfg.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range cfg.Env {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, v))
	}
	for _, b := range cfg.Binds {
		args = append(args, "--volume", b)
	}
	for _, p := range cfg.Publish {
		args = append(args, "--publish", p)
	}
	if cfg.User != "" {
		args = append(args, "--user", cfg.User)
	}
	for _, cap := range cfg.CapAdd {
		args = append(args, "--cap-add", cap)
	}
	if cfg.Network != "" {
		args = append(args, "--network", cfg.Network)
	}

	args = append(args, cfg.Image)

	result, err := c.Run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", cfg.Name, err)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("docker create failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	return strings.TrimSpace(result.Stdout), nil
}

// StartContainer starts a container by name or ID.
func (c *Client) StartContainer(ctx context.Context, nameOrID string) error {
	result, err := c.Run(ctx, "start", nameOrID)
	if err != nil {
		return fmt.Errorf("failed to start container %s: %w", nameOrID, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("docker start failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// RemoveContainer removes a container by name or ID. Force=true kills
// running containers.
func (c *Client) RemoveContainer(ctx context.Context, nameOrID string, force bool) error {
	args := []string{"rm"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, nameOrID)

	result, err := c.Run(ctx, args...)
	if err != nil {
		return fmt.Errorf("failed to remove container %s: %w", nameOrID, err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("docker rm failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// ContainerInfo holds inspect output for a container.
type ContainerInfo struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	State struct {
		Status    string `json:"Status"`
		Running   bool   `json:"Running"`
		StartedAt string `json:"StartedAt"`
	} `json:"State"`
	Config struct {
		Labels map[string]string `json:"Labels"`
		Image  string            `json:"Image"`
		User   string            `json:"User"`
	} `json:"Config"`
	NetworkSettings struct {
		Ports map[string][]PortBinding `json:"Ports"`
	} `json:"NetworkSettings"`
}

// PortBinding is one host-side binding of a published container port.
type PortBinding struct {
	HostIP   string `json:"HostIp"`
	HostPort string `json:"HostPort"`
}

// InspectContainer returns detailed info about a container.
func (c *Client) InspectContainer(ctx context.Context, nameOrID string) (*ContainerInfo, error) {
	var infos []ContainerInfo
	if err := c.RunJSON(ctx, &infos, "inspect", nameOrID); err != nil {
		return nil, fmt.Errorf("failed to inspect container %s: %w", nameOrID, err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("container %s not found", nameOrID)
	}
	return &infos[0], nil
}

// HostPort resolves the host port bound to a published container port.
func (c *Client) HostPort(ctx context.Context, nameOrID string, containerPort int) (int, error) {
	info, err := c.InspectContainer(ctx, nameOrID)
	if err != nil {
		return 0, err
	}
	key := fmt.Sprintf("%d/tcp", containerPort)
	bindings := info.NetworkSettings.Ports[key]
	if len(bindings) == 0 {
		return 0, fmt.Errorf("container %s: port %s not published", nameOrID, key)
	}
	port, err := strconv.Atoi(bindings[0].HostPort)
	if err != nil {
		return 0, fmt.Errorf("container %s: bad host port %q: %w", nameOrID, bindings[0].HostPort, err)
	}
	return port, nil
}
