// Package firewall installs an egress allow-list inside a running
// container. Rules are applied with iptables via docker exec; the
// container must not run as unconstrained root, because root inside the
// container could simply flush the rules again.
package firewall

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/kernelbox/kernelbox/internal/docker"
	"github.com/kernelbox/kernelbox/pkg/errdefs"
)

// Controller applies egress filtering to one container.
type Controller struct {
	docker    *docker.Client
	container string
}

// NewController creates a firewall controller for a container.
func NewController(client *docker.Client, container string) *Controller {
	return &Controller{docker: client, container: container}
}

// Activate installs the egress allow-list. Loopback traffic always
// stays permitted so the in-container services remain reachable; all
// other egress is rejected with an ICMP net-unreachable, which sandboxed
// code observes as "Network is unreachable". An empty allow-list blocks
// all non-loopback egress.
//
// Returns ErrState when the container is not running and ErrPermission,
// with no rules installed, when the container runs as root.
func (f *Controller) Activate(ctx context.Context, allowed []string) error {
	info, err := f.docker.InspectContainer(ctx, f.container)
	if err != nil {
		return fmt.Errorf("%w: container %s not running", errdefs.ErrState, f.container)
	}
	if !info.State.Running {
		return fmt.Errorf("%w: container %s not running", errdefs.ErrState, f.container)
	}

	uid, err := f.docker.ExecSimple(ctx, f.container, "id", "-u")
	if err != nil {
		return fmt.Errorf("checking container user: %w", err)
	}
	if strings.TrimSpace(uid) == "0" {
		return fmt.Errorf("%w: firewall rules are bypassable inside a root container", errdefs.ErrPermission)
	}

	script := Script(allowed)
	slog.Debug("activating firewall", "container", f.container, "allowed", allowed)

	// iptables needs CAP_NET_ADMIN; the sandbox image grants the
	// non-root user sudo for exactly this script.
	result, err := f.docker.ExecInContainer(ctx, docker.ExecConfig{
		Container: f.container,
		Command:   []string{"sudo", "sh", "-c", script},
	})
	if err != nil {
		return fmt.Errorf("applying firewall rules: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("applying firewall rules (exit %d): %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// Script builds the shell script that installs the egress allow-list.
// The script is a pure function of the allow-list so rule generation is
// testable without a container.
func Script(allowed []string) string {
	var b strings.Builder

	b.WriteString("set -e\n")
	b.WriteString("iptables -F OUTPUT\n")
	b.WriteString("iptables -F INPUT\n")

	// Loopback must keep working for the executor and resource ports.
	b.WriteString("iptables -A OUTPUT -o lo -j ACCEPT\n")
	b.WriteString("iptables -A INPUT -i lo -j ACCEPT\n")
	b.WriteString("iptables -A INPUT -m state --state ESTABLISHED,RELATED -j ACCEPT\n")
	b.WriteString("iptables -A OUTPUT -m state --state ESTABLISHED -j ACCEPT\n")

	// DNS stays open so allow-listed domains keep resolving after
	// activation.
	b.WriteString("iptables -A OUTPUT -p udp --dport 53 -j ACCEPT\n")
	b.WriteString("iptables -A OUTPUT -p tcp --dport 53 -j ACCEPT\n")

	for _, entry := range allowed {
		if net.ParseIP(entry) != nil {
			fmt.Fprintf(&b, "iptables -A OUTPUT -d %s -j ACCEPT\n", entry)
			continue
		}
		// Domain entries are resolved at activation time; every
		// address the name resolves to is accepted.
		fmt.Fprintf(&b, "for ip in $(getent ahostsv4 %s | awk '{print $1}' | sort -u); do iptables -A OUTPUT -d \"$ip\" -j ACCEPT; done\n", entry)
	}

	// Everything else is rejected so in-sandbox code sees ENETUNREACH
	// instead of hanging on a silent drop.
	b.WriteString("iptables -A OUTPUT -j REJECT --reject-with icmp-net-unreachable\n")

	return b.String()
}
