package firewall

import (
	"strings"
	"testing"
)

func TestScript_LoopbackAlwaysAllowed(t *testing.T) {
	script := Script(nil)
	if !strings.Contains(script, "iptables -A OUTPUT -o lo -j ACCEPT") {
		t.Error("expected loopback OUTPUT accept rule")
	}
	if !strings.Contains(script, "iptables -A INPUT -i lo -j ACCEPT") {
		t.Error("expected loopback INPUT accept rule")
	}
}

func TestScript_EmptyListRejectsEverythingElse(t *testing.T) {
	script := Script(nil)
	if !strings.Contains(script, "REJECT --reject-with icmp-net-unreachable") {
		t.Error("expected net-unreachable reject as final rule")
	}
	if strings.Contains(script, "getent") {
		t.Error("empty allow-list must not emit domain resolution")
	}
}

func TestScript_IPLiteral(t *testing.T) {
	script := Script([]string{"8.8.8.8"})
	if !strings.Contains(script, "iptables -A OUTPUT -d 8.8.8.8 -j ACCEPT") {
		t.Errorf("expected direct accept rule for IP literal, got:\n%s", script)
	}
}

func TestScript_Domain(t *testing.T) {
	script := Script([]string{"example-allowed.test"})
	if !strings.Contains(script, "getent ahostsv4 example-allowed.test") {
		t.Errorf("expected domain resolution for allow-listed name, got:\n%s", script)
	}
}

func TestScript_RejectRuleIsLast(t *testing.T) {
	script := Script([]string{"8.8.8.8", "example-allowed.test"})
	lines := strings.Split(strings.TrimSpace(script), "\n")
	last := lines[len(lines)-1]
	if !strings.Contains(last, "REJECT") {
		t.Errorf("reject rule must come after all accept rules, last line: %s", last)
	}
}
