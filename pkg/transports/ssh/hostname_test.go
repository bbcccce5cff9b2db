package ssh

import "testing"

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"pve1.example.com", "example.com"},
		{"pve1.example.com:8006", "example.com"},
		{"pve1", ""},
		{"192.168.1.10", ""},
		{"192.168.1.10:8006", ""},
		{"pve1.internal.lan", "internal.lan"},
	}
	for _, tt := range tests {
		if got := ExtractDomain(tt.host); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestNodeHostname(t *testing.T) {
	tests := []struct {
		apiHost  string
		nodeName string
		want     string
	}{
		// Node hosting the VM is the API host itself.
		{"pve1.example.com", "pve1", "pve1.example.com"},
		// Different node inherits the API host's domain.
		{"pve1.example.com:8006", "pve2", "pve2.example.com"},
		// Bare API host, bare node name.
		{"pve1", "pve2", "pve2"},
		// IP API host cannot contribute a domain.
		{"192.168.1.10:8006", "pve2", "pve2"},
	}
	for _, tt := range tests {
		if got := NodeHostname(tt.apiHost, tt.nodeName); got != tt.want {
			t.Errorf("NodeHostname(%q, %q) = %q, want %q", tt.apiHost, tt.nodeName, got, tt.want)
		}
	}
}

func TestStripPort(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"pve1:8006", "pve1"},
		{"pve1", "pve1"},
		{"https://pve1.example.com:8006", "pve1.example.com"},
	}
	for _, tt := range tests {
		if got := StripPort(tt.host); got != tt.want {
			t.Errorf("StripPort(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
