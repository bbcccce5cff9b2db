package netconf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/k3sforge/k3sforge/pkg/config"
)

func TestRender_WrapsInNetworkKey(t *testing.T) {
	doc, err := Build(nil, &config.NetworkFragment{
		Ethernets: map[string]*config.Ethernet{"eth0": ethernet(true)},
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := Render(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "network:\n") {
		t.Errorf("output must start with the network wrapper:\n%s", out)
	}
	if !strings.Contains(out, "version: 2") {
		t.Errorf("output must carry version 2:\n%s", out)
	}
	if !strings.Contains(out, "dhcp4: true") {
		t.Errorf("output must carry the device properties:\n%s", out)
	}
}

func TestRender_OmitsEmptyDeviceMaps(t *testing.T) {
	doc, err := Build(&config.NetworkFragment{Renderer: "networkd"}, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := Render(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(data)
	for _, kind := range []string{"ethernets:", "bonds:", "bridges:", "vlans:"} {
		if strings.Contains(out, kind) {
			t.Errorf("empty %s must be omitted:\n%s", kind, out)
		}
	}
	if !strings.Contains(out, "renderer: networkd") {
		t.Errorf("renderer must be emitted:\n%s", out)
	}
}

func TestRender_Deterministic(t *testing.T) {
	node := &config.NetworkFragment{
		Ethernets: map[string]*config.Ethernet{
			"eth0": ethernet(true),
			"eth1": ethernet(true),
			"eth2": ethernet(false),
		},
		Bonds: map[string]*config.Bond{
			"bond0": {Interfaces: []string{"eth1", "eth2"}},
		},
	}

	var prev []byte
	for i := 0; i < 5; i++ {
		doc, err := Build(nil, node, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := Render(doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if prev != nil && !bytes.Equal(prev, data) {
			t.Fatalf("render %d differs from previous:\n%s\n---\n%s", i, prev, data)
		}
		prev = data
	}
}

func TestShouldRender(t *testing.T) {
	tests := []struct {
		name   string
		global *config.NetworkFragment
		node   *config.NetworkFragment
		want   bool
	}{
		{"no fragments", nil, nil, false},
		{"version only", &config.NetworkFragment{Version: 2}, nil, false},
		{"global renderer", &config.NetworkFragment{Renderer: "networkd"}, nil, true},
		{
			"node devices",
			nil,
			&config.NetworkFragment{Ethernets: map[string]*config.Ethernet{"eth0": ethernet(true)}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Build(tt.global, tt.node, "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := ShouldRender(doc); got != tt.want {
				t.Errorf("ShouldRender = %v, want %v", got, tt.want)
			}
		})
	}
}
