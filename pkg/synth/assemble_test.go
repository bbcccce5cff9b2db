package synth

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/k3sforge/k3sforge/pkg/cloudinit"
	"github.com/k3sforge/k3sforge/pkg/config"
	"github.com/k3sforge/k3sforge/pkg/netconf"
)

func boolPtr(b bool) *bool { return &b }

func baseConfig() *config.Config {
	return &config.Config{
		Proxmox: config.ProxmoxSettings{
			Host:     "pve.example.com",
			User:     "root@pam",
			Password: "secret",
		},
		CloudInit: &config.CloudInitSettings{
			Packages: []string{"qemu-guest-agent"},
		},
		Nodes: []config.NodeConfig{
			{
				VMID: 1211,
				Role: config.RoleServer,
				CloudInit: &config.CloudInitSettings{
					Packages: []string{"qemu-guest-agent"},
					Users: []config.UserConfig{{
						Username:        "k3sadmin",
						PlainTextPasswd: "k3sadmin",
						Sudo:            &config.SudoValue{Grant: true, Rule: "ALL=(ALL) NOPASSWD:ALL"},
					}},
				},
			},
			{VMID: 1221, Role: config.RoleAgent},
		},
	}
}

func TestAssemble_ServerOverride(t *testing.T) {
	nodes, err := Assemble(baseConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	server, ok := nodes[1211]
	if !ok {
		t.Fatal("vmid 1211 missing from assembly")
	}
	if server.Role != config.RoleServer {
		t.Errorf("role = %q, want server", server.Role)
	}
	if len(server.CloudInit.Users) != 1 {
		t.Fatalf("got %d users, want 1", len(server.CloudInit.Users))
	}
	u := server.CloudInit.Users[0]
	if u.Name != "k3sadmin" || u.LockPasswd || u.Shell != "/bin/bash" {
		t.Errorf("user = %+v", u)
	}
}

func TestAssemble_NodeWithoutOverrideGetsGlobals(t *testing.T) {
	cfg := baseConfig()
	nodes, err := Assemble(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := nodes[1221]
	globalOnly, err := cloudinit.Merge(cfg.CloudInit, nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(agent.CloudInit, globalOnly) {
		t.Errorf("agent document = %+v, want the global defaults verbatim %+v", agent.CloudInit, globalOnly)
	}
	if agent.Network.HasDevices() {
		t.Error("agent without a network block must have an empty device map")
	}
}

func TestAssemble_Atomic(t *testing.T) {
	cfg := baseConfig()
	// Break the second node only.
	cfg.Nodes[1].CloudInit = &config.CloudInitSettings{
		Network: &config.NetworkFragment{
			VLANs: map[string]*config.VLAN{"vlan10": {ID: 10, Link: "eth9"}},
		},
	}

	nodes, err := Assemble(cfg)
	if !config.IsDanglingDeviceReference(err) {
		t.Fatalf("expected DanglingDeviceReference, got %v", err)
	}
	if nodes != nil {
		t.Error("a failed assembly must not surface partial results")
	}
}

func TestAssemble_PasswordConflictAborts(t *testing.T) {
	cfg := baseConfig()
	cfg.Nodes[0].CloudInit.Users[0].HashedPasswd = "$6$x$y"

	nodes, err := Assemble(cfg)
	if !config.IsPasswordModeConflict(err) {
		t.Fatalf("expected PasswordModeConflict, got %v", err)
	}
	if nodes != nil {
		t.Error("a failed assembly must not surface partial results")
	}
}

// Each node's graph is validated against its own devices: a valid bond0 on
// one node must not mask a dangling bond0 member on another.
func TestAssemble_IndependentGraphs(t *testing.T) {
	cfg := baseConfig()
	cfg.Nodes[0].CloudInit.Network = &config.NetworkFragment{
		Ethernets: map[string]*config.Ethernet{
			"eth0": {CommonDevice: config.CommonDevice{DHCP4: boolPtr(true)}},
			"eth1": {CommonDevice: config.CommonDevice{DHCP4: boolPtr(true)}},
		},
		Bonds: map[string]*config.Bond{"bond0": {Interfaces: []string{"eth0", "eth1"}}},
	}
	cfg.Nodes[1].CloudInit = &config.CloudInitSettings{
		Network: &config.NetworkFragment{
			Ethernets: map[string]*config.Ethernet{
				"eth2": {CommonDevice: config.CommonDevice{DHCP4: boolPtr(true)}},
			},
			Bonds: map[string]*config.Bond{"bond0": {Interfaces: []string{"eth0"}}},
		},
	}

	if _, err := Assemble(cfg); !config.IsDanglingDeviceReference(err) {
		t.Fatalf("expected DanglingDeviceReference from the second node, got %v", err)
	}

	// Fixing the second node makes the whole assembly valid.
	cfg.Nodes[1].CloudInit.Network.Bonds["bond0"].Interfaces = []string{"eth2"}
	nodes, err := Assemble(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
}

func TestAssemble_DeterministicRendering(t *testing.T) {
	cfg := baseConfig()
	cfg.Nodes[0].CloudInit.Network = &config.NetworkFragment{
		Ethernets: map[string]*config.Ethernet{
			"eth0": {CommonDevice: config.CommonDevice{DHCP4: boolPtr(true)}},
			"eth1": {CommonDevice: config.CommonDevice{DHCP4: boolPtr(true)}},
		},
	}

	var prevUser, prevNet []byte
	for i := 0; i < 3; i++ {
		nodes, err := Assemble(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		server := nodes[1211]

		userData, err := cloudinit.Render(server.CloudInit)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		netData, err := netconf.Render(server.Network)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if prevUser != nil && (!bytes.Equal(prevUser, userData) || !bytes.Equal(prevNet, netData)) {
			t.Fatal("repeated assembly must render byte-identical documents")
		}
		prevUser, prevNet = userData, netData
	}
}

func TestAssemble_EmptyNodeList(t *testing.T) {
	cfg := &config.Config{
		Proxmox: config.ProxmoxSettings{Host: "pve", User: "root@pam", Password: "x"},
	}
	nodes, err := Assemble(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("got %d nodes, want 0", len(nodes))
	}
}
