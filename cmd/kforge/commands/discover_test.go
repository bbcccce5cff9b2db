package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/k3sforge/k3sforge/pkg/config"
	pve "github.com/k3sforge/k3sforge/pkg/proxmox"
)

func TestMergeDiscoveredNodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := `{
  "proxmox": {
    "host": "pve.example.com",
    "user": "root@pam",
    "password": "ENV:PROXMOX_PASSWORD"
  },
  "nodes": [
    {"vmid": 1211, "role": "agent", "cloud_init": {"packages": ["htop"]}},
    {"vmid": 1299, "role": "storage"}
  ]
}`
	if err := os.WriteFile(path, []byte(original), 0o600); err != nil {
		t.Fatal(err)
	}

	discovered := []pve.DiscoveredVM{
		{VMID: 1211, Name: "k3s-server-1", Status: "running", Node: "pve1", Role: config.RoleServer},
		{VMID: 1221, Name: "k3s-agent-1", Status: "stopped", Node: "pve2", Role: config.RoleAgent},
	}
	if err := mergeDiscoveredNodes(path, discovered); err != nil {
		t.Fatalf("mergeDiscoveredNodes: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("merged file is not valid JSON: %v", err)
	}

	// The ENV: marker must survive the round trip unresolved.
	pmx := raw["proxmox"].(map[string]any)
	if got := pmx["password"]; got != "ENV:PROXMOX_PASSWORD" {
		t.Errorf("password = %v, want the unresolved ENV: marker", got)
	}

	nodes := raw["nodes"].([]any)
	if len(nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(nodes))
	}

	byVMID := make(map[int]map[string]any)
	for _, entry := range nodes {
		node := entry.(map[string]any)
		byVMID[int(node["vmid"].(float64))] = node
	}

	// 1211: role corrected by the tag scan, per-node settings preserved.
	n1211 := byVMID[1211]
	if n1211["role"] != "server" {
		t.Errorf("vmid 1211 role = %v, want server", n1211["role"])
	}
	if n1211["name"] != "k3s-server-1" {
		t.Errorf("vmid 1211 name = %v, want k3s-server-1", n1211["name"])
	}
	ci := n1211["cloud_init"].(map[string]any)
	if pkgs := ci["packages"].([]any); len(pkgs) != 1 || pkgs[0] != "htop" {
		t.Errorf("vmid 1211 cloud_init not preserved: %v", ci)
	}

	// 1221: newly discovered, appended.
	n1221 := byVMID[1221]
	if n1221 == nil || n1221["role"] != "agent" {
		t.Errorf("vmid 1221 not appended correctly: %v", n1221)
	}

	// 1299: configured but not discovered, left in place.
	if byVMID[1299] == nil {
		t.Error("vmid 1299 was dropped, want it preserved")
	}

	// Backup written with the original content.
	backup, err := os.ReadFile(path + ".backup")
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(backup) != original {
		t.Error("backup does not match the original file")
	}
}

func TestMergeDiscoveredNodes_MissingFile(t *testing.T) {
	err := mergeDiscoveredNodes(filepath.Join(t.TempDir(), "config.json"), nil)
	if err == nil {
		t.Fatal("expected an error for a missing configuration file")
	}
}
