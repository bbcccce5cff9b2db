// Package synth assembles per-node effective configurations: for every
// declared node it layers the global cloud-init settings under the node's
// override and builds the node's network device graph, producing the data
// handed to the renderers and the provisioning layer.
package synth

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/k3sforge/k3sforge/pkg/cloudinit"
	"github.com/k3sforge/k3sforge/pkg/config"
	"github.com/k3sforge/k3sforge/pkg/netconf"
)

// Node is one node's fully assembled provisioning state.
type Node struct {
	// VMID is the Proxmox VM id.
	VMID int

	// Role is the node's k3s role.
	Role config.Role

	// Name is the node's display name, empty unless configured.
	Name string

	// CloudInit is the node's effective cloud-init document.
	CloudInit *cloudinit.Document

	// Network is the node's effective network document.
	Network *netconf.Document
}

// Assemble computes the effective configuration for every declared node.
// It is atomic: the first merge or graph error aborts the whole assembly
// and no partial mapping is returned, so a half-validated configuration
// can never reach the provisioning layer. Repeated calls over the same
// configuration produce identical results.
func Assemble(cfg *config.Config) (map[int]Node, error) {
	var globalCI *config.CloudInitSettings
	var globalNet *config.NetworkFragment
	if cfg.CloudInit != nil {
		globalCI = cfg.CloudInit
		globalNet = cfg.CloudInit.Network
	}

	out := make(map[int]Node, len(cfg.Nodes))
	for i, nodeCfg := range cfg.Nodes {
		nodePath := fmt.Sprintf("nodes[%d].cloud_init", i)

		var override *config.CloudInitSettings
		var nodeNet *config.NetworkFragment
		if nodeCfg.CloudInit != nil {
			override = nodeCfg.CloudInit
			nodeNet = nodeCfg.CloudInit.Network
		}

		ciDoc, err := cloudinit.Merge(globalCI, override, nodePath)
		if err != nil {
			return nil, fmt.Errorf("assembling vmid %d: %w", nodeCfg.VMID, err)
		}
		netDoc, err := netconf.Build(globalNet, nodeNet, nodePath+".network")
		if err != nil {
			return nil, fmt.Errorf("assembling vmid %d: %w", nodeCfg.VMID, err)
		}

		log.Debug().
			Int("vmid", nodeCfg.VMID).
			Str("role", string(nodeCfg.Role)).
			Int("users", len(ciDoc.Users)).
			Bool("has_devices", netDoc.HasDevices()).
			Msg("assembled effective configuration")

		out[nodeCfg.VMID] = Node{
			VMID:      nodeCfg.VMID,
			Role:      nodeCfg.Role,
			Name:      nodeCfg.Name,
			CloudInit: ciDoc,
			Network:   netDoc,
		}
	}

	return out, nil
}
