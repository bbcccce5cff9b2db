package proxmox

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/siderolabs/gen/maps"

	"github.com/k3sforge/k3sforge/pkg/config"
)

// roleTags maps the cluster membership tags to node roles.
var roleTags = map[string]config.Role{
	"k3s-server":  config.RoleServer,
	"k3s-agent":   config.RoleAgent,
	"k3s-storage": config.RoleStorage,
}

// RoleTags lists the recognized k3s tags in a stable order.
func RoleTags() []string {
	tags := maps.Keys(roleTags)
	sort.Strings(tags)
	return tags
}

// TagForRole returns the VM tag that marks a node with the given role.
func TagForRole(role config.Role) string {
	return "k3s-" + string(role)
}

// RoleFromTags inspects a VM's semicolon-separated tag string and returns
// the role it is tagged with. The second result is false when the VM
// carries zero or more than one k3s tag; such VMs are not cluster members.
func RoleFromTags(tags string) (config.Role, bool) {
	var found []config.Role
	for _, tag := range strings.Split(tags, ";") {
		if role, ok := roleTags[strings.TrimSpace(tag)]; ok {
			found = append(found, role)
		}
	}
	if len(found) != 1 {
		return "", false
	}
	return found[0], true
}

// DiscoveredVM is one k3s-tagged VM found during a cluster scan.
type DiscoveredVM struct {
	// VMID is the Proxmox VM id.
	VMID int `json:"vmid"`

	// Name is the VM name.
	Name string `json:"name"`

	// Status is the VM power state as reported by the API.
	Status string `json:"status"`

	// Node is the Proxmox node hosting the VM.
	Node string `json:"node"`

	// Role is the k3s role derived from the VM's tag.
	Role config.Role `json:"role"`

	// Agent is the VM's QEMU guest agent state, probed best-effort.
	Agent GuestAgentStatus `json:"-"`
}

// DiscoverVMs scans all online nodes for VMs tagged with exactly one k3s
// tag and returns them sorted by vmid. Templates and multi-tagged VMs are
// skipped.
func (c *Client) DiscoverVMs(ctx context.Context) ([]DiscoveredVM, error) {
	nodeNames, err := c.OnlineNodeNames(ctx)
	if err != nil {
		return nil, err
	}

	var discovered []DiscoveredVM
	for _, nodeName := range nodeNames {
		node, err := c.api.Node(ctx, nodeName)
		if err != nil {
			return nil, fmt.Errorf("fetching node %q: %w", nodeName, err)
		}
		vms, err := node.VirtualMachines(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing VMs on node %q: %w", nodeName, err)
		}
		for _, vm := range vms {
			if vm.Template {
				continue
			}
			role, ok := RoleFromTags(vm.Tags)
			if !ok {
				if vm.Tags != "" && strings.Contains(vm.Tags, "k3s-") {
					log.Debug().
						Uint64("vmid", uint64(vm.VMID)).
						Str("tags", vm.Tags).
						Msg("skipping VM with ambiguous k3s tags")
				}
				continue
			}
			entry := DiscoveredVM{
				VMID:   int(vm.VMID),
				Name:   vm.Name,
				Status: vm.Status,
				Node:   nodeName,
				Role:   role,
			}
			// The list summary has no VM config; fetch the full VM to
			// probe the guest agent. A fetch failure leaves the agent
			// state at its zero value rather than failing the scan.
			if full, err := node.VirtualMachine(ctx, entry.VMID); err == nil {
				entry.Agent = c.GuestAgent(ctx, full)
			}
			discovered = append(discovered, entry)
		}
	}

	sort.Slice(discovered, func(i, j int) bool { return discovered[i].VMID < discovered[j].VMID })
	log.Debug().Int("count", len(discovered)).Msg("discovered k3s-tagged VMs")
	return discovered, nil
}
