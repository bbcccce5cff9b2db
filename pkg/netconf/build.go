package netconf

import (
	"maps"
	"slices"

	"github.com/k3sforge/k3sforge/pkg/config"
)

// DefaultVersion is the netplan format version emitted when no fragment
// declares one.
const DefaultVersion = 2

// Document is the effective network configuration for one node. Like the
// cloud-init document it is derived state, recomputed on every synthesis.
type Document struct {
	// Version is the netplan format version, always 2.
	Version int

	// Renderer selects the netplan backend, empty for the distro default.
	Renderer string

	// Ethernets, Bonds, Bridges, and VLANs are the node's device maps,
	// keyed by device id. Ids are unique across all four maps.
	Ethernets map[string]*config.Ethernet
	Bonds     map[string]*config.Bond
	Bridges   map[string]*config.Bridge
	VLANs     map[string]*config.VLAN
}

// HasDevices reports whether the document declares any device.
func (d *Document) HasDevices() bool {
	return len(d.Ethernets)+len(d.Bonds)+len(d.Bridges)+len(d.VLANs) > 0
}

// Build merges the global and node network fragments into the node's
// device graph and validates its referential integrity. nodePath is the
// configuration path of the node fragment, used in error paths. Either
// fragment may be nil.
//
// The node fragment contributes all devices; the global fragment
// contributes version, renderer, and DHCP override defaults applied to
// devices that enable DHCP without declaring their own overrides.
func Build(global, node *config.NetworkFragment, nodePath string) (*Document, error) {
	if global == nil {
		global = &config.NetworkFragment{}
	}
	if node == nil {
		node = &config.NetworkFragment{}
	}

	doc := &Document{
		Version:   DefaultVersion,
		Renderer:  global.Renderer,
		Ethernets: make(map[string]*config.Ethernet),
		Bonds:     make(map[string]*config.Bond),
		Bridges:   make(map[string]*config.Bridge),
		VLANs:     make(map[string]*config.VLAN),
	}
	if node.Version != 0 {
		doc.Version = node.Version
	} else if global.Version != 0 {
		doc.Version = global.Version
	}
	if node.Renderer != "" {
		doc.Renderer = node.Renderer
	}

	// Union the node's device maps, checking id uniqueness across kinds.
	ids := make(map[string]string) // id -> kind that declared it
	claim := func(id, kind string) error {
		if _, taken := ids[id]; taken {
			return config.NewDuplicateDeviceIDError(devicePath(nodePath, kind, id), id)
		}
		ids[id] = kind
		return nil
	}
	for _, id := range sortedKeys(node.Ethernets) {
		if err := claim(id, "ethernets"); err != nil {
			return nil, err
		}
		doc.Ethernets[id] = node.Ethernets[id].Clone()
	}
	for _, id := range sortedKeys(node.Bonds) {
		if err := claim(id, "bonds"); err != nil {
			return nil, err
		}
		doc.Bonds[id] = node.Bonds[id].Clone()
	}
	for _, id := range sortedKeys(node.Bridges) {
		if err := claim(id, "bridges"); err != nil {
			return nil, err
		}
		doc.Bridges[id] = node.Bridges[id].Clone()
	}
	for _, id := range sortedKeys(node.VLANs) {
		if err := claim(id, "vlans"); err != nil {
			return nil, err
		}
		doc.VLANs[id] = node.VLANs[id].Clone()
	}

	// Referential integrity: bond and bridge members, then vlan links.
	for _, id := range sortedKeys(doc.Bonds) {
		if err := checkMembers(ids, doc.Bonds[id].Interfaces, devicePath(nodePath, "bonds", id)); err != nil {
			return nil, err
		}
	}
	for _, id := range sortedKeys(doc.Bridges) {
		if err := checkMembers(ids, doc.Bridges[id].Interfaces, devicePath(nodePath, "bridges", id)); err != nil {
			return nil, err
		}
	}
	for _, id := range sortedKeys(doc.VLANs) {
		vlan := doc.VLANs[id]
		if _, declared := ids[vlan.Link]; !declared {
			return nil, config.NewDanglingDeviceReferenceError(
				devicePath(nodePath, "vlans", id)+".link", vlan.Link)
		}
	}

	applyDHCPDefaults(doc, global)

	return doc, nil
}

func checkMembers(ids map[string]string, members []string, path string) error {
	for _, member := range members {
		if _, declared := ids[member]; !declared {
			return config.NewDanglingDeviceReferenceError(path+".interfaces", member)
		}
	}
	return nil
}

// applyDHCPDefaults copies the global DHCP override defaults onto devices
// that enable DHCP but declare no overrides of their own. A device's own
// overrides always win wholesale; there is no per-key merge.
func applyDHCPDefaults(doc *Document, global *config.NetworkFragment) {
	if global.DHCP4Overrides == nil && global.DHCP6Overrides == nil {
		return
	}
	apply := func(d *config.CommonDevice) {
		if boolValue(d.DHCP4) && d.DHCP4Overrides == nil {
			d.DHCP4Overrides = global.DHCP4Overrides.Clone()
		}
		if boolValue(d.DHCP6) && d.DHCP6Overrides == nil {
			d.DHCP6Overrides = global.DHCP6Overrides.Clone()
		}
	}
	for _, d := range doc.Ethernets {
		apply(&d.CommonDevice)
	}
	for _, d := range doc.Bonds {
		apply(&d.CommonDevice)
	}
	for _, d := range doc.Bridges {
		apply(&d.CommonDevice)
	}
	for _, d := range doc.VLANs {
		apply(&d.CommonDevice)
	}
}

func devicePath(nodePath, kind, id string) string {
	if nodePath == "" {
		return kind + "." + id
	}
	return nodePath + "." + kind + "." + id
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

// sortedKeys returns the map keys in ascending order, so traversal order
// (and with it the first error reported) is stable.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
