// Package netconf implements the netplan-v2 half of the configuration
// synthesis engine: merging the global and node network fragments into one
// referentially consistent device graph per node, and rendering it as a
// cloud-init network-config snippet.
//
// The global fragment never contributes topology; it carries only the
// format version, the renderer, and fleet-wide DHCP override defaults.
// Devices come exclusively from the node fragment. Build verifies two
// invariants over the combined graph:
//
//   - device ids are unique across ethernets, bonds, bridges, and vlans;
//   - every bond/bridge member and every vlan link resolves to a device
//     declared in the same graph.
//
// A dangling reference is a hard error, never a best-effort ignore: a VM
// booted with a bond pointing at a missing ethernet comes up without
// networking and can only be fixed through the console.
//
// A node without a network block is the common case (single-NIC DHCP);
// it yields a valid document with the global defaults and no devices, and
// no network-config snippet is uploaded for it.
package netconf
