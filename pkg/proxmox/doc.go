// Package proxmox is the I/O glue between the synthesis engine and the
// Proxmox VE API, built on github.com/luthermonson/go-proxmox. It holds no
// synthesis logic: everything here is a thin, context-first call that
// wraps API errors with enough position to act on.
//
// Cluster membership is discovered through VM tags: a VM carrying exactly
// one of the k3s-server, k3s-agent, or k3s-storage tags belongs to the
// cluster in the corresponding role. VMs with zero or multiple k3s tags
// are skipped during discovery.
package proxmox
