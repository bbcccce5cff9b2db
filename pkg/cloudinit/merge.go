package cloudinit

import (
	"fmt"
	"slices"

	"github.com/k3sforge/k3sforge/pkg/config"
)

// Built-in defaults, used when neither the global settings nor the node
// override declare a field.
const (
	defaultPackageUpdate           = true
	defaultPackageUpgrade          = false
	defaultPackageRebootIfRequired = true
)

// DefaultPackages returns the built-in package list.
func DefaultPackages() []string {
	return []string{"qemu-guest-agent"}
}

// DefaultRuncmd returns the built-in first-boot commands. The guest agent
// must be enabled and started for the Proxmox API to reach the VM.
func DefaultRuncmd() []string {
	return []string{
		"systemctl enable qemu-guest-agent",
		"systemctl start qemu-guest-agent",
	}
}

// Merge layers a node's cloud-init override on top of the global settings
// and produces the node's effective document. Either argument may be nil.
// overridePath is the configuration path of the override block (for
// example "nodes[0].cloud_init"), used in logs and errors for user entries
// taken from the override.
//
// Each field follows its own merge rule; see the package documentation.
// The result is independent of any other node's settings and identical
// across repeated calls with the same inputs.
func Merge(global, override *config.CloudInitSettings, overridePath string) (*Document, error) {
	if global == nil {
		global = &config.CloudInitSettings{}
	}
	if override == nil {
		override = &config.CloudInitSettings{}
	}

	doc := &Document{
		PackageUpdate:           mergeBool(global.PackageUpdate, override.PackageUpdate, defaultPackageUpdate),
		PackageUpgrade:          mergeBool(global.PackageUpgrade, override.PackageUpgrade, defaultPackageUpgrade),
		PackageRebootIfRequired: mergeBool(global.PackageRebootIfRequired, override.PackageRebootIfRequired, defaultPackageRebootIfRequired),
		Packages:                mergeList(global.Packages, override.Packages, DefaultPackages()),
	}

	// runcmd overrides whenever present: an explicit empty list suppresses
	// the global commands, unlike packages and users.
	switch {
	case override.Runcmd != nil:
		doc.Runcmd = slices.Clone(override.Runcmd)
	case global.Runcmd != nil:
		doc.Runcmd = slices.Clone(global.Runcmd)
	default:
		doc.Runcmd = DefaultRuncmd()
	}

	users := global.Users
	usersPath := "cloud_init.users"
	if len(override.Users) > 0 {
		users = override.Users
		usersPath = joinPath(overridePath, "users")
	}
	normalized, err := normalizeUsers(users, usersPath)
	if err != nil {
		return nil, err
	}
	doc.Users = normalized

	return doc, nil
}

// mergeBool resolves a tri-state boolean: the override when set, else the
// global value, else the built-in default.
func mergeBool(global, override *bool, def bool) bool {
	if override != nil {
		return *override
	}
	if global != nil {
		return *global
	}
	return def
}

// mergeList prefers a non-empty override, then a non-empty global list,
// then the built-in default.
func mergeList(global, override, def []string) []string {
	if len(override) > 0 {
		return slices.Clone(override)
	}
	if len(global) > 0 {
		return slices.Clone(global)
	}
	return def
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
