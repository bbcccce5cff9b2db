// Package cloudinit implements the cloud-init half of the configuration
// synthesis engine: user normalization, global/node merging, and user-data
// rendering.
//
// # Merge Semantics
//
// Merge layers a node's cloud-init override on top of the global settings,
// field by field, with each field evaluated independently:
//
//   - packages and users: the override wins only when present AND
//     non-empty; an empty override list falls back to the global list.
//   - runcmd: the override wins whenever present, so an explicit empty
//     list suppresses the global commands.
//   - package_update, package_upgrade, package_reboot_if_required:
//     tri-state booleans; nil inherits from global, which in turn
//     inherits the built-in defaults.
//
// Absent everything, the built-in defaults install qemu-guest-agent and
// enable/start its service, matching what a freshly provisioned Proxmox
// VM needs for the API's guest-agent integration to work.
//
// # User Normalization
//
// Normalize canonicalizes one user entry: resolves the name/username
// alias, applies the sudo/shell/lock_passwd defaults, and re-checks
// password-mode exclusivity. An entry without a resolvable username is
// skipped with a warning rather than failing the synthesis; the schema
// validator already rejects such entries on the fatal path, and this
// second, more lenient layer is kept deliberately.
//
// # Rendering
//
// Render serializes a Document to cloud-init user-data: a "#cloud-config"
// header followed by YAML. Rendering is the only place passwords are
// hashed (sha512-crypt by default, behind WithHashedPasswords), because
// crypt salts are random and the merge output must stay deterministic.
package cloudinit
