package cloudinit

import "slices"

// Document is the effective cloud-init user-data for one node, produced by
// Merge and consumed by Render. It is derived state: recomputed from the
// configuration on every synthesis and never stored.
type Document struct {
	// PackageUpdate runs a package index update on first boot.
	PackageUpdate bool `yaml:"package_update"`

	// PackageUpgrade upgrades installed packages on first boot.
	PackageUpgrade bool `yaml:"package_upgrade"`

	// PackageRebootIfRequired reboots after package operations when needed.
	PackageRebootIfRequired bool `yaml:"package_reboot_if_required"`

	// Packages lists packages installed on first boot.
	Packages []string `yaml:"packages,omitempty"`

	// Users lists the normalized user entries.
	Users []User `yaml:"users,omitempty"`

	// Runcmd lists shell commands executed at the end of first boot.
	Runcmd []string `yaml:"runcmd,omitempty"`
}

// User is a normalized cloud-init user entry in its document form. Field
// names follow the cloud-init users schema, not the configuration schema:
// username becomes name, ssh_keys becomes ssh_authorized_keys.
type User struct {
	// Name is the account name.
	Name string `yaml:"name"`

	// Gecos is the account description.
	Gecos string `yaml:"gecos,omitempty"`

	// PrimaryGroup is the user's primary group.
	PrimaryGroup string `yaml:"primary_group,omitempty"`

	// Groups lists supplementary groups.
	Groups []string `yaml:"groups,omitempty"`

	// Shell is the login shell.
	Shell string `yaml:"shell,omitempty"`

	// Sudo is the sudoers directive; empty means no sudo access.
	Sudo string `yaml:"sudo,omitempty"`

	// LockPasswd disables password login when true. Always emitted so
	// cloud-init's default of true does not silently lock accounts.
	LockPasswd bool `yaml:"lock_passwd"`

	// System creates a system account.
	System bool `yaml:"system,omitempty"`

	// SSHAuthorizedKeys lists the user's authorized public keys.
	SSHAuthorizedKeys []string `yaml:"ssh_authorized_keys,omitempty"`

	// HashedPasswd is a crypt(3) password hash. At most one of
	// HashedPasswd and PlainTextPasswd is set.
	HashedPasswd string `yaml:"hashed_passwd,omitempty"`

	// PlainTextPasswd is a plain-text password, hashed by Render when the
	// WithHashedPasswords option is given, otherwise by cloud-init itself.
	PlainTextPasswd string `yaml:"plain_text_passwd,omitempty"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Packages = slices.Clone(d.Packages)
	out.Runcmd = slices.Clone(d.Runcmd)
	out.Users = make([]User, len(d.Users))
	for i, u := range d.Users {
		u.Groups = slices.Clone(u.Groups)
		u.SSHAuthorizedKeys = slices.Clone(u.SSHAuthorizedKeys)
		out.Users[i] = u
	}
	return &out
}
