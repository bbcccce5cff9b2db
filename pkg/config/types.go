package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/siderolabs/gen/xslices"
)

// Role identifies the k3s role a node plays in the cluster.
type Role string

const (
	// RoleServer is a k3s control-plane node.
	RoleServer Role = "server"

	// RoleAgent is a k3s worker node.
	RoleAgent Role = "agent"

	// RoleStorage is a dedicated storage node.
	RoleStorage Role = "storage"
)

// Roles lists all valid node roles in a stable order.
func Roles() []Role {
	return []Role{RoleServer, RoleAgent, RoleStorage}
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleServer, RoleAgent, RoleStorage:
		return true
	}
	return false
}

// Default values applied by the user normalizer when a field is absent.
const (
	// DefaultSudoRule is the sudoers directive granted to users that do not
	// declare their own.
	DefaultSudoRule = "ALL=(ALL) NOPASSWD:ALL"

	// DefaultShell is the login shell assigned to users that do not declare
	// their own.
	DefaultShell = "/bin/bash"
)

// Config is the fully validated configuration document.
type Config struct {
	// Proxmox holds the Proxmox VE connection settings.
	Proxmox ProxmoxSettings `json:"proxmox" validate:"required"`

	// CloudInit holds the global cloud-init defaults applied to every node
	// unless overridden per node.
	CloudInit *CloudInitSettings `json:"cloud_init,omitempty"`

	// Nodes lists the managed cluster nodes.
	Nodes []NodeConfig `json:"nodes,omitempty" validate:"omitempty,dive"`
}

// Node returns the node entry with the given vmid, or nil when the vmid is
// not declared.
func (c *Config) Node(vmid int) *NodeConfig {
	for i := range c.Nodes {
		if c.Nodes[i].VMID == vmid {
			return &c.Nodes[i]
		}
	}
	return nil
}

// VMIDs returns the declared vmids in ascending order.
func (c *Config) VMIDs() []int {
	ids := xslices.Map(c.Nodes, func(n NodeConfig) int { return n.VMID })
	sort.Ints(ids)
	return ids
}

// Redacted returns a deep copy of the configuration with all secret values
// replaced by a mask, suitable for logging.
func (c *Config) Redacted() *Config {
	out := *c
	out.Proxmox = c.Proxmox.redacted()
	if c.CloudInit != nil {
		ci := c.CloudInit.redacted()
		out.CloudInit = &ci
	}
	out.Nodes = xslices.Map(c.Nodes, func(n NodeConfig) NodeConfig {
		if n.CloudInit != nil {
			ci := n.CloudInit.redacted()
			n.CloudInit = &ci
		}
		return n
	})
	return &out
}

const secretMask = "****"

// ProxmoxSettings holds connection and authentication settings for the
// Proxmox VE API.
type ProxmoxSettings struct {
	// Host is the Proxmox VE host, optionally with a port (defaults to 8006).
	Host string `json:"host" validate:"required"`

	// User is the Proxmox VE user including its realm (e.g., "root@pam").
	User string `json:"user" validate:"required"`

	// Password authenticates with username/password. Mutually exclusive
	// with the API token pair.
	Password string `json:"password,omitempty"`

	// APITokenID is the API token name. Combined with User it forms the
	// full token id ("user@realm!name").
	APITokenID string `json:"api_token_id,omitempty"`

	// APITokenSecret is the API token secret value.
	APITokenSecret string `json:"api_token_secret,omitempty"`

	// VerifySSL controls TLS certificate verification (default true).
	VerifySSL *bool `json:"verify_ssl,omitempty"`

	// Timeout is the API request timeout in seconds.
	Timeout int `json:"timeout,omitempty" validate:"omitempty,min=1"`

	// SnippetStorage names the storage used for cloud-init snippets. When
	// empty, the first snippet-capable storage on the VM's node is used.
	SnippetStorage string `json:"snippet_storage,omitempty"`

	// SSH holds optional settings for SSH connections to Proxmox hosts.
	SSH *SSHSettings `json:"ssh,omitempty"`
}

// UsesTokenAuth reports whether API token authentication is configured.
func (p *ProxmoxSettings) UsesTokenAuth() bool {
	return p.APITokenID != "" && p.APITokenSecret != ""
}

// FullTokenID returns the complete API token id ("user@realm!name").
func (p *ProxmoxSettings) FullTokenID() string {
	if strings.Contains(p.APITokenID, "!") {
		return p.APITokenID
	}
	return p.User + "!" + p.APITokenID
}

// SkipTLSVerify reports whether TLS certificate verification is disabled.
func (p *ProxmoxSettings) SkipTLSVerify() bool {
	return p.VerifySSL != nil && !*p.VerifySSL
}

// APIURL returns the full Proxmox API endpoint derived from Host.
func (p *ProxmoxSettings) APIURL() string {
	host := p.Host
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/") + "/api2/json"
	}
	if !strings.Contains(host, ":") {
		host += ":8006"
	}
	return "https://" + host + "/api2/json"
}

// SSHUser returns the username for SSH connections to Proxmox hosts: the
// configured ssh.username when present, otherwise the API user with its
// realm stripped ("root@pam" becomes "root").
func (p *ProxmoxSettings) SSHUser() string {
	if p.SSH != nil && p.SSH.Username != "" {
		return p.SSH.Username
	}
	user, _, _ := strings.Cut(p.User, "@")
	return user
}

func (p ProxmoxSettings) redacted() ProxmoxSettings {
	if p.Password != "" {
		p.Password = secretMask
	}
	if p.APITokenSecret != "" {
		p.APITokenSecret = secretMask
	}
	return p
}

// SSHSettings holds optional SSH connection settings for Proxmox hosts.
type SSHSettings struct {
	// Username overrides the SSH username derived from the API user.
	Username string `json:"username,omitempty"`

	// Port is the SSH port (default 22).
	Port int `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// PublicKeyFile is the path to the public key deployed to hosts.
	PublicKeyFile string `json:"public_key_file,omitempty"`

	// PrivateKeyFile is the path to the private key used for SSH
	// authentication.
	PrivateKeyFile string `json:"private_key_file,omitempty"`
}

// CloudInitSettings is the cloud-init section of the configuration, used
// both globally and as a per-node override.
type CloudInitSettings struct {
	// Packages lists packages installed on first boot. A per-node override
	// replaces the global list only when non-empty.
	Packages []string `json:"packages,omitempty"`

	// PackageUpdate runs a package index update on first boot.
	PackageUpdate *bool `json:"package_update,omitempty"`

	// PackageUpgrade upgrades installed packages on first boot.
	PackageUpgrade *bool `json:"package_upgrade,omitempty"`

	// PackageRebootIfRequired reboots after package operations when needed.
	PackageRebootIfRequired *bool `json:"package_reboot_if_required,omitempty"`

	// Runcmd lists shell commands executed on first boot. A per-node
	// override replaces the global list wholesale, including an explicit
	// empty list.
	Runcmd []string `json:"runcmd,omitempty"`

	// Users lists users created on first boot. A per-node override replaces
	// the global list only when non-empty.
	Users []UserConfig `json:"users,omitempty" validate:"omitempty,dive"`

	// Network is the netplan-v2 network fragment. At the global level only
	// version, renderer, and DHCP override defaults are allowed; device
	// maps are node-level only.
	Network *NetworkFragment `json:"network,omitempty"`
}

func (s CloudInitSettings) redacted() CloudInitSettings {
	s.Users = xslices.Map(s.Users, func(u UserConfig) UserConfig {
		if u.HashedPasswd != "" {
			u.HashedPasswd = secretMask
		}
		if u.PlainTextPasswd != "" {
			u.PlainTextPasswd = secretMask
		}
		return u
	})
	return s
}

// NodeConfig declares one managed cluster node.
type NodeConfig struct {
	// VMID is the Proxmox VM id, unique across the node list.
	VMID int `json:"vmid" validate:"required,min=1"`

	// Role is the k3s role of this node.
	Role Role `json:"role" validate:"required,oneof=server agent storage"`

	// Name is an optional display name, typically filled in by discovery.
	Name string `json:"name,omitempty"`

	// CloudInit overrides the global cloud-init settings for this node.
	CloudInit *CloudInitSettings `json:"cloud_init,omitempty"`
}

// UserConfig declares one cloud-init user as written in the configuration
// document. The normalizer in the cloudinit package converts it to its
// rendered form.
type UserConfig struct {
	// Username is the account name. "name" is accepted as an alias and
	// normalized to Username; when both are present Username wins.
	Username string `json:"username,omitempty"`

	// Name is the legacy alias for Username.
	Name string `json:"name,omitempty"`

	// HashedPasswd is a pre-hashed crypt(3) password. Mutually exclusive
	// with PlainTextPasswd.
	HashedPasswd string `json:"hashed_passwd,omitempty"`

	// PlainTextPasswd is a plain-text password, hashed at render time.
	PlainTextPasswd string `json:"plain_text_passwd,omitempty"`

	// SSHKeys lists authorized public keys for the user.
	SSHKeys []string `json:"ssh_keys,omitempty"`

	// Sudo is the sudoers directive. Accepts a string or a boolean: true
	// selects the default directive, false strips sudo access.
	Sudo *SudoValue `json:"sudo,omitempty"`

	// Shell is the login shell (default /bin/bash).
	Shell string `json:"shell,omitempty"`

	// LockPasswd disables password login when true (default false).
	LockPasswd *bool `json:"lock_passwd,omitempty"`

	// Gecos is the account description (GECOS field).
	Gecos string `json:"gecos,omitempty"`

	// PrimaryGroup is the user's primary group.
	PrimaryGroup string `json:"primary_group,omitempty"`

	// Groups lists supplementary groups.
	Groups []string `json:"groups,omitempty"`

	// System creates a system account when true.
	System *bool `json:"system,omitempty"`
}

// SudoValue represents the sudo field of a user entry. The configuration
// accepts either a sudoers rule string or a boolean: true selects
// DefaultSudoRule, false withholds sudo access entirely.
type SudoValue struct {
	// Rule is the sudoers directive. Meaningless when Grant is false.
	Rule string

	// Grant reports whether the user receives a sudo directive at all.
	Grant bool
}

// UnmarshalJSON accepts a string or boolean sudo value.
func (s *SudoValue) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			s.Grant = true
			s.Rule = DefaultSudoRule
		} else {
			s.Grant = false
			s.Rule = ""
		}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Grant = true
		s.Rule = str
		return nil
	}
	return fmt.Errorf("sudo must be a string or a boolean")
}

// MarshalJSON emits the rule string, or false when sudo is withheld.
func (s SudoValue) MarshalJSON() ([]byte, error) {
	if !s.Grant {
		return json.Marshal(false)
	}
	return json.Marshal(s.Rule)
}
