package config

import "slices"

// NetworkFragment is a netplan-v2-style network section. The global
// cloud-init block may carry only Version, Renderer, and the DHCP override
// defaults; device maps are valid only inside a node's cloud-init block.
type NetworkFragment struct {
	// Version is the network config format version; must be 2 when set.
	Version int `json:"version,omitempty" yaml:"version,omitempty" validate:"omitempty,eq=2"`

	// Renderer selects the netplan backend (e.g., "networkd").
	Renderer string `json:"renderer,omitempty" yaml:"renderer,omitempty"`

	// DHCP4Overrides are fleet-wide defaults applied to devices that enable
	// dhcp4 without declaring their own overrides.
	DHCP4Overrides *DHCPOverrides `json:"dhcp4-overrides,omitempty" yaml:"dhcp4-overrides,omitempty"`

	// DHCP6Overrides are fleet-wide defaults applied to devices that enable
	// dhcp6 without declaring their own overrides.
	DHCP6Overrides *DHCPOverrides `json:"dhcp6-overrides,omitempty" yaml:"dhcp6-overrides,omitempty"`

	// Ethernets maps device ids to ethernet definitions.
	Ethernets map[string]*Ethernet `json:"ethernets,omitempty" yaml:"ethernets,omitempty" validate:"omitempty,dive"`

	// Bonds maps device ids to bond definitions.
	Bonds map[string]*Bond `json:"bonds,omitempty" yaml:"bonds,omitempty" validate:"omitempty,dive"`

	// Bridges maps device ids to bridge definitions.
	Bridges map[string]*Bridge `json:"bridges,omitempty" yaml:"bridges,omitempty" validate:"omitempty,dive"`

	// VLANs maps device ids to vlan definitions.
	VLANs map[string]*VLAN `json:"vlans,omitempty" yaml:"vlans,omitempty" validate:"omitempty,dive"`
}

// HasDevices reports whether the fragment declares any device.
func (f *NetworkFragment) HasDevices() bool {
	if f == nil {
		return false
	}
	return len(f.Ethernets)+len(f.Bonds)+len(f.Bridges)+len(f.VLANs) > 0
}

// CommonDevice holds the properties shared by every device kind.
type CommonDevice struct {
	// Match selects an existing interface by name, MAC, or driver.
	Match *MatchSpec `json:"match,omitempty" yaml:"match,omitempty"`

	// DHCP4 enables DHCP for IPv4.
	DHCP4 *bool `json:"dhcp4,omitempty" yaml:"dhcp4,omitempty"`

	// DHCP6 enables DHCP for IPv6.
	DHCP6 *bool `json:"dhcp6,omitempty" yaml:"dhcp6,omitempty"`

	// Addresses lists static addresses in CIDR notation.
	Addresses []string `json:"addresses,omitempty" yaml:"addresses,omitempty"`

	// Routes lists static routes.
	Routes []Route `json:"routes,omitempty" yaml:"routes,omitempty"`

	// Nameservers configures DNS servers and search domains.
	Nameservers *Nameservers `json:"nameservers,omitempty" yaml:"nameservers,omitempty"`

	// MTU sets the interface MTU.
	MTU int `json:"mtu,omitempty" yaml:"mtu,omitempty"`

	// DHCP4Overrides tunes DHCP4 lease handling for this device.
	DHCP4Overrides *DHCPOverrides `json:"dhcp4-overrides,omitempty" yaml:"dhcp4-overrides,omitempty"`

	// DHCP6Overrides tunes DHCP6 lease handling for this device.
	DHCP6Overrides *DHCPOverrides `json:"dhcp6-overrides,omitempty" yaml:"dhcp6-overrides,omitempty"`
}

// MatchSpec selects a physical interface.
type MatchSpec struct {
	// Name matches the interface name, globs allowed.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// MACAddress matches the interface hardware address.
	MACAddress string `json:"macaddress,omitempty" yaml:"macaddress,omitempty"`

	// Driver matches the kernel driver name.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
}

// Route is a static route entry.
type Route struct {
	// To is the destination in CIDR notation, or "default".
	To string `json:"to,omitempty" yaml:"to,omitempty"`

	// Via is the gateway address.
	Via string `json:"via,omitempty" yaml:"via,omitempty"`

	// Metric is the route priority.
	Metric int `json:"metric,omitempty" yaml:"metric,omitempty"`
}

// Nameservers configures DNS for a device.
type Nameservers struct {
	// Search lists DNS search domains.
	Search []string `json:"search,omitempty" yaml:"search,omitempty"`

	// Addresses lists DNS server addresses.
	Addresses []string `json:"addresses,omitempty" yaml:"addresses,omitempty"`
}

// DHCPOverrides tunes how DHCP lease values are applied.
type DHCPOverrides struct {
	// UseDNS applies DNS servers from the lease.
	UseDNS *bool `json:"use-dns,omitempty" yaml:"use-dns,omitempty"`

	// UseNTP applies NTP servers from the lease.
	UseNTP *bool `json:"use-ntp,omitempty" yaml:"use-ntp,omitempty"`

	// UseDomains applies search domains from the lease.
	UseDomains *bool `json:"use-domains,omitempty" yaml:"use-domains,omitempty"`

	// UseRoutes applies routes from the lease.
	UseRoutes *bool `json:"use-routes,omitempty" yaml:"use-routes,omitempty"`

	// UseHostname applies the hostname from the lease.
	UseHostname *bool `json:"use-hostname,omitempty" yaml:"use-hostname,omitempty"`

	// SendHostname sends the local hostname to the DHCP server.
	SendHostname *bool `json:"send-hostname,omitempty" yaml:"send-hostname,omitempty"`

	// Hostname overrides the hostname sent to the DHCP server.
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`

	// RouteMetric sets the metric for routes from the lease.
	RouteMetric int `json:"route-metric,omitempty" yaml:"route-metric,omitempty"`
}

// Ethernet is a physical (or matched) ethernet device.
type Ethernet struct {
	CommonDevice `yaml:",inline"`
}

// Bond aggregates member ethernets.
type Bond struct {
	CommonDevice `yaml:",inline"`

	// Interfaces lists member device ids. Required and non-empty.
	Interfaces []string `json:"interfaces,omitempty" yaml:"interfaces,omitempty" validate:"required,min=1"`

	// Parameters tunes bonding behavior.
	Parameters *BondParameters `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// BondParameters tunes bond behavior.
type BondParameters struct {
	// Mode is the bonding mode (e.g., "802.3ad", "active-backup").
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Primary is the preferred member in active-backup mode.
	Primary string `json:"primary,omitempty" yaml:"primary,omitempty"`

	// MIIMonitorInterval is the link monitoring interval in milliseconds.
	MIIMonitorInterval int `json:"mii-monitor-interval,omitempty" yaml:"mii-monitor-interval,omitempty"`

	// TransmitHashPolicy selects the slave for outgoing traffic.
	TransmitHashPolicy string `json:"transmit-hash-policy,omitempty" yaml:"transmit-hash-policy,omitempty"`

	// LACPRate sets the LACPDU transmission rate ("slow" or "fast").
	LACPRate string `json:"lacp-rate,omitempty" yaml:"lacp-rate,omitempty"`
}

// Bridge connects member devices on a software bridge.
type Bridge struct {
	CommonDevice `yaml:",inline"`

	// Interfaces lists member device ids. Required and non-empty.
	Interfaces []string `json:"interfaces,omitempty" yaml:"interfaces,omitempty" validate:"required,min=1"`

	// Parameters tunes bridge behavior.
	Parameters *BridgeParameters `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// BridgeParameters tunes bridge behavior.
type BridgeParameters struct {
	// STP enables the spanning tree protocol.
	STP *bool `json:"stp,omitempty" yaml:"stp,omitempty"`

	// Priority is the bridge priority (lower wins root election).
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// ForwardDelay is the STP forwarding delay in seconds.
	ForwardDelay int `json:"forward-delay,omitempty" yaml:"forward-delay,omitempty"`
}

// VLAN is a tagged sub-interface of another device.
type VLAN struct {
	CommonDevice `yaml:",inline"`

	// ID is the VLAN tag, 0 through 4094.
	ID int `json:"id" yaml:"id" validate:"min=0,max=4094"`

	// Link is the id of the parent device. Required.
	Link string `json:"link" yaml:"link" validate:"required"`
}

// Clone returns a deep copy of the fragment.
func (f *NetworkFragment) Clone() *NetworkFragment {
	if f == nil {
		return nil
	}
	out := &NetworkFragment{
		Version:        f.Version,
		Renderer:       f.Renderer,
		DHCP4Overrides: f.DHCP4Overrides.Clone(),
		DHCP6Overrides: f.DHCP6Overrides.Clone(),
	}
	if f.Ethernets != nil {
		out.Ethernets = make(map[string]*Ethernet, len(f.Ethernets))
		for id, d := range f.Ethernets {
			out.Ethernets[id] = d.Clone()
		}
	}
	if f.Bonds != nil {
		out.Bonds = make(map[string]*Bond, len(f.Bonds))
		for id, d := range f.Bonds {
			out.Bonds[id] = d.Clone()
		}
	}
	if f.Bridges != nil {
		out.Bridges = make(map[string]*Bridge, len(f.Bridges))
		for id, d := range f.Bridges {
			out.Bridges[id] = d.Clone()
		}
	}
	if f.VLANs != nil {
		out.VLANs = make(map[string]*VLAN, len(f.VLANs))
		for id, d := range f.VLANs {
			out.VLANs[id] = d.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the device.
func (d *Ethernet) Clone() *Ethernet {
	if d == nil {
		return nil
	}
	return &Ethernet{CommonDevice: d.CommonDevice.clone()}
}

// Clone returns a deep copy of the device.
func (d *Bond) Clone() *Bond {
	if d == nil {
		return nil
	}
	out := &Bond{
		CommonDevice: d.CommonDevice.clone(),
		Interfaces:   slices.Clone(d.Interfaces),
	}
	if d.Parameters != nil {
		p := *d.Parameters
		out.Parameters = &p
	}
	return out
}

// Clone returns a deep copy of the device.
func (d *Bridge) Clone() *Bridge {
	if d == nil {
		return nil
	}
	out := &Bridge{
		CommonDevice: d.CommonDevice.clone(),
		Interfaces:   slices.Clone(d.Interfaces),
	}
	if d.Parameters != nil {
		p := *d.Parameters
		p.STP = cloneBool(d.Parameters.STP)
		out.Parameters = &p
	}
	return out
}

// Clone returns a deep copy of the device.
func (d *VLAN) Clone() *VLAN {
	if d == nil {
		return nil
	}
	return &VLAN{
		CommonDevice: d.CommonDevice.clone(),
		ID:           d.ID,
		Link:         d.Link,
	}
}

// Clone returns a deep copy of the overrides.
func (o *DHCPOverrides) Clone() *DHCPOverrides {
	if o == nil {
		return nil
	}
	return &DHCPOverrides{
		UseDNS:       cloneBool(o.UseDNS),
		UseNTP:       cloneBool(o.UseNTP),
		UseDomains:   cloneBool(o.UseDomains),
		UseRoutes:    cloneBool(o.UseRoutes),
		UseHostname:  cloneBool(o.UseHostname),
		SendHostname: cloneBool(o.SendHostname),
		Hostname:     o.Hostname,
		RouteMetric:  o.RouteMetric,
	}
}

func (c CommonDevice) clone() CommonDevice {
	out := c
	if c.Match != nil {
		m := *c.Match
		out.Match = &m
	}
	out.DHCP4 = cloneBool(c.DHCP4)
	out.DHCP6 = cloneBool(c.DHCP6)
	out.Addresses = slices.Clone(c.Addresses)
	out.Routes = slices.Clone(c.Routes)
	if c.Nameservers != nil {
		out.Nameservers = &Nameservers{
			Search:    slices.Clone(c.Nameservers.Search),
			Addresses: slices.Clone(c.Nameservers.Addresses),
		}
	}
	out.DHCP4Overrides = c.DHCP4Overrides.Clone()
	out.DHCP6Overrides = c.DHCP6Overrides.Clone()
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
