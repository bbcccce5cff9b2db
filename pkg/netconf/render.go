package netconf

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/k3sforge/k3sforge/pkg/config"
)

// networkBody is the serialized shape of a document under the cloud-init
// "network:" key. yaml.v3 emits map keys in sorted order, which together
// with the fixed field order keeps the output byte-identical across runs.
type networkBody struct {
	Version   int                         `yaml:"version"`
	Renderer  string                      `yaml:"renderer,omitempty"`
	Ethernets map[string]*config.Ethernet `yaml:"ethernets,omitempty"`
	Bonds     map[string]*config.Bond     `yaml:"bonds,omitempty"`
	Bridges   map[string]*config.Bridge   `yaml:"bridges,omitempty"`
	VLANs     map[string]*config.VLAN     `yaml:"vlans,omitempty"`
}

// Render serializes the document as a cloud-init network-config snippet:
// the device graph wrapped in a top-level "network" mapping. Callers
// should only upload the result when the document actually carries
// devices or an explicit renderer; ShouldRender reports that.
func Render(doc *Document) ([]byte, error) {
	body := networkBody{
		Version:   doc.Version,
		Renderer:  doc.Renderer,
		Ethernets: emptyToNil(doc.Ethernets),
		Bonds:     emptyToNil(doc.Bonds),
		Bridges:   emptyToNil(doc.Bridges),
		VLANs:     emptyToNil(doc.VLANs),
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]networkBody{"network": body}); err != nil {
		return nil, fmt.Errorf("encoding network-config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding network-config: %w", err)
	}
	return buf.Bytes(), nil
}

// ShouldRender reports whether the document warrants a network-config
// snippet at all. A device-less document without an explicit renderer
// means the node uses the image's default DHCP networking and must not
// override it.
func ShouldRender(doc *Document) bool {
	return doc.HasDevices() || doc.Renderer != ""
}

func emptyToNil[V any](m map[string]V) map[string]V {
	if len(m) == 0 {
		return nil
	}
	return m
}
