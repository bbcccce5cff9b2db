// Package provision drives the cloud-init provisioning pipeline: it runs
// the synthesis engine once per invocation, renders each target node's
// documents, uploads them to snippet storage over SFTP, and points the
// VM's cicustom option at them.
package provision

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/k3sforge/k3sforge/pkg/cloudinit"
	"github.com/k3sforge/k3sforge/pkg/config"
	"github.com/k3sforge/k3sforge/pkg/netconf"
	pve "github.com/k3sforge/k3sforge/pkg/proxmox"
	"github.com/k3sforge/k3sforge/pkg/synth"
	"github.com/k3sforge/k3sforge/pkg/transports/ssh"
)

// API is the subset of the Proxmox client the pipeline needs. *pve.Client
// satisfies it; tests substitute a fake.
type API interface {
	FindVMNode(ctx context.Context, vmid int) (string, error)
	SnippetStorage(ctx context.Context, node string) (*pve.SnippetStorage, error)
	SetCloudInitCustom(ctx context.Context, vmid int, value string) error
	VMRunning(ctx context.Context, vmid int) (bool, error)
	RestartVM(ctx context.Context, vmid int) error
}

// Uploader writes snippet files onto a Proxmox host.
type Uploader interface {
	Upload(ctx context.Context, host, dir, filename string, content []byte) error
}

// Pipeline provisions cloud-init configuration onto cluster VMs.
type Pipeline struct {
	cfg      *config.Config
	api      API
	uploader Uploader
}

// New builds a pipeline over the given collaborators.
func New(cfg *config.Config, api API, uploader Uploader) *Pipeline {
	return &Pipeline{cfg: cfg, api: api, uploader: uploader}
}

// VMResult is the outcome of provisioning one VM.
type VMResult struct {
	// VMID is the provisioned VM.
	VMID int

	// Err is nil on success.
	Err error
}

// Result collects per-VM outcomes of one pipeline run.
type Result struct {
	// VMs lists per-VM outcomes in processing order.
	VMs []VMResult
}

// Failed counts the VMs whose provisioning failed.
func (r *Result) Failed() int {
	n := 0
	for _, vm := range r.VMs {
		if vm.Err != nil {
			n++
		}
	}
	return n
}

// Run provisions the requested vmids, or every configured node when vmids
// is empty. Synthesis runs exactly once and atomically: a configuration
// error aborts the run before any VM is touched. Per-VM failures after
// that point are collected rather than aborting the remaining VMs.
// Requested vmids that are not configured are warned about and skipped.
func (p *Pipeline) Run(ctx context.Context, vmids []int) (*Result, error) {
	assembled, err := synth.Assemble(p.cfg)
	if err != nil {
		return nil, err
	}

	targets := vmids
	if len(targets) == 0 {
		targets = p.cfg.VMIDs()
	}

	result := &Result{}
	for _, vmid := range targets {
		node, ok := assembled[vmid]
		if !ok {
			log.Warn().Int("vmid", vmid).Msg("vmid is not declared in the configuration, skipping")
			continue
		}
		err := p.provisionVM(ctx, node)
		if err != nil {
			log.Error().Err(err).Int("vmid", vmid).Msg("provisioning failed")
		} else {
			log.Info().Int("vmid", vmid).Str("role", string(node.Role)).Msg("provisioned cloud-init configuration")
		}
		result.VMs = append(result.VMs, VMResult{VMID: vmid, Err: err})
	}
	return result, nil
}

func (p *Pipeline) provisionVM(ctx context.Context, node synth.Node) error {
	hostNode, err := p.api.FindVMNode(ctx, node.VMID)
	if err != nil {
		return err
	}
	storage, err := p.api.SnippetStorage(ctx, hostNode)
	if err != nil {
		return err
	}

	// Shared storage is reachable through the API host; node-local storage
	// must be written on the node hosting the VM.
	uploadHost := ssh.StripPort(p.cfg.Proxmox.Host)
	if !storage.Shared {
		uploadHost = ssh.NodeHostname(p.cfg.Proxmox.Host, hostNode)
	}

	// Plain-text passwords are pre-hashed here, at the provisioning
	// boundary, so they never land on snippet storage in the clear.
	userData, err := cloudinit.Render(node.CloudInit, cloudinit.WithHashedPasswords(cloudinit.HashSHA512))
	if err != nil {
		return fmt.Errorf("rendering user-data for VM %d: %w", node.VMID, err)
	}
	if err := p.uploader.Upload(ctx, uploadHost, storage.SnippetDir(), UserDataFilename(node.VMID), userData); err != nil {
		return err
	}

	hasNetwork := netconf.ShouldRender(node.Network)
	if hasNetwork {
		netData, err := netconf.Render(node.Network)
		if err != nil {
			return fmt.Errorf("rendering network-config for VM %d: %w", node.VMID, err)
		}
		if err := p.uploader.Upload(ctx, uploadHost, storage.SnippetDir(), NetworkConfigFilename(node.VMID), netData); err != nil {
			return err
		}
	}

	if err := p.api.SetCloudInitCustom(ctx, node.VMID, CICustomValue(storage.Name, node.VMID, hasNetwork)); err != nil {
		return err
	}

	running, err := p.api.VMRunning(ctx, node.VMID)
	if err != nil {
		return err
	}
	if !running {
		log.Info().Int("vmid", node.VMID).Msg("VM is stopped, configuration applies on next start")
		return nil
	}
	log.Info().Int("vmid", node.VMID).Msg("rebooting VM to apply cloud-init configuration")
	return p.api.RestartVM(ctx, node.VMID)
}

// UserDataFilename is the snippet filename for a VM's user-data.
func UserDataFilename(vmid int) string {
	return fmt.Sprintf("userconfig-%d.yaml", vmid)
}

// NetworkConfigFilename is the snippet filename for a VM's network-config.
func NetworkConfigFilename(vmid int) string {
	return fmt.Sprintf("networkconfig-%d.yaml", vmid)
}

// CICustomValue formats the VM's cicustom option for the uploaded
// snippets, with the network part present only when a network-config
// snippet exists.
func CICustomValue(storage string, vmid int, hasNetwork bool) string {
	value := fmt.Sprintf("user=%s:snippets/%s", storage, UserDataFilename(vmid))
	if hasNetwork {
		value += fmt.Sprintf(",network=%s:snippets/%s", storage, NetworkConfigFilename(vmid))
	}
	return value
}
