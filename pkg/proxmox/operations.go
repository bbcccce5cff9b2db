package proxmox

import (
	"context"
	"fmt"
	"strings"

	"github.com/luthermonson/go-proxmox"
	"github.com/rs/zerolog/log"
)

// StatusRunning and StatusStopped are the VM power states this tool acts
// on; the API reports a few more transient states that pass through as-is.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// FindVM locates a VM by vmid across all online nodes.
func (c *Client) FindVM(ctx context.Context, vmid int) (*proxmox.VirtualMachine, error) {
	nodeNames, err := c.OnlineNodeNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, nodeName := range nodeNames {
		node, err := c.api.Node(ctx, nodeName)
		if err != nil {
			return nil, fmt.Errorf("fetching node %q: %w", nodeName, err)
		}
		vms, err := node.VirtualMachines(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing VMs on node %q: %w", nodeName, err)
		}
		for _, vm := range vms {
			if int(vm.VMID) == vmid {
				// Re-fetch through the node so the VM carries its full
				// configuration, not just the list summary.
				full, err := node.VirtualMachine(ctx, vmid)
				if err != nil {
					return nil, fmt.Errorf("fetching VM %d on node %q: %w", vmid, nodeName, err)
				}
				return full, nil
			}
		}
	}
	return nil, fmt.Errorf("VM %d not found on any online node", vmid)
}

// FindVMNode returns the name of the node hosting the VM.
func (c *Client) FindVMNode(ctx context.Context, vmid int) (string, error) {
	vm, err := c.FindVM(ctx, vmid)
	if err != nil {
		return "", err
	}
	return vm.Node, nil
}

// VMStatus returns the VM's power state.
func (c *Client) VMStatus(ctx context.Context, vmid int) (string, error) {
	vm, err := c.FindVM(ctx, vmid)
	if err != nil {
		return "", err
	}
	return vm.Status, nil
}

// VMRunning reports whether the VM is currently running.
func (c *Client) VMRunning(ctx context.Context, vmid int) (bool, error) {
	status, err := c.VMStatus(ctx, vmid)
	if err != nil {
		return false, err
	}
	return status == StatusRunning, nil
}

// StartVM starts the VM and waits for the task to finish. Starting an
// already running VM is a no-op.
func (c *Client) StartVM(ctx context.Context, vmid int) error {
	vm, err := c.FindVM(ctx, vmid)
	if err != nil {
		return err
	}
	if vm.Status == StatusRunning {
		log.Info().Int("vmid", vmid).Msg("VM is already running")
		return nil
	}
	task, err := vm.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting VM %d: %w", vmid, err)
	}
	return c.waitTask(ctx, task, "start", vmid)
}

// StopVM stops the VM: a graceful guest shutdown by default, a hard stop
// when force is set.
func (c *Client) StopVM(ctx context.Context, vmid int, force bool) error {
	vm, err := c.FindVM(ctx, vmid)
	if err != nil {
		return err
	}
	if vm.Status == StatusStopped {
		log.Info().Int("vmid", vmid).Msg("VM is already stopped")
		return nil
	}

	var task *proxmox.Task
	if force {
		task, err = vm.Stop(ctx)
	} else {
		task, err = vm.Shutdown(ctx)
	}
	if err != nil {
		return fmt.Errorf("stopping VM %d: %w", vmid, err)
	}
	return c.waitTask(ctx, task, "stop", vmid)
}

// RestartVM reboots a running VM. A stopped VM is started instead.
func (c *Client) RestartVM(ctx context.Context, vmid int) error {
	vm, err := c.FindVM(ctx, vmid)
	if err != nil {
		return err
	}
	if vm.Status == StatusStopped {
		log.Info().Int("vmid", vmid).Msg("VM is stopped, starting instead of restarting")
		task, err := vm.Start(ctx)
		if err != nil {
			return fmt.Errorf("starting VM %d: %w", vmid, err)
		}
		return c.waitTask(ctx, task, "start", vmid)
	}
	task, err := vm.Reboot(ctx)
	if err != nil {
		return fmt.Errorf("restarting VM %d: %w", vmid, err)
	}
	return c.waitTask(ctx, task, "restart", vmid)
}

// SetCloudInitCustom points the VM's cicustom option at the uploaded
// snippet files and waits for the config change to apply.
func (c *Client) SetCloudInitCustom(ctx context.Context, vmid int, value string) error {
	vm, err := c.FindVM(ctx, vmid)
	if err != nil {
		return err
	}
	task, err := vm.Config(ctx, proxmox.VirtualMachineOption{Name: "cicustom", Value: value})
	if err != nil {
		return fmt.Errorf("setting cicustom on VM %d: %w", vmid, err)
	}
	log.Debug().Int("vmid", vmid).Str("cicustom", value).Msg("configured cloud-init snippets")
	return c.waitTask(ctx, task, "config", vmid)
}

// GuestAgentStatus is a best-effort view of a VM's QEMU guest agent.
type GuestAgentStatus struct {
	// Enabled reports whether the agent device is enabled in the VM config.
	Enabled bool

	// Running reports whether the agent answered inside the guest. Always
	// false when the VM is stopped or the agent is disabled.
	Running bool
}

// GuestAgent probes the VM's QEMU guest agent. Probe failures degrade to
// Running=false instead of erroring: a dead agent is a reportable state,
// not a failure of the caller's operation.
func (c *Client) GuestAgent(ctx context.Context, vm *proxmox.VirtualMachine) GuestAgentStatus {
	status := GuestAgentStatus{}
	if vm.VirtualMachineConfig != nil {
		agent := vm.VirtualMachineConfig.Agent
		status.Enabled = agent == "1" || strings.HasPrefix(agent, "1,") || strings.Contains(agent, "enabled=1")
	}
	if status.Enabled && vm.Status == StatusRunning {
		if _, err := vm.AgentOsInfo(ctx); err == nil {
			status.Running = true
		}
	}
	return status
}

func (c *Client) waitTask(ctx context.Context, task *proxmox.Task, op string, vmid int) error {
	if err := task.Wait(ctx, taskPollInterval, taskTimeout); err != nil {
		return fmt.Errorf("waiting for %s of VM %d: %w", op, vmid, err)
	}
	log.Debug().Int("vmid", vmid).Str("op", op).Msg("task completed")
	return nil
}
