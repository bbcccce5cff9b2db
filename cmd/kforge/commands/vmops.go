package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pve "github.com/k3sforge/k3sforge/pkg/proxmox"
)

func newStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start (VMID|all)",
		Short: "Start a cluster VM, or all configured VMs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVMOperation(cmd.Context(), args[0], "start",
				func(ctx context.Context, client *pve.Client, vmid int) error {
					return client.StartVM(ctx, vmid)
				})
		},
	}
}

func newStopCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop (VMID|all)",
		Short: "Stop a cluster VM, or all configured VMs",
		Long: `Stop shuts a VM down gracefully through the guest. With --force the VM
is stopped hard, like pulling the power cord.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVMOperation(cmd.Context(), args[0], "stop",
				func(ctx context.Context, client *pve.Client, vmid int) error {
					return client.StopVM(ctx, vmid, force)
				})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "hard stop instead of graceful shutdown")
	return cmd
}

func newRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart (VMID|all)",
		Short: "Restart a cluster VM, or all configured VMs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVMOperation(cmd.Context(), args[0], "restart",
				func(ctx context.Context, client *pve.Client, vmid int) error {
					return client.RestartVM(ctx, vmid)
				})
		},
	}
}

// runVMOperation applies op to one vmid or to every configured node.
// When targeting all nodes a per-VM failure does not stop the rest; the
// command fails at the end with a summary.
func runVMOperation(ctx context.Context, target, opName string, op func(context.Context, *pve.Client, int) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := pve.NewClient(&cfg.Proxmox)
	if err != nil {
		return err
	}

	var vmids []int
	if target == "all" {
		vmids = cfg.VMIDs()
		if len(vmids) == 0 {
			return fmt.Errorf("no nodes declared in the configuration")
		}
	} else {
		vmid, err := strconv.Atoi(target)
		if err != nil || vmid <= 0 {
			return fmt.Errorf("invalid vmid %q, expected a positive integer or \"all\"", target)
		}
		vmids = []int{vmid}
	}

	failed := 0
	for _, vmid := range vmids {
		if err := op(ctx, client, vmid); err != nil {
			log.Error().Err(err).Int("vmid", vmid).Str("op", opName).Msg("VM operation failed")
			failed++
			continue
		}
		fmt.Printf("%s: VM %d ok\n", opName, vmid)
	}
	if failed > 0 {
		return fmt.Errorf("%s failed for %d of %d VMs", opName, failed, len(vmids))
	}
	return nil
}
