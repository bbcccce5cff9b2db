package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k3sforge/k3sforge/pkg/provision"
	pve "github.com/k3sforge/k3sforge/pkg/proxmox"
)

func newProvisionCommand() *cobra.Command {
	var vmidArg string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision cloud-init configuration onto cluster VMs",
		Long: `Provision synthesizes each target node's cloud-init and network
documents, uploads them to snippet storage over SFTP, points the VM's
cicustom option at them, and reboots running VMs so the new
configuration applies. Stopped VMs pick it up on their next start.

Plain-text passwords are hashed with sha512-crypt before upload.`,
		Example: `  # Provision every configured node
  kforge provision

  # Provision two specific VMs
  kforge provision --vmid 1211,1221`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			vmids, err := provision.ParseVMIDs(vmidArg)
			if err != nil {
				return err
			}

			client, err := pve.NewClient(&cfg.Proxmox)
			if err != nil {
				return err
			}

			pipeline := provision.New(cfg, client, provision.NewSFTPUploader(&cfg.Proxmox))
			result, err := pipeline.Run(cmd.Context(), vmids)
			if err != nil {
				return err
			}
			if failed := result.Failed(); failed > 0 {
				return fmt.Errorf("provisioning failed for %d of %d VMs", failed, len(result.VMs))
			}
			fmt.Printf("Provisioned %d VMs\n", len(result.VMs))
			return nil
		},
	}

	cmd.Flags().StringVar(&vmidArg, "vmid", "", "comma-separated vmids to provision (default: all configured)")

	return cmd
}
