package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/k3sforge/k3sforge/pkg/config"
	"github.com/k3sforge/k3sforge/pkg/provision"
	pve "github.com/k3sforge/k3sforge/pkg/proxmox"
	"github.com/k3sforge/k3sforge/pkg/transports/ssh"
)

func newInfoCommand() *cobra.Command {
	var withDiscovery bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show cluster, node, and k3s VM status",
		Long: `Info connects to the Proxmox API and prints the cluster state, a
per-node table with snippet storage and SFTP reachability, and the k3s
VMs known from the configuration. With --discover, tagged VMs that are
not yet in the configuration are listed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := pve.NewClient(&cfg.Proxmox)
			if err != nil {
				return err
			}
			return runInfo(cmd.Context(), cfg, client, withDiscovery)
		},
	}
	cmd.Flags().BoolVar(&withDiscovery, "discover", false, "include tagged VMs missing from the configuration")
	return cmd
}

func runInfo(ctx context.Context, cfg *config.Config, client *pve.Client, withDiscovery bool) error {
	version, err := client.Version(ctx)
	if err != nil {
		return err
	}
	status, err := client.ClusterStatus(ctx)
	if err != nil {
		return err
	}

	name := status.Name
	if name == "" {
		name = "(standalone)"
	}
	fmt.Printf("Proxmox VE %s\n", version)
	fmt.Printf("Cluster:   %s\n", name)
	fmt.Printf("Quorum:    %s\n", yesNo(status.Quorate))
	fmt.Printf("Nodes:     %d online / %d total\n\n", len(status.OnlineNodes), status.TotalNodes)

	printNodeTable(ctx, cfg, client, status.OnlineNodes)

	discovered, err := client.DiscoverVMs(ctx)
	if err != nil {
		// Discovery rides on top of the node scan; a failure here should not
		// hide the cluster state already printed.
		log.Error().Err(err).Msg("VM discovery failed")
		return nil
	}
	printVMTable(cfg, discovered, withDiscovery)
	return nil
}

// printNodeTable prints one row per online cluster node: the hostname
// SFTP would use, the node's snippet storage, and whether the snippets
// directory is actually writable over SFTP.
func printNodeTable(ctx context.Context, cfg *config.Config, client *pve.Client, nodes []string) {
	apiHost := ssh.StripPort(cfg.Proxmox.Host)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tHOST\tSNIPPET STORAGE\tSFTP")
	for _, node := range nodes {
		host := ssh.NodeHostname(apiHost, node)

		storageName := "-"
		snippetDir := ""
		storage, err := client.SnippetStorage(ctx, node)
		if err != nil {
			log.Warn().Err(err).Str("node", node).Msg("no snippet storage")
		} else {
			storageName = storage.Name
			snippetDir = storage.SnippetDir()
			if storage.Shared {
				host = apiHost
			}
		}

		probe := "skipped"
		if snippetDir != "" {
			result, err := ssh.CheckConnectivity(ctx, provision.SSHConfig(&cfg.Proxmox, host), snippetDir)
			switch {
			case err != nil:
				probe = "failed"
				log.Debug().Err(err).Str("host", host).Msg("connectivity probe failed")
			case result.SnippetsWritable:
				probe = "ok (" + result.AuthMethod + ")"
			default:
				probe = "not writable"
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", node, host, storageName, probe)
	}
	w.Flush()
	fmt.Println()
}

// printVMTable cross-references the configured nodes against the live
// tag scan. Configured-but-missing VMs show up as "missing"; with
// discovery enabled, tagged-but-unconfigured VMs are appended.
func printVMTable(cfg *config.Config, discovered []pve.DiscoveredVM, withDiscovery bool) {
	byVMID := make(map[int]pve.DiscoveredVM, len(discovered))
	for _, vm := range discovered {
		byVMID[vm.VMID] = vm
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VMID\tNAME\tROLE\tSTATUS\tNODE\tCONFIGURED")
	for _, vmid := range cfg.VMIDs() {
		node := cfg.Node(vmid)
		if vm, ok := byVMID[vmid]; ok {
			role := string(vm.Role)
			if vm.Role != node.Role {
				role = fmt.Sprintf("%s (configured: %s)", vm.Role, node.Role)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\tyes\n", vmid, vm.Name, role, vm.Status, vm.Node)
			delete(byVMID, vmid)
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\tmissing\t-\tyes\n", vmid, node.Name, node.Role)
	}
	if withDiscovery {
		for _, vm := range discovered {
			if _, ok := byVMID[vm.VMID]; !ok {
				continue
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\tno\n", vm.VMID, vm.Name, vm.Role, vm.Status, vm.Node)
		}
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
