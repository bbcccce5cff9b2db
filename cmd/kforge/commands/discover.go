package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/k3sforge/k3sforge/pkg/config"
	pve "github.com/k3sforge/k3sforge/pkg/proxmox"
)

func newDiscoverCommand() *cobra.Command {
	var (
		format      string
		writeConfig bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find k3s-tagged VMs across the cluster",
		Long: `Discover scans every online Proxmox node for VMs carrying exactly one
of the k3s role tags (k3s-server, k3s-agent, k3s-storage). VMs with no
k3s tag, or with more than one, are skipped.

With --write-config the discovered nodes are merged into the
configuration file: existing node entries keep their per-node settings,
new VMs are appended, and entries for VMs that no longer exist are left
in place for the operator to review.`,
		Example: `  # Print discovered VMs as a table
  kforge discover

  # Emit the nodes array as JSON
  kforge discover --format json

  # Merge discovered VMs into config.json (backs up the original)
  kforge discover --write-config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q, expected table or json", format)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			client, err := pve.NewClient(&cfg.Proxmox)
			if err != nil {
				return err
			}

			discovered, err := client.DiscoverVMs(cmd.Context())
			if err != nil {
				return err
			}
			if len(discovered) == 0 {
				fmt.Println("No k3s-tagged VMs found.")
				fmt.Printf("Expected tags: %s\n", strings.Join(pve.RoleTags(), ", "))
				return nil
			}

			if writeConfig {
				return mergeDiscoveredNodes(configFileOrDefault(), discovered)
			}

			if format == "json" {
				out, err := json.MarshalIndent(discovered, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VMID\tNAME\tROLE\tSTATUS\tNODE\tQGA")
			for _, vm := range discovered {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					vm.VMID, vm.Name, vm.Role, vm.Status, vm.Node, qgaState(vm.Agent))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")
	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "merge discovered nodes into the configuration file")

	return cmd
}

func qgaState(agent pve.GuestAgentStatus) string {
	switch {
	case !agent.Enabled:
		return "disabled"
	case agent.Running:
		return "running"
	default:
		return "not running"
	}
}

func configFileOrDefault() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigFile
}

// mergeDiscoveredNodes folds the discovered VMs into the configuration
// file's nodes array. The merge works on the raw JSON tree rather than
// the decoded Config so ENV: markers and secrets are written back
// exactly as they were on disk.
func mergeDiscoveredNodes(path string, discovered []pve.DiscoveredVM) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading configuration file %q: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing configuration file %q: %w", path, err)
	}

	backup := path + ".backup"
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return fmt.Errorf("writing backup %q: %w", backup, err)
	}
	log.Info().Str("path", backup).Msg("backed up configuration file")

	nodes, _ := raw["nodes"].([]any)
	byVMID := make(map[int]map[string]any, len(nodes))
	for _, entry := range nodes {
		node, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if vmid, ok := node["vmid"].(float64); ok {
			byVMID[int(vmid)] = node
		}
	}

	added, updated := 0, 0
	for _, vm := range discovered {
		if node, ok := byVMID[vm.VMID]; ok {
			// Tags are authoritative for the role; everything else the
			// operator wrote stays untouched.
			if node["role"] != string(vm.Role) {
				node["role"] = string(vm.Role)
				updated++
			}
			node["name"] = vm.Name
			continue
		}
		nodes = append(nodes, map[string]any{
			"vmid": vm.VMID,
			"role": string(vm.Role),
			"name": vm.Name,
		})
		added++
	}
	raw["nodes"] = nodes

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("writing configuration file %q: %w", path, err)
	}

	fmt.Printf("Updated %s: %d nodes added, %d roles updated, %d total discovered\n",
		path, added, updated, len(discovered))
	return nil
}
