// Package commands implements the kforge command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/k3sforge/k3sforge/pkg/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	debug      bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kforge",
		Short: "k3sforge - k3s cluster deployment on Proxmox VE",
		Long: `k3sforge deploys and manages k3s clusters on Proxmox VE.

A single declarative configuration file (config.json) describes the
Proxmox connection, global cloud-init defaults, and per-node overrides.
kforge synthesizes per-node cloud-init and network documents from it,
uploads them to snippet storage, and wires them to the VMs.

Cluster membership is tag-driven: VMs tagged k3s-server, k3s-agent, or
k3s-storage belong to the cluster in that role.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else if verbose {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newDiscoverCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newProvisionCommand())
	rootCmd.AddCommand(newStartCommand())
	rootCmd.AddCommand(newStopCommand())
	rootCmd.AddCommand(newRestartCommand())

	return rootCmd
}

// loadConfig loads and validates the configuration honoring the global
// --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
