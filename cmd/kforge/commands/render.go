package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/k3sforge/k3sforge/pkg/cloudinit"
	"github.com/k3sforge/k3sforge/pkg/netconf"
	"github.com/k3sforge/k3sforge/pkg/provision"
	"github.com/k3sforge/k3sforge/pkg/synth"
)

func newRenderCommand() *cobra.Command {
	var (
		vmidArg       string
		outDir        string
		hashPasswords bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render per-node cloud-init and network documents",
		Long: `Render runs the configuration synthesis engine and prints each node's
effective cloud-init user-data and network-config, without touching
Proxmox. Use it to inspect exactly what provision would upload.`,
		Example: `  # Render every configured node to stdout
  kforge render

  # Render one node into a directory
  kforge render --vmid 1211 --out-dir ./rendered

  # Pre-hash plain-text passwords like provision does
  kforge render --hash-passwords`,
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

			assembled, err := synth.Assemble(cfg)
			if err != nil {
				return err
			}

			targets := vmids
			if len(targets) == 0 {
				targets = cfg.VMIDs()
			}
			sort.Ints(targets)

			var renderOpts []cloudinit.RenderOption
			if hashPasswords {
				renderOpts = append(renderOpts, cloudinit.WithHashedPasswords(cloudinit.HashSHA512))
			}

			for _, vmid := range targets {
				node, ok := assembled[vmid]
				if !ok {
					log.Warn().Int("vmid", vmid).Msg("vmid is not declared in the configuration, skipping")
					continue
				}

				userData, err := cloudinit.Render(node.CloudInit, renderOpts...)
				if err != nil {
					return err
				}
				if err := emit(outDir, provision.UserDataFilename(vmid), userData); err != nil {
					return err
				}

				if netconf.ShouldRender(node.Network) {
					netData, err := netconf.Render(node.Network)
					if err != nil {
						return err
					}
					if err := emit(outDir, provision.NetworkConfigFilename(vmid), netData); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vmidArg, "vmid", "", "comma-separated vmids to render (default: all configured)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write documents to this directory instead of stdout")
	cmd.Flags().BoolVar(&hashPasswords, "hash-passwords", false, "pre-hash plain-text passwords with sha512-crypt")

	return cmd
}

func emit(outDir, filename string, content []byte) error {
	if outDir == "" {
		fmt.Printf("--- %s\n%s", filename, content)
		return nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(outDir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("wrote document")
	return nil
}
