package provision

import (
	"context"

	"github.com/k3sforge/k3sforge/pkg/config"
	"github.com/k3sforge/k3sforge/pkg/transports/ssh"
)

// SFTPUploader uploads snippets over per-host SSH/SFTP connections built
// from the proxmox connection settings.
type SFTPUploader struct {
	settings *config.ProxmoxSettings
}

// NewSFTPUploader builds an uploader from the validated settings.
func NewSFTPUploader(settings *config.ProxmoxSettings) *SFTPUploader {
	return &SFTPUploader{settings: settings}
}

// SSHConfig builds the SSH connection settings for a Proxmox host from
// the proxmox section of the configuration.
func SSHConfig(settings *config.ProxmoxSettings, host string) *ssh.Config {
	cfg := ssh.DefaultConfig(host, settings.SSHUser())
	if settings.SSH != nil {
		if settings.SSH.Port != 0 {
			cfg.Port = settings.SSH.Port
		}
		cfg.PrivateKeyPath = settings.SSH.PrivateKeyFile
	}
	// The API password doubles as the SSH password fallback for root@pam
	// setups, matching how the snippets were uploaded before API tokens.
	if settings.Password != "" {
		cfg.Password = settings.Password
	}
	return cfg
}

// Upload connects to host, writes dir/filename, and closes the
// connection. Provisioning touches a handful of files per run, so a
// connection per upload keeps the transport stateless.
func (u *SFTPUploader) Upload(ctx context.Context, host, dir, filename string, content []byte) error {
	client, err := ssh.Connect(ctx, SSHConfig(u.settings, host))
	if err != nil {
		return err
	}
	defer client.Close()
	return client.UploadSnippet(dir, filename, content)
}
