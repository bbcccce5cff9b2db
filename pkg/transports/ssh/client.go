package ssh

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// Client is an SSH connection with an SFTP session on top, scoped to one
// Proxmox host. Not safe for concurrent use.
type Client struct {
	cfg  *Config
	conn *ssh.Client
	sftp *sftp.Client
}

// Connect dials the host and opens the SFTP subsystem.
func Connect(ctx context.Context, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, transportErr("connect", cfg.Host, err)
	}
	clientConfig, err := cfg.BuildSSHClientConfig()
	if err != nil {
		return nil, transportErr("connect", cfg.Host, err)
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, transportErr("connect", cfg.Host, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, cfg.Address(), clientConfig)
	if err != nil {
		netConn.Close()
		terr := transportErr("connect", cfg.Host, err)
		terr.AuthFailure = strings.Contains(err.Error(), "unable to authenticate")
		return nil, terr
	}
	conn := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, transportErr("connect", cfg.Host, fmt.Errorf("opening sftp session: %w", err))
	}

	log.Debug().
		Str("host", cfg.Host).
		Str("user", cfg.User).
		Str("auth", cfg.AuthMode()).
		Msg("ssh connection established")

	return &Client{cfg: cfg, conn: conn, sftp: sftpClient}, nil
}

// Close tears down the SFTP session and the SSH connection.
func (c *Client) Close() error {
	var firstErr error
	if c.sftp != nil {
		if err := c.sftp.Close(); err != nil {
			firstErr = err
		}
		c.sftp = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.conn = nil
	}
	return firstErr
}

// UploadSnippet writes content to dir/filename on the remote host,
// creating dir if needed. Existing files are overwritten; provisioning the
// same VM again replaces its snippets.
func (c *Client) UploadSnippet(dir, filename string, content []byte) error {
	if err := c.sftp.MkdirAll(dir); err != nil {
		return transportErr("upload", c.cfg.Host, fmt.Errorf("creating %s: %w", dir, err))
	}
	remotePath := dir + "/" + filename
	f, err := c.sftp.Create(remotePath)
	if err != nil {
		return transportErr("upload", c.cfg.Host, fmt.Errorf("creating %s: %w", remotePath, err))
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return transportErr("upload", c.cfg.Host, fmt.Errorf("writing %s: %w", remotePath, err))
	}

	log.Debug().
		Str("host", c.cfg.Host).
		Str("path", remotePath).
		Int("bytes", len(content)).
		Msg("uploaded snippet")
	return nil
}

// RemoveSnippet deletes dir/filename on the remote host.
func (c *Client) RemoveSnippet(dir, filename string) error {
	remotePath := dir + "/" + filename
	if err := c.sftp.Remove(remotePath); err != nil {
		return transportErr("remove", c.cfg.Host, fmt.Errorf("removing %s: %w", remotePath, err))
	}
	return nil
}

// ConnectivityResult reports the outcome of a connectivity probe.
type ConnectivityResult struct {
	// Host is the probed host.
	Host string

	// AuthMethod is the authentication mode the connection led with.
	AuthMethod string

	// SnippetsWritable reports whether the probe file round-trip worked.
	SnippetsWritable bool
}

// CheckConnectivity verifies the host is reachable and the snippets
// directory is writable by writing and deleting a uniquely named probe
// file. The uuid name keeps concurrent probes from different invocations
// off each other's toes.
func CheckConnectivity(ctx context.Context, cfg *Config, snippetDir string) (*ConnectivityResult, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	result := &ConnectivityResult{Host: cfg.Host, AuthMethod: cfg.AuthMode()}

	probe := fmt.Sprintf(".kforge-probe-%s", uuid.NewString())
	if err := client.UploadSnippet(snippetDir, probe, []byte("probe\n")); err != nil {
		return result, err
	}
	if err := client.RemoveSnippet(snippetDir, probe); err != nil {
		return result, err
	}
	result.SnippetsWritable = true

	log.Debug().Str("host", cfg.Host).Str("dir", snippetDir).Msg("connectivity probe succeeded")
	return result, nil
}
