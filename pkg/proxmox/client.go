package proxmox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/luthermonson/go-proxmox"
	"github.com/rs/zerolog/log"

	"github.com/k3sforge/k3sforge/pkg/config"
)

// DefaultTimeout bounds API requests when the configuration does not set
// its own timeout.
const DefaultTimeout = 30 * time.Second

// taskPollInterval and taskTimeout bound how long task-waited operations
// (start, stop, config changes) are followed before giving up.
const (
	taskPollInterval = time.Second
	taskTimeout      = 2 * time.Minute
)

// Client wraps the Proxmox VE API for the operations this tool needs.
type Client struct {
	api      *proxmox.Client
	settings *config.ProxmoxSettings
}

// NewClient builds an API client from the validated connection settings.
// The authentication mode follows the configuration: password credentials
// or an API token, never both (the schema validator guarantees exactly one
// is present).
func NewClient(settings *config.ProxmoxSettings) (*Client, error) {
	httpClient := &http.Client{Timeout: DefaultTimeout}
	if settings.Timeout > 0 {
		httpClient.Timeout = time.Duration(settings.Timeout) * time.Second
	}
	if settings.SkipTLSVerify() {
		log.Warn().Str("host", settings.Host).Msg("TLS certificate verification is disabled")
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // verify_ssl=false is explicit opt-in
		}
	}

	opts := []proxmox.Option{proxmox.WithHTTPClient(httpClient)}
	if settings.UsesTokenAuth() {
		opts = append(opts, proxmox.WithAPIToken(settings.FullTokenID(), settings.APITokenSecret))
	} else {
		opts = append(opts, proxmox.WithCredentials(&proxmox.Credentials{
			Username: settings.User,
			Password: settings.Password,
		}))
	}

	api := proxmox.NewClient(settings.APIURL(), opts...)
	log.Debug().
		Str("url", settings.APIURL()).
		Bool("token_auth", settings.UsesTokenAuth()).
		Msg("created proxmox api client")

	return &Client{api: api, settings: settings}, nil
}

// Settings returns the connection settings the client was built from.
func (c *Client) Settings() *config.ProxmoxSettings {
	return c.settings
}

// Version reports the Proxmox VE version of the connected host.
func (c *Client) Version(ctx context.Context) (string, error) {
	version, err := c.api.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching proxmox version: %w", err)
	}
	return version.Release, nil
}

// ClusterStatus describes the cluster as seen from the configured host.
type ClusterStatus struct {
	// Name is the cluster name, empty for a standalone node.
	Name string

	// Quorate reports whether the cluster currently has quorum.
	Quorate bool

	// OnlineNodes lists the names of online cluster members.
	OnlineNodes []string

	// TotalNodes is the total cluster member count.
	TotalNodes int
}

// ClusterStatus fetches the cluster membership and quorum state.
func (c *Client) ClusterStatus(ctx context.Context) (*ClusterStatus, error) {
	cluster, err := c.api.Cluster(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching cluster status: %w", err)
	}

	status := &ClusterStatus{
		Name:       cluster.Name,
		Quorate:    cluster.Quorate == 1,
		TotalNodes: len(cluster.Nodes),
	}
	for _, n := range cluster.Nodes {
		if n.Online == 1 {
			status.OnlineNodes = append(status.OnlineNodes, n.Name)
		}
	}
	return status, nil
}

// OnlineNodeNames lists the online cluster nodes in API order.
func (c *Client) OnlineNodeNames(ctx context.Context) ([]string, error) {
	statuses, err := c.api.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		if st.Status == "online" {
			names = append(names, st.Node)
		}
	}
	return names, nil
}
