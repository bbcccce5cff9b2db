package proxmox

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// SnippetStorage describes a storage that can hold cloud-init snippets.
type SnippetStorage struct {
	// Name is the storage identifier.
	Name string

	// Path is the storage's filesystem path on the hosting node.
	Path string

	// Shared reports whether the storage is visible from every node, which
	// decides which host the snippet upload connects to.
	Shared bool
}

// SnippetDir returns the directory snippets are written to.
func (s *SnippetStorage) SnippetDir() string {
	return s.Path + "/snippets"
}

// SnippetStorage finds the storage to upload snippets to on the given
// node: the configured snippet_storage when set, otherwise the first
// enabled, active storage whose content types include snippets.
func (c *Client) SnippetStorage(ctx context.Context, nodeName string) (*SnippetStorage, error) {
	node, err := c.api.Node(ctx, nodeName)
	if err != nil {
		return nil, fmt.Errorf("fetching node %q: %w", nodeName, err)
	}
	storages, err := node.Storages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing storages on node %q: %w", nodeName, err)
	}

	configured := c.settings.SnippetStorage
	for _, s := range storages {
		if configured != "" {
			if s.Name != configured {
				continue
			}
		} else {
			if !strings.Contains(s.Content, "snippets") || s.Enabled == 0 || s.Active == 0 {
				continue
			}
		}
		found := &SnippetStorage{
			Name:   s.Name,
			Path:   storagePath(s.Name),
			Shared: s.Shared != 0,
		}
		log.Debug().
			Str("node", nodeName).
			Str("storage", found.Name).
			Str("path", found.Path).
			Bool("shared", found.Shared).
			Msg("selected snippet storage")
		return found, nil
	}

	if configured != "" {
		return nil, fmt.Errorf("configured snippet storage %q not found on node %q", configured, nodeName)
	}
	return nil, fmt.Errorf("no snippet-capable storage found on node %q", nodeName)
}

// storagePath maps a directory storage name to its conventional path. The
// node storage listing does not report paths; "local" lives under
// /var/lib/vz and every other directory storage is mounted under
// /mnt/pve/<name>.
func storagePath(name string) string {
	if name == "local" {
		return "/var/lib/vz"
	}
	return "/mnt/pve/" + name
}
