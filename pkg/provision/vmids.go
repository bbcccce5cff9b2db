package provision

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseVMIDs parses a comma-separated vmid list from the command line.
// The keyword "all" (or an empty string) selects every configured node
// and returns nil.
func ParseVMIDs(arg string) ([]int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" || strings.EqualFold(arg, "all") {
		return nil, nil
	}

	parts := strings.Split(arg, ",")
	vmids := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty vmid in list %q", arg)
		}
		vmid, err := strconv.Atoi(part)
		if err != nil || vmid <= 0 {
			return nil, fmt.Errorf("invalid vmid %q, expected a positive integer", part)
		}
		if !seen[vmid] {
			seen[vmid] = true
			vmids = append(vmids, vmid)
		}
	}
	return vmids, nil
}
