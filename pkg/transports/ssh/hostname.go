package ssh

import "strings"

// ExtractDomain returns the domain part of a hostname, or empty when the
// hostname is bare or an IP address. A trailing API port is ignored.
func ExtractDomain(hostname string) string {
	host := StripPort(hostname)
	if isIPAddress(host) {
		return ""
	}
	_, domain, found := strings.Cut(host, ".")
	if !found {
		return ""
	}
	return domain
}

// NodeHostname derives the SSH target for a cluster node from the
// configured API host. Snippets on non-shared storage must be written on
// the node hosting the VM, not on the API endpoint: the node name gets the
// API host's domain appended when one exists, and is used bare otherwise.
func NodeHostname(apiHost, nodeName string) string {
	host := StripPort(apiHost)
	if short, _, _ := strings.Cut(host, "."); short == nodeName {
		return host
	}
	if domain := ExtractDomain(apiHost); domain != "" {
		return nodeName + "." + domain
	}
	return nodeName
}

// StripPort removes a :port suffix from a host string.
func StripPort(host string) string {
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}
	return strings.TrimSuffix(host, "/")
}

// isIPAddress reports whether every dot-separated label is numeric.
func isIPAddress(host string) bool {
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return false
		}
		for _, r := range label {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
