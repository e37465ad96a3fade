package metrics

import (
	"net/url"
	"strings"
)

// ResolveServiceName extracts the monitoring resource name from a Cloud Run
// deployment URL (https://<service>-<hash>-<region>.run.app, with or without
// the .a.run.app form). It fails closed: any URL outside that shape yields
// ("", false), which callers must treat as "metrics unavailable".
func ResolveServiceName(serviceURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(serviceURL))
	if err != nil || u.Scheme != "https" && u.Scheme != "http" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, ".a.run.app"):
		host = strings.TrimSuffix(host, ".a.run.app")
	case strings.HasSuffix(host, ".run.app"):
		host = strings.TrimSuffix(host, ".run.app")
	default:
		return "", false
	}
	if host == "" || strings.Contains(host, ".") {
		return "", false
	}
	// The last two hyphenated labels are the deployment hash and region tag.
	parts := strings.Split(host, "-")
	if len(parts) < 3 {
		return "", false
	}
	name := strings.Join(parts[:len(parts)-2], "-")
	if name == "" {
		return "", false
	}
	return name, true
}
