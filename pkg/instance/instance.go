// Package instance names the running process for lock owners and logs.
package instance

import (
	"os"
	"strings"
)

// EnvWorkerID overrides the instance identifier.
const EnvWorkerID = "SHARE_WORKER_ID"

// GetID returns SHARE_WORKER_ID, then the hostname, then "worker-0".
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvWorkerID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
