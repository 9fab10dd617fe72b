package httpapi

import (
	"strings"
	"time"
)

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes sets the maximum request body size; non-positive restores 1 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// opTimeout bounds how long an embeddings or state request may wait and run.
// Zero means no additional timeout beyond server/connection timeouts.
var opTimeout time.Duration

// SetOpTimeout sets the per-request operation timeout (0 disables).
func SetOpTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	opTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// stateDir confines the paths accepted by /state/save and /state/load.
// Empty disables both endpoints.
var stateDir string

// SetStateDir sets the directory state files are read from and written to.
func SetStateDir(dir string) { stateDir = strings.TrimSpace(dir) }
