package probe

import (
	"os"
	"os/exec"
	"path/filepath"
)

// wellKnownPaths are checked when the configured command is a bare name that
// PATH cannot resolve (cron environments often have a minimal PATH).
var wellKnownPaths = []string{
	"/usr/local/bin",
	"/usr/bin",
	"/opt/homebrew/bin",
	"/snap/bin",
}

// resolveCommand locates the speedtest executable. Absolute paths are used
// verbatim. Bare names go through PATH first, then the well-known install
// locations. When nothing matches, the literal value is returned and the
// spawn itself will surface the error.
func resolveCommand(command string) string {
	if filepath.IsAbs(command) {
		return command
	}
	if p, err := exec.LookPath(command); err == nil {
		return p
	}
	for _, dir := range wellKnownPaths {
		candidate := filepath.Join(dir, command)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate
		}
	}
	return command
}
