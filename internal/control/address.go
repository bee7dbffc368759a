package control

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/codefionn/notificationd/internal/consts"
)

// Address returns the well-known control socket path for uid. Unprivileged
// users get a socket in their runtime directory, root gets one in /run.
func Address(uid int) string {
	if uid != 0 {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" && uid == os.Getuid() {
			return filepath.Join(dir, consts.ControlSocketName)
		}
		return filepath.Join("/run/user", strconv.Itoa(uid), consts.ControlSocketName)
	}
	return filepath.Join("/run", consts.ControlSocketName)
}

// IsSocket reports whether path exists and is a Unix socket
func IsSocket(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeSocket != 0
}
