package acquire

import (
	"os"
	"strconv"
	"syscall"

	"github.com/sabrina905990/apt/internal/logger"
)

// DropPrivileges mirrors DropPrivsOrDie from the verifier worker: drop
// from root to an unprivileged uid/gid before acting on any untrusted
// input. It is a no-op unless the process is running as root and both
// APT_METHOD_UID and APT_METHOD_GID are set, and it never aborts the
// process on failure — only the real apt-pkg sandboxing code has the
// right to be fatal here, so this degrades to a logged best effort.
func DropPrivileges(log *logger.Logger) {
	if syscall.Getuid() != 0 {
		return
	}

	uidStr := os.Getenv("APT_METHOD_UID")
	gidStr := os.Getenv("APT_METHOD_GID")
	if uidStr == "" || gidStr == "" {
		return
	}

	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		logWarn(log, "invalid APT_METHOD_GID", err)
		return
	}
	if err := syscall.Setgid(gid); err != nil {
		logWarn(log, "could not drop group privileges", err)
		return
	}

	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		logWarn(log, "invalid APT_METHOD_UID", err)
		return
	}
	if err := syscall.Setuid(uid); err != nil {
		logWarn(log, "could not drop user privileges", err)
	}
}

func logWarn(log *logger.Logger, msg string, err error) {
	if log == nil {
		return
	}
	log.Warn(msg, logger.Fields{"error": err.Error()})
}
