package mcpserver

import (
	"os"
	"syscall"
)

// terminateSignal is the signal sent during the graceful-close sequence
// before escalating to Kill.
func terminateSignal() os.Signal {
	return syscall.SIGTERM
}
