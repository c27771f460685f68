//go:build unix

package procsup

import (
	"os"
	"os/signal"
	"syscall"
)

// Shutdown implements the Unix shutdown hook (spec §4.G): ignore SIGINT in
// the parent, then deliver it to the whole process group, so every child
// spawned via Spawn (which inherits the parent's process group, the
// default for os/exec) receives it along with the parent itself.
func Shutdown() {
	signal.Ignore(syscall.SIGINT)
	pgid, err := syscall.Getpgid(os.Getpid())
	if err != nil {
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGINT)
}
