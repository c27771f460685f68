//go:build !unix

package procsup

// Shutdown is a no-op on platforms with no process-group signal to send.
// Supervisor.KillAll walks and kills each child explicitly instead,
// matching the spec's Windows fallback (no dependency on psutil or any
// Go equivalent is pulled in, since KillAll's per-process exec.Cmd.Kill
// already reaches each child directly).
func Shutdown() {}
