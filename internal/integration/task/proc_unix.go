//go:build unix

package task

import (
	osexec "os/exec"
	"syscall"
)

// setProcessGroup runs the command in its own process group so that
// cancellation stops the whole pipeline the shell started.
func setProcessGroup(c *osexec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
