//go:build unix && !linux

package proc

import (
	"os/exec"
	"syscall"
)

func setGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Parent-death signals are Linux only; the session's Shutdown covers the
// remaining exit paths.
func setParentDeath(*exec.Cmd) {}
