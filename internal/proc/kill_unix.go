//go:build unix

package proc

import (
	"errors"
	"syscall"
)

func killTree(pid int) error {
	// Negative pid addresses the whole process group led by pid.
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(pid, syscall.SIGKILL)
	}
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
