package proc

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
)

func setGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

func setParentDeath(*exec.Cmd) {}

func killTree(pid int) error {
	out, err := exec.Command("taskkill", "/pid", strconv.Itoa(pid), "/T", "/F").CombinedOutput()
	var exitErr *exec.ExitError
	// taskkill exits 128 when the process is already gone.
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 128 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("taskkill %d: %w: %s", pid, err, out)
	}
	return nil
}
