// Package proc starts child processes that cannot outlive the build and
// kills whole process trees.
//
// NewGroup puts a child in its own process group so KillTree reaches every
// descendant that did not leave the group. On Linux the child also receives
// SIGKILL when the parent dies, which covers abnormal parent termination
// where no cleanup code runs.
package proc

import (
	"os/exec"
)

// NewGroup prepares cmd to start as the leader of a new process group that
// dies with this process.
func NewGroup(cmd *exec.Cmd) {
	setGroup(cmd)
}

// DieWithParent prepares cmd to be killed when this process exits, without
// changing its process group.
func DieWithParent(cmd *exec.Cmd) {
	setParentDeath(cmd)
}

// KillTree forcibly terminates the process tree rooted at pid. A process that
// already exited is not an error.
func KillTree(pid int) error {
	if pid <= 0 {
		return nil
	}
	return killTree(pid)
}
