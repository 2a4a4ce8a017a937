//go:build !windows

package execrun

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcGroup makes the child a process-group leader so a timeout kill
// reaches the whole tree, not just the direct child.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the group. Fall back to the direct child if the
	// group is already gone.
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}
