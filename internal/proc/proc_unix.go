//go:build unix

package proc

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the child into its own process group so the whole
// tree can be signalled with one kill.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree signals the entire process group. The negative pid targets
// the group created by Setpgid at spawn.
func killTree(pid int) error {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		return err
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}
