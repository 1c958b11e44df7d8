//go:build windows

package proc

import (
	"os/exec"
	"strconv"
)

func setProcGroup(_ *exec.Cmd) {
	// taskkill /T walks the tree by parent pid, no group needed
}

func killTree(pid int) error {
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
