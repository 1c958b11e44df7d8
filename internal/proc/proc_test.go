//go:build unix

package proc_test

import (
	"os/exec"
	"testing"
	"time"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/proc"

	"github.com/stretchr/testify/require"
)

func TestStartLaunchError(t *testing.T) {
	t.Parallel()
	_, err := proc.Start(t.Context(), "/does/not/exist", nil, "")
	require.Error(t, err)
	var launchErr *proc.LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Equal(t, "/does/not/exist", launchErr.Path)
}

func TestHandleExit(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)

	h, err := proc.Start(t.Context(), sh, []string{"-c", "exit 3"}, "")
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	require.False(t, h.Alive())
	code, ok := h.ExitCode()
	require.True(t, ok)
	require.Equal(t, 3, code)

	// terminating an exited process is a no-op
	require.NoError(t, h.TerminateTree())
}

func TestTerminateTree(t *testing.T) {
	t.Parallel()
	sh := lookSh(t)

	// the child sleep is a descendant: it must die with the parent
	h, err := proc.Start(t.Context(), sh, []string{"-c", "sleep 30 & wait"}, "")
	require.NoError(t, err)
	require.True(t, h.Alive())

	require.NoError(t, h.TerminateTree())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process tree was not terminated")
	}
	require.False(t, h.Alive())

	// killed by signal: no trustworthy exit code
	_, ok := h.ExitCode()
	require.False(t, ok)
}

func lookSh(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	return sh
}
