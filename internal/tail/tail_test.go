package tail_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/tail"

	"github.com/stretchr/testify/require"
)

func TestReadNew(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "pipeline.log")

	t.Run("missing file", func(t *testing.T) {
		lines, off := tail.ReadNew(ctx, path, 0)
		require.Empty(t, lines)
		require.EqualValues(t, 0, off)
	})

	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0o644))

	var offset int64
	t.Run("initial read", func(t *testing.T) {
		var lines []string
		lines, offset = tail.ReadNew(ctx, path, 0)
		require.Equal(t, []string{"first", "second"}, lines)
		require.EqualValues(t, len("first\nsecond\n"), offset)
	})

	t.Run("nothing new", func(t *testing.T) {
		lines, off := tail.ReadNew(ctx, path, offset)
		require.Empty(t, lines)
		require.Equal(t, offset, off)
	})

	t.Run("partial line withheld", func(t *testing.T) {
		appendFile(t, path, "par")
		lines, off := tail.ReadNew(ctx, path, offset)
		require.Empty(t, lines)
		require.Equal(t, offset, off)

		appendFile(t, path, "tial\n")
		lines, off = tail.ReadNew(ctx, path, offset)
		require.Equal(t, []string{"partial"}, lines)
		require.Greater(t, off, offset)
		offset = off
	})

	t.Run("truncation resets offset", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
		lines, off := tail.ReadNew(ctx, path, offset)
		require.Empty(t, lines)
		require.EqualValues(t, 2, off)

		lines, off = tail.ReadNew(ctx, path, off)
		require.Empty(t, lines)
		require.EqualValues(t, 2, off)
	})
}

func TestReadNewMonotonic(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "grow.log")

	var got []string
	var offset int64
	for _, chunk := range []string{"a\n", "b\nc\n", "", "d\n"} {
		appendFile(t, path, chunk)
		var lines []string
		var off int64
		lines, off = tail.ReadNew(ctx, path, offset)
		require.GreaterOrEqual(t, off, offset, "offsets must not decrease")
		offset = off
		got = append(got, lines...)
	}
	// every byte range delivered exactly once
	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
