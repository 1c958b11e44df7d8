package runlog_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/runlog"

	"github.com/stretchr/testify/require"
)

func TestDiscoverSources(t *testing.T) {
	t.Parallel()
	runDir := t.TempDir()

	t.Run("unknown kind", func(t *testing.T) {
		_, err := runlog.DiscoverSources(runDir, model.PipelineKind("nope"))
		require.Error(t, err)
	})

	t.Run("empty run dir", func(t *testing.T) {
		sources, err := runlog.DiscoverSources(runDir, model.PipelineAssembly)
		require.NoError(t, err)
		require.Empty(t, sources)
	})

	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "assembly"), 0o755))
	writeFile(t, filepath.Join(runDir, "assembly", "nextflow.log"), "hello\n")

	t.Run("idempotent", func(t *testing.T) {
		first, err := runlog.DiscoverSources(runDir, model.PipelineAssembly)
		require.NoError(t, err)
		second, err := runlog.DiscoverSources(runDir, model.PipelineAssembly)
		require.NoError(t, err)
		require.Equal(t, first, second)
		require.Len(t, first, 1)
		require.Equal(t, "assembly/nextflow.log", first[0].Name)
		require.Equal(t, "Nextflow", first[0].DisplayName)
	})

	t.Run("new file appears", func(t *testing.T) {
		writeFile(t, filepath.Join(runDir, "assembly", "assembly.log"), "later\n")
		sources, err := runlog.DiscoverSources(runDir, model.PipelineAssembly)
		require.NoError(t, err)
		require.Len(t, sources, 2)
	})
}

func TestPoll(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	runDir := t.TempDir()
	dir := filepath.Join(runDir, "profiling")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	offsets := runlog.Offsets{}

	// content written before the first poll is still delivered
	writeFile(t, filepath.Join(dir, "nextflow.log"), "early\n")

	lines, err := runlog.Poll(ctx, runDir, model.PipelineProfiling, offsets)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "early", lines[0].Text)
	require.Equal(t, "Nextflow", lines[0].Source)
	require.WithinDuration(t, time.Now(), lines[0].Time, time.Minute)

	// second source shows up between polls, seeded at offset 0
	appendFile(t, filepath.Join(dir, "nextflow.log"), "nf1\nnf2\n")
	writeFile(t, filepath.Join(dir, "profiling.log"), "p1\n")

	lines, err = runlog.Poll(ctx, runDir, model.PipelineProfiling, offsets)
	require.NoError(t, err)
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, l.Source+":"+l.Text)
	}
	// per source contiguous order, sources in discovery order
	require.Equal(t, []string{"Nextflow:nf1", "Nextflow:nf2", "Profiling:p1"}, texts)

	// nothing new is a no-op
	lines, err = runlog.Poll(ctx, runDir, model.PipelineProfiling, offsets)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestBufferSnapshotConcurrent(t *testing.T) {
	t.Parallel()
	buf := runlog.NewBuffer()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Go(func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			buf.Append(model.LogLine{Text: "line"})
		}
	})

	for range 100 {
		snap := buf.Snapshot()
		for _, l := range snap {
			require.Equal(t, "line", l.Text)
		}
		require.LessOrEqual(t, len(snap), buf.Len())
	}
	close(stop)
	wg.Wait()

	t.Run("since", func(t *testing.T) {
		n := buf.Len()
		buf.Append(model.LogLine{Text: "line"})
		delta := buf.Since(n)
		require.Len(t, delta, 1)
		require.Empty(t, buf.Since(buf.Len()))
	})
}

func writeFile(t *testing.T, path, s string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(s), 0o644))
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
