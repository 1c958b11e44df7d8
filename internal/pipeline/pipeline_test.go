package pipeline_test

import (
	"path/filepath"
	"testing"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/pipeline"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	t.Parallel()
	for _, kind := range pipeline.Kinds() {
		spec, err := pipeline.Lookup(kind)
		require.NoError(t, err)
		require.Equal(t, kind, spec.Kind)
		require.NotEmpty(t, spec.Sources)
	}

	_, err := pipeline.Lookup(model.PipelineKind("alignment"))
	require.Error(t, err)
}

func TestLogSources(t *testing.T) {
	t.Parallel()
	spec, err := pipeline.Lookup(model.PipelineAssembly)
	require.NoError(t, err)

	sources := spec.LogSources("/data/runs/r1")
	require.Len(t, sources, 2)
	// Name is slash-separated regardless of platform, Path is native
	require.Equal(t, "assembly/nextflow.log", sources[0].Name)
	require.Equal(t, "Nextflow", sources[0].DisplayName)
	require.Equal(t, filepath.Join("/data/runs/r1", "assembly", "nextflow.log"), sources[0].Path)
}

func TestCommand(t *testing.T) {
	t.Parallel()
	runner := model.Runner{
		Path:    "/opt/stabiom/runner",
		Args:    []string{"--ansi-log", "false"},
		Workdir: "/opt/stabiom",
	}
	req := model.RunRequest{
		RunID:      "20240101_1200_deadbeef",
		Kind:       model.PipelineAssembly,
		ConfigPath: "/tmp/params.yaml",
		RunDir:     "/data/runs/r1",
	}

	path, args, workdir := pipeline.Command(runner, req)
	require.Equal(t, "/opt/stabiom/runner", path)
	require.Equal(t, []string{"--ansi-log", "false", "--config", "/tmp/params.yaml"}, args)
	require.Equal(t, "/opt/stabiom", workdir)
}
