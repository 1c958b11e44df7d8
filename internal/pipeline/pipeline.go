// Package pipeline holds the fixed lookup table describing each
// supported pipeline kind: where the external runner writes its log
// files under a run directory, and how the runner is invoked.
package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
)

// SourceSpec is one expected log file, relative to the pipeline
// subdirectory of a run.
type SourceSpec struct {
	Rel         string
	DisplayName string
}

// Spec describes one pipeline kind. Sources list every log file the
// runner may produce; files absent on disk are simply not tailed yet.
type Spec struct {
	Kind    model.PipelineKind
	Subdir  string
	Sources []SourceSpec
}

var specs = map[model.PipelineKind]Spec{
	model.PipelineAssembly: {
		Kind:   model.PipelineAssembly,
		Subdir: "assembly",
		Sources: []SourceSpec{
			{Rel: "nextflow.log", DisplayName: "Nextflow"},
			{Rel: "assembly.log", DisplayName: "Assembly"},
		},
	},
	model.PipelineProfiling: {
		Kind:   model.PipelineProfiling,
		Subdir: "profiling",
		Sources: []SourceSpec{
			{Rel: "nextflow.log", DisplayName: "Nextflow"},
			{Rel: "profiling.log", DisplayName: "Profiling"},
		},
	},
}

// Lookup returns the Spec registered for a kind.
func Lookup(kind model.PipelineKind) (Spec, error) {
	s, ok := specs[kind]
	if !ok {
		return Spec{}, fmt.Errorf("unknown pipeline kind %q", kind)
	}
	return s, nil
}

// Kinds returns every registered pipeline kind.
func Kinds() []model.PipelineKind {
	out := make([]model.PipelineKind, 0, len(specs))
	for k := range specs {
		out = append(out, k)
	}
	return out
}

// LogSources maps the Spec onto concrete paths under runDir. The
// returned Name is stable across calls and keys the offset table.
func (s Spec) LogSources(runDir string) []model.LogSource {
	out := make([]model.LogSource, 0, len(s.Sources))
	for _, src := range s.Sources {
		out = append(out, model.LogSource{
			Name:        filepath.ToSlash(filepath.Join(s.Subdir, src.Rel)),
			DisplayName: src.DisplayName,
			Path:        filepath.Join(runDir, s.Subdir, src.Rel),
		})
	}
	return out
}

// Command builds the runner invocation for a request: the configured
// runner binary, its fixed arguments, then `--config <path>`.
func Command(cfg model.Runner, req model.RunRequest) (path string, args []string, workdir string) {
	args = append(args, cfg.Args...)
	args = append(args, "--config", req.ConfigPath)
	return cfg.Path, args, cfg.Workdir
}
