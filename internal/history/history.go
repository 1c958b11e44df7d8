// Package history classifies past runs from what is left on disk.
// There is no live process and no stored metadata: the disposition of
// each run is inferred purely from its log file content.
package history

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/parallel"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/pipeline"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/status"
)

// Entry is the retrospective view of one run directory.
type Entry struct {
	RunID     string             `json:"run_id"`
	Kind      model.PipelineKind `json:"kind,omitempty"`
	Status    model.RunStatus    `json:"status"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// classifyLimit bounds the parallel log reads during listing.
const classifyLimit = 4

// List enumerates the run directories under runsDir, classifies each
// from its logs and returns entries newest first (run ids sort by
// their timestamp prefix).
func List(ctx context.Context, runsDir string) ([]Entry, error) {
	dirents, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, d := range dirents {
		if d.IsDir() {
			ids = append(ids, d.Name())
		}
	}
	return listIDs(ctx, runsDir, ids)
}

func listIDs(ctx context.Context, runsDir string, ids []string) ([]Entry, error) {
	seq := func(yield func(string, error) bool) {
		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
		}
	}

	classify := func(ctx context.Context, id string) (Entry, error) {
		return Classify(ctx, runsDir, id)
	}

	var out []Entry
	for entry, err := range parallel.MapSeq(ctx, classifyLimit, iter.Seq2[string, error](seq), classify) {
		if errors.Is(err, model.ErrNoSuchRun) {
			// the directory vanished between enumeration and stat
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].RunID > out[j].RunID
	})
	return out, nil
}

// Classify inspects one run directory. The pipeline kind is inferred
// from which known subdirectory exists; a run with no recognizable
// logs at all is pending.
func Classify(_ context.Context, runsDir, runID string) (Entry, error) {
	runDir := filepath.Join(runsDir, runID)

	entry := Entry{
		RunID:  runID,
		Status: model.StatusPending,
	}
	info, err := os.Stat(runDir)
	if err != nil || !info.IsDir() {
		return Entry{}, fmt.Errorf("%w: %s", model.ErrNoSuchRun, runID)
	}
	entry.UpdatedAt = info.ModTime()

	kinds := pipeline.Kinds()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		spec, err := pipeline.Lookup(kind)
		if err != nil {
			continue
		}

		var text strings.Builder
		var haveFiles bool
		for _, src := range spec.LogSources(runDir) {
			b, err := os.ReadFile(src.Path)
			if err != nil {
				continue
			}
			haveFiles = true
			text.Write(b)
			if info, err := os.Stat(src.Path); err == nil && info.ModTime().After(entry.UpdatedAt) {
				entry.UpdatedAt = info.ModTime()
			}
		}
		if !haveFiles {
			continue
		}

		entry.Kind = kind
		entry.Status = status.ClassifyLogs(text.String(), true)
		return entry, nil
	}

	return entry, nil
}
