// Package runlog aggregates the dynamically growing set of log files
// of one run into a single ordered, labeled line stream.
package runlog

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/pipeline"
	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/tail"
)

// Offsets maps a log source name to the last read byte offset. An
// absent entry means offset 0. Entries only grow for the life of one
// run and the table is replaced wholesale when a new run starts.
type Offsets map[string]int64

// DiscoverSources lists the known log files of kind that currently
// exist under runDir. The set may grow between polls as the runner
// creates files; it never shrinks from the caller's point of view
// because offsets for vanished files are simply left alone.
func DiscoverSources(runDir string, kind model.PipelineKind) ([]model.LogSource, error) {
	spec, err := pipeline.Lookup(kind)
	if err != nil {
		return nil, err
	}

	var out []model.LogSource
	for _, src := range spec.LogSources(runDir) {
		info, err := os.Stat(src.Path)
		if err != nil || !info.Mode().IsRegular() {
			continue // not yet produced
		}
		out = append(out, src)
	}
	return out, nil
}

// Poll tails every discovered source from its tracked offset and
// returns the newly appended lines, labeled and stamped with the read
// time. A source seen for the first time is tailed from its start, so
// content written before the first tick is not lost. Offsets is
// updated in place.
//
// Lines keep each source's own contiguous order; sources are
// concatenated in discovery order, not interleaved by timestamp.
func Poll(ctx context.Context, runDir string, kind model.PipelineKind, offsets Offsets) ([]model.LogLine, error) {
	sources, err := DiscoverSources(runDir, kind)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var out []model.LogLine
	for _, src := range sources {
		lines, next := tail.ReadNew(ctx, src.Path, offsets[src.Name])
		offsets[src.Name] = next
		for _, text := range lines {
			out = append(out, model.LogLine{
				Time:   now,
				Source: src.DisplayName,
				Text:   text,
			})
		}
	}
	return out, nil
}

// Buffer is the append-only accumulated log of one run: a single
// writer (the poll loop) and any number of concurrent readers. Reads
// return copies so a reader never observes a torn slice while the
// buffer grows.
type Buffer struct {
	mx    sync.RWMutex
	lines []model.LogLine
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(lines ...model.LogLine) {
	if len(lines) == 0 {
		return
	}
	b.mx.Lock()
	b.lines = append(b.lines, lines...)
	b.mx.Unlock()
}

// Len is the current number of lines.
func (b *Buffer) Len() int {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return len(b.lines)
}

// Snapshot copies the whole buffer.
func (b *Buffer) Snapshot() []model.LogLine {
	return b.Since(0)
}

// Since copies the lines appended at index i and later; the UI polls
// with its last seen length to read only the delta.
func (b *Buffer) Since(i int) []model.LogLine {
	b.mx.RLock()
	defer b.mx.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(b.lines) {
		return nil
	}
	out := make([]model.LogLine, len(b.lines)-i)
	copy(out, b.lines[i:])
	return out
}
