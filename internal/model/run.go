package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PipelineKind selects which external pipeline the runner executes and
// which log files it is expected to write.
type PipelineKind string

const (
	PipelineAssembly  PipelineKind = "assembly"
	PipelineProfiling PipelineKind = "profiling"
)

func ParsePipelineKind(s string) (PipelineKind, error) {
	switch PipelineKind(s) {
	case PipelineAssembly, PipelineProfiling:
		return PipelineKind(s), nil
	}
	return "", fmt.Errorf("unknown pipeline kind %q", s)
}

// RunRequest describes one pipeline invocation. It is immutable once
// submitted; the configuration layer builds it, the run controller
// consumes it exactly once.
type RunRequest struct {
	RunID      string       `json:"run_id"`
	Kind       PipelineKind `json:"kind"`
	ConfigPath string       `json:"config_path"`
	RunDir     string       `json:"run_dir"`
}

func (r RunRequest) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run_id is empty")
	}
	if strings.ContainsAny(r.RunID, `/\:*?"<>| `) {
		return fmt.Errorf("run_id %q is not filesystem safe", r.RunID)
	}
	if _, err := ParsePipelineKind(string(r.Kind)); err != nil {
		return err
	}
	if r.ConfigPath == "" {
		return fmt.Errorf("config_path is empty")
	}
	if r.RunDir == "" {
		return fmt.Errorf("run_dir is empty")
	}
	return nil
}

// NewRunID derives a unique filesystem safe run identifier from the
// submission time and a short random suffix.
func NewRunID(now time.Time) string {
	return now.Format("20060102_1504") + "_" + uuid.NewString()[:8]
}

// LogSource is one physical log file contributing lines to the
// aggregated stream. Name is the stable identifier used as the offset
// table key, DisplayName the human label shown next to each line.
type LogSource struct {
	Name        string
	DisplayName string
	Path        string
}

// LogLine is one line of the aggregated run log. Time is the wall
// clock at read time, not the original write time.
type LogLine struct {
	Time   time.Time `json:"time"`
	Source string    `json:"source"`
	Text   string    `json:"text"`
}

// RunState is the authoritative lifecycle state of the active run.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateReady     RunState = "ready"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// Terminal reports whether no further automatic transition occurs.
func (s RunState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// RunStatus is the disposition inferred for a run from heuristic
// evidence: the process exit code for a live run, log text content for
// a historical one.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)
