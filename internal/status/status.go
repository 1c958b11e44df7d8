// Package status decides a run's disposition from the only evidence
// the external runner provides: its process exit code when supervised
// live, free text log content when only files on disk remain.
package status

import (
	"regexp"
	"strings"

	"github.com/izzydavidson/STaBioM-Standardised-Bioinformatics-for-Microbial-samples-sub003/internal/model"
)

// Failure markers are checked before success markers: a log can carry
// an early failure followed by success sounding text from a retry or
// another module, and that run must still classify as failed. All
// matching is case sensitive.
var failureMarkers = []string{
	"CONTAINER FAILED",
	"Pipeline failed",
	"MODULE FAILURE",
}

// lines such as "Command exit status: 1" emitted per failed task
var reNonZeroExit = regexp.MustCompile(`exit status: [1-9][0-9]*`)

var successMarkers = []string{
	"Pipeline completed successfully",
	"All modules completed",
}

// ClassifyExit maps a supervised process exit to a terminal status.
// An unavailable exit code is untrustworthy and classifies as failed.
func ClassifyExit(code int, available bool) model.RunStatus {
	if available && code == 0 {
		return model.StatusCompleted
	}
	return model.StatusFailed
}

// ClassifyLogs inspects concatenated log text of a run with no live
// process. haveFiles is false when no log file exists at all yet.
func ClassifyLogs(text string, haveFiles bool) model.RunStatus {
	if !haveFiles {
		return model.StatusPending
	}
	for _, marker := range failureMarkers {
		if strings.Contains(text, marker) {
			return model.StatusFailed
		}
	}
	if reNonZeroExit.MatchString(text) {
		return model.StatusFailed
	}
	for _, marker := range successMarkers {
		if strings.Contains(text, marker) {
			return model.StatusCompleted
		}
	}
	if strings.TrimSpace(text) != "" {
		// Heuristic with no machine readable confirmation: a pipeline
		// stuck mid step with no error output stays in_progress.
		return model.StatusInProgress
	}
	return model.StatusPending
}
