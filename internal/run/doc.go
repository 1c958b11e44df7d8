// Package run supervises one pipeline run from submission to a
// terminal state.
//
// Overview
// The Controller owns the authoritative run state machine
//
//	idle -> ready -> running -> {completed | failed | cancelled}
//
// plus everything shared for the active run: the process handle, the
// per source offset table and the append-only log buffer. A single
// ticker driven goroutine performs the poll cycle; every mutation goes
// through the controller mutex so a user cancel is serialized against
// an in-flight tick.
//
// Data flow:
//
//	caller                  Controller              proc / runlog
//	  |                         |                        |
//	  | Submit(req) ----------->| ready                  |
//	  | Execute() ------------->| Start runner --------->| spawn, wait in goroutine
//	  |                         | running, poll loop     |
//	  |                         |   tick: Poll --------->| tail log files
//	  |                         |   tick: Alive? ------->| non-blocking check
//	  |                         | exit: final drain,     |
//	  |                         | classify exit code     |
//	  | Cancel() -------------->| cancelled, kill tree ->| SIGKILL process group
//	  |<-- Snapshot()/Since() --| copy of the buffer     |
//
// Invariants:
//   - At most one process handle per Controller at a time.
//   - The log buffer is append-only; lines are never reordered,
//     rewritten or deduplicated.
//   - Offsets only grow during a run and reset on a new Submit.
//   - Terminal states stop the poll loop; a new run needs Reset and a
//     fresh request.
//   - Transient log read errors never change the run state; only
//     process lifecycle events do.
package run
