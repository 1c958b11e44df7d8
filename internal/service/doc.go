// Package service wires configuration to run supervision.
//
// Overview
// The Supervisor owns an event loop and the single run Controller of
// the session. Requests arrive on a channel, either from the HTTP API
// (the configuration UI) or from the gocron scheduler in timer mode;
// the loop serializes them so only one run is ever active.
//
// Data flow:
//
//	Supervisor              Controller                runner process
//	    |                       |                          |
//	trigger -> submit chan ---->| Submit + Execute ------->| spawned
//	    |                       | poll loop                |
//	    |<----- Done() ---------| terminal state           | exited
//	    | reset on next trigger |                          |
//
// Invariants:
//   - One active run per Supervisor; a trigger while a run is active
//     is logged and dropped.
//   - The scheduler only ever triggers, it never touches the
//     Controller directly.
//
// internal/service/supervisor_test.go shows the intended usage.
package service
