package runtime

import "github.com/justapithecus/pulse/types"

// Process exit codes.
const (
	ExitCodeOK       = 0 // snapshot produced (failed views are data)
	ExitCodeDegraded = 1 // strict mode and at least one view failed
	ExitCodeFatal    = 2 // no snapshot: bad input, unknown view, config error
)

// ExitCode maps a finished run to a process exit code.
//
// Per-view failures are part of a successful run, so without strict the
// code is always ExitCodeOK. A nil snapshot means the run never produced
// one and maps to ExitCodeFatal.
func ExitCode(snap *types.Snapshot, strict bool) int {
	if snap == nil {
		return ExitCodeFatal
	}
	if strict && snap.Summary().Failed > 0 {
		return ExitCodeDegraded
	}
	return ExitCodeOK
}
