// Package expect implements the expectation AST: a combinator tree
// (Expected, AllOf, OneOf, NoneOf, Sequence) whose leaves are timed
// regex matches against a single process's line stream.
//
// The whole tree is evaluated from one goroutine (the harness scheduler's
// own), so none of the types here take a lock: correctness rests on the
// same single-threaded invariant the rest of the harness relies on.
package expect

import "time"

// Node is implemented by every AST node: leaves and combinators alike.
type Node interface {
	// GetProcesses returns the union of process names referenced by every
	// leaf still in this node's residual.
	GetProcesses() map[string]struct{}

	// RegisterTimeouts arms whatever timers this node owns, recursively.
	// Sequence only arms its current head.
	RegisterTimeouts(m Master)

	// CancelTimeouts idempotently disarms every timer this node or its
	// residual children own.
	CancelTimeouts()

	// Completes evaluates line against this node, possibly mutating its
	// residual state, and reports whether the node started, completed,
	// or timed out as a result.
	Completes(process, line string) (completed, started, timedout bool)
}

// TimerHandle is a cancellable reference to an armed timeout, returned by
// Master.ScheduleTimeout.
type TimerHandle interface {
	Cancel()
}

// Master is the narrow view of the harness scheduler that expectation
// nodes need: the ability to arm a timeout and the ability to report that
// one fired.
type Master interface {
	// ScheduleTimeout arms fn to run after d on the scheduler goroutine.
	ScheduleTimeout(d time.Duration, fn func()) TimerHandle

	// TimedOut is invoked by a leaf whose timer fired. done mirrors the
	// leaf's timeout policy: true collapses the whole outstanding
	// expectation, false lets the scheduler re-check residuals.
	TimedOut(done bool)
}

// Reporter receives the expectation engine's diagnostic output: pattern
// matches, timeouts, and forbidden NoneOf matches. The harness package's
// Scheduler supplies one (Scheduler.Reporter) that routes Error through
// its logger's error count and Info through its debug tier.
type Reporter interface {
	// Error records a failure. critical signals the run should stop.
	Error(reason string, critical bool)
	// Info records a non-error diagnostic (a successful match, an
	// expected timeout passing silently, an ignored timeout).
	Info(message string)
}

func unionProcesses(nodes []Node) map[string]struct{} {
	out := make(map[string]struct{})
	for _, n := range nodes {
		for p := range n.GetProcesses() {
			out[p] = struct{}{}
		}
	}
	return out
}
