// Package harness is the master controller: the single-threaded scheduler
// that owns the outstanding expectation list, drives the timer service,
// and resumes the suspended test coroutine when an expectation is
// satisfied or fatally times out.
package harness

import (
	"fmt"
	"sync"
	"time"

	"github.com/xmos-testframework/harness/internal/expect"
	"github.com/xmos-testframework/harness/internal/procsup"
	"github.com/xmos-testframework/harness/internal/timer"
	"github.com/xmos-testframework/harness/internal/xlog"
)

// Scheduler is the master controller (spec §4.E). All of its state is
// touched only from jobs run on its own loop goroutine (started by Run);
// every exported method that isn't already guaranteed to run there posts
// a job and, where the operation is synchronous from the caller's point
// of view (Expect), waits for the job's result.
type Scheduler struct {
	sup      *procsup.Supervisor
	timers   *timer.Service
	log      *xlog.Logger
	reporter *reporter

	jobs chan func()

	stopOnce sync.Once
	stopCh   chan struct{}

	expected     []expect.Node
	nextExpected []expect.Node
	resume       chan []expect.Node
}

// New constructs a Scheduler. clock is the timer service's time source;
// pass nil for the real clock or a *timer.FakeClock in tests.
func New(clock timer.Clock, log *xlog.Logger) *Scheduler {
	s := &Scheduler{
		log:    log,
		jobs:   make(chan func(), 256),
		stopCh: make(chan struct{}),
	}
	s.reporter = &reporter{log: log, onCritical: s.RequestStop}
	s.timers = timer.New(clock, s.post)
	s.sup = procsup.NewSupervisor(log, s)
	return s
}

func (s *Scheduler) post(fn func()) { s.jobs <- fn }

// Supervisor exposes the underlying process registry, for callers that
// need Spawn/Register/SendLine beyond what the Scheduler re-exports.
func (s *Scheduler) Supervisor() *procsup.Supervisor { return s.sup }

// Reporter returns the expect.Reporter this Scheduler feeds to
// expectation leaves it constructs on the caller's behalf, for callers
// constructing expect.Node trees directly.
func (s *Scheduler) Reporter() expect.Reporter { return s.reporter }

// RequestStop asks the scheduler's Run loop to return at its next
// opportunity. Idempotent.
func (s *Scheduler) RequestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run drains jobs until stopCh fires or done is closed. It is meant to be
// run on its own goroutine; every other Scheduler method is safe to call
// from other goroutines precisely because they hand their work to this
// loop.
func (s *Scheduler) Run(done <-chan struct{}) {
	for {
		select {
		case job := <-s.jobs:
			job()
		case <-s.stopCh:
			return
		case <-done:
			return
		}
	}
}

// Receive implements procsup.LineReceiver: the process supervisor calls
// this from its own reader goroutines, so it must hand off to the
// scheduler loop rather than touch s.expected directly.
func (s *Scheduler) Receive(process, line string) {
	s.post(func() { s.handleReceive(process, line) })
}

func (s *Scheduler) handleReceive(process, line string) {
	if len(s.expected) == 0 {
		return
	}
	completed, started, _ := s.checkReceived(process, line)
	if started && !completed {
		s.checkAgainstHistory()
	}
	if len(s.expected) == 0 {
		s.callResume()
	}
}

// checkReceived implements master.py's checkReceived: every outstanding
// root is fed the line; a root that completes is replaced by an empty
// AllOf sentinel so the other indices' positions stay stable.
func (s *Scheduler) checkReceived(process, line string) (completed, started, timedout bool) {
	next := make([]expect.Node, len(s.expected))
	completed = true
	for i, e := range s.expected {
		ec, es, et := e.Completes(process, line)
		started = started || es
		timedout = timedout || et

		if ec || es {
			if p, ok := s.sup.Process(process); ok {
				p.MoveHistoryIndex(i, line)
			}
		}

		if ec {
			next[i] = expect.NewAllOf()
		} else {
			completed = false
			next[i] = e
		}
	}
	if completed {
		s.expected = nil
	} else {
		s.expected = next
	}
	return completed, started, timedout
}

// checkAgainstHistory replays each outstanding root's processes' history
// from its cursor until a pass makes no further progress (spec's fixpoint
// loop), so that a line already seen before an Expect call still
// satisfies a newly-registered leaf.
func (s *Scheduler) checkAgainstHistory() {
	for {
		changed := false
		snapshot := s.expected
		for i, e := range snapshot {
			for process := range e.GetProcesses() {
				proc, ok := s.sup.Process(process)
				if !ok {
					continue
				}
				for _, line := range proc.ExpectHistory(i) {
					completed, started, _ := s.checkReceived(process, line)
					changed = changed || (started && !completed)
					if len(s.expected) == 0 {
						return
					}
				}
			}
		}
		if !changed {
			return
		}
	}
}

// Expect sets the outstanding expectation to root and blocks the calling
// goroutine (the test coroutine) until it is satisfied or a fatal timeout
// collapses it, returning whatever roots remain (empty on success).
func (s *Scheduler) Expect(root expect.Node) []expect.Node {
	result := make(chan []expect.Node, 1)
	s.post(func() {
		s.expected = []expect.Node{root}
		s.checkAgainstHistory()
		if len(s.expected) == 0 {
			result <- nil
			return
		}
		for _, e := range s.expected {
			e.RegisterTimeouts(s)
		}
		s.resume = result
	})
	return <-result
}

// AddExpected appends to the staging list built up between tests,
// matching master.py's addExpected.
func (s *Scheduler) AddExpected(e expect.Node) {
	if e == nil {
		return
	}
	done := make(chan struct{})
	s.post(func() {
		s.nextExpected = append(s.nextExpected, e)
		close(done)
	})
	<-done
}

// callResume implements the "coroutine resume" operation: snapshot and
// clear expected, then deliver it on the channel Expect is blocked
// reading, exactly once.
func (s *Scheduler) callResume() {
	if s.resume == nil {
		return
	}
	remaining := s.expected
	s.expected = nil
	ch := s.resume
	s.resume = nil
	ch <- remaining
}

// TimedOut implements expect.Master. It is only ever invoked from within
// a timer callback, which the timer service already runs on this
// Scheduler's own loop goroutine (via post), so no further hand-off is
// needed here.
func (s *Scheduler) TimedOut(done bool) {
	if done {
		for _, e := range s.expected {
			e.CancelTimeouts()
		}
		s.callResume()
		return
	}
	s.checkReceived("<invalid>", "<invalid>")
	if len(s.expected) == 0 {
		s.callResume()
	}
}

// ScheduleTimeout implements expect.Master.
func (s *Scheduler) ScheduleTimeout(d time.Duration, fn func()) expect.TimerHandle {
	return timerHandle{s.timers.Schedule(d, fn)}
}

type timerHandle struct{ h *timer.Handle }

func (t timerHandle) Cancel() { t.h.Cancel() }

// SendLine writes command to the named process's stdin, with no
// synchronization against the matching engine (spec §4.E).
func (s *Scheduler) SendLine(process, command string) error {
	p, ok := s.sup.Process(process)
	if !ok {
		return fmt.Errorf("harness: unknown process %q", process)
	}
	return p.SendLine(command)
}

// ClearExpectHistory truncates the named process's history.
func (s *Scheduler) ClearExpectHistory(process string) {
	s.sup.ClearExpectHistory(process)
}

// Shutdown terminates every active process: on Unix it first sends SIGINT
// to the whole process group after ignoring it in the parent (a no-op
// elsewhere); then, on every platform, it kills each tracked child
// directly (spec §4.G).
func (s *Scheduler) Shutdown() {
	procsup.Shutdown()
	s.sup.KillAll()
}
