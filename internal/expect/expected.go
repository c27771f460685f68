package expect

import (
	"fmt"
	"regexp"
	"time"
)

// TimeoutPolicy governs what happens when an Expected leaf's timer fires
// without a match.
type TimeoutPolicy int

const (
	// FailCritical is the default: a timeout is an error, reported via
	// Reporter.Error, and the leaf tells its Master to collapse the
	// outstanding expectation (done=true).
	FailCritical TimeoutPolicy = iota
	// SucceedSilently treats the timeout as the desired outcome (used by
	// NoneOf's child rewrite): no error, and the leaf does not collapse
	// the expectation on its own (done=false).
	SucceedSilently
	// Ignore logs the timeout without reporting an error. As with
	// SucceedSilently, the leaf is marked timed out and does not collapse
	// the expectation on its own (done=false).
	Ignore
)

func (p TimeoutPolicy) String() string {
	switch p {
	case FailCritical:
		return "fail_critical"
	case SucceedSilently:
		return "succeed_silently"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// GateFunc optionally gates a textual match: a match is only accepted if
// the gate returns true, otherwise the leaf treats it as no match at all.
type GateFunc func() bool

// Expected is the AST leaf: a single process, a regex pattern, and a
// timeout with a policy for what happens if the pattern never matches.
type Expected struct {
	process    string
	pattern    *regexp.Regexp
	patternSrc string
	timeout    time.Duration
	policy     TimeoutPolicy
	critical   bool
	onComplete GateFunc
	report     Reporter

	master   Master
	armed    TimerHandle
	timedOut bool
}

// NewExpected constructs a leaf. timeout <= 0 means no timer is armed.
// gate may be nil.
func NewExpected(process, pattern string, timeout time.Duration, policy TimeoutPolicy, critical bool, report Reporter, gate GateFunc) (*Expected, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("expect: invalid pattern %q: %w", pattern, err)
	}
	return &Expected{
		process:    process,
		pattern:    re,
		patternSrc: pattern,
		timeout:    timeout,
		policy:     policy,
		critical:   critical,
		onComplete: gate,
		report:     report,
	}, nil
}

func (e *Expected) GetProcesses() map[string]struct{} {
	return map[string]struct{}{e.process: {}}
}

func (e *Expected) RegisterTimeouts(m Master) {
	e.master = m
	if e.timeout > 0 {
		e.armed = m.ScheduleTimeout(e.timeout, e.fire)
	}
}

func (e *Expected) CancelTimeouts() {
	if e.armed != nil {
		e.armed.Cancel()
		e.armed = nil
	}
}

// Completes implements Node. See spec for the leaf contract: an already
// timed-out leaf always reports (false, false, true); otherwise a regex
// search of the line, gated by the process name and an optional gate
// function, decides a match.
func (e *Expected) Completes(process, line string) (completed, started, timedout bool) {
	if e.timedOut {
		return false, false, true
	}
	if process != e.process {
		return false, false, false
	}
	if !e.pattern.MatchString(line) {
		return false, false, false
	}
	if e.onComplete != nil && !e.onComplete() {
		return false, false, false
	}
	e.CancelTimeouts()
	if e.report != nil {
		e.report.Info(fmt.Sprintf("seen match for %s: '%s'", e.process, e.patternSrc))
	}
	return true, true, false
}

func (e *Expected) fire() {
	e.armed = nil
	e.timedOut = true

	var done bool
	switch e.policy {
	case SucceedSilently:
		if e.report != nil {
			e.report.Info(fmt.Sprintf("%s: %s not seen in %s", e.process, e.patternSrc, e.timeout))
		}
		done = false
	case Ignore:
		if e.report != nil {
			e.report.Info(fmt.Sprintf("ignoring: %s: %s not seen in %s", e.process, e.patternSrc, e.timeout))
		}
		done = false
	default: // FailCritical
		if e.report != nil {
			e.report.Error(fmt.Sprintf("timeout after waiting %s for %s: '%s'", e.timeout, e.process, e.patternSrc), e.critical)
		}
		done = true
	}

	if e.master != nil {
		e.master.TimedOut(done)
	}
}

// setSucceedSilently rewrites this leaf's timeout policy, used by NoneOf
// to turn a child's "pattern never seen" outcome into success.
func (e *Expected) setSucceedSilently() {
	e.policy = SucceedSilently
}
