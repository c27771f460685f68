package expect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimerHandle struct{ cancelled bool }

func (h *fakeTimerHandle) Cancel() { h.cancelled = true }

// fakeMaster records armed timers without ever firing them, for tests
// that only care about residual/commitment bookkeeping, not timeouts.
type fakeMaster struct {
	armed     int
	timedOuts []bool
	fns       []func()
	handles   []*fakeTimerHandle
}

func (m *fakeMaster) ScheduleTimeout(d time.Duration, fn func()) TimerHandle {
	m.armed++
	m.fns = append(m.fns, fn)
	h := &fakeTimerHandle{}
	m.handles = append(m.handles, h)
	return h
}

func (m *fakeMaster) TimedOut(done bool) { m.timedOuts = append(m.timedOuts, done) }

func (m *fakeMaster) fire(i int) { m.fns[i]() }

type fakeReporter struct {
	errors []string
	infos  []string
}

func (r *fakeReporter) Error(reason string, critical bool) { r.errors = append(r.errors, reason) }
func (r *fakeReporter) Info(message string)                { r.infos = append(r.infos, message) }

func mustExpected(t *testing.T, process, pattern string, timeout time.Duration, policy TimeoutPolicy, critical bool, report Reporter) *Expected {
	t.Helper()
	e, err := NewExpected(process, pattern, timeout, policy, critical, report, nil)
	require.NoError(t, err)
	return e
}

func TestExpected_MatchCancelsTimerAndCompletes(t *testing.T) {
	m := &fakeMaster{}
	rep := &fakeReporter{}
	e := mustExpected(t, "dut", "Started", 10*time.Second, FailCritical, true, rep)
	e.RegisterTimeouts(m)
	require.Equal(t, 1, m.armed)

	completed, started, timedout := e.Completes("dut", "Started\n")
	assert.True(t, completed)
	assert.True(t, started)
	assert.False(t, timedout)
	assert.True(t, m.handles[0].cancelled)
}

func TestExpected_WrongProcessOrNoMatchIsNoop(t *testing.T) {
	rep := &fakeReporter{}
	e := mustExpected(t, "dut", "Started", 0, FailCritical, false, rep)

	c, s, to := e.Completes("other", "Started\n")
	assert.False(t, c || s || to)

	c, s, to = e.Completes("dut", "nope\n")
	assert.False(t, c || s || to)
}

func TestExpected_GateRejectsMatch(t *testing.T) {
	rep := &fakeReporter{}
	e, err := NewExpected("dut", "Started", 0, FailCritical, false, rep, func() bool { return false })
	require.NoError(t, err)

	c, s, to := e.Completes("dut", "Started\n")
	assert.False(t, c || s || to)
}

func TestExpected_TimeoutFailCriticalReportsAndCollapses(t *testing.T) {
	m := &fakeMaster{}
	rep := &fakeReporter{}
	e := mustExpected(t, "dut", "Started", 10*time.Second, FailCritical, true, rep)
	e.RegisterTimeouts(m)

	m.fire(0)

	require.Len(t, m.timedOuts, 1)
	assert.True(t, m.timedOuts[0])
	require.Len(t, rep.errors, 1)
	assert.Contains(t, rep.errors[0], "timeout after waiting")

	c, s, to := e.Completes("dut", "anything\n")
	assert.False(t, c)
	assert.False(t, s)
	assert.True(t, to)
}

func TestExpected_TimeoutSucceedSilentlyDoesNotCollapse(t *testing.T) {
	m := &fakeMaster{}
	rep := &fakeReporter{}
	e := mustExpected(t, "dut", "lost lock", 5*time.Second, SucceedSilently, false, rep)
	e.RegisterTimeouts(m)

	m.fire(0)

	require.Len(t, m.timedOuts, 1)
	assert.False(t, m.timedOuts[0])
	assert.Empty(t, rep.errors)
}

// Property 3: feeding a line to an AllOf with k identical children leaves
// exactly k-1 children in the residual.
func TestAllOf_AtMostOneCompletionPerLine(t *testing.T) {
	rep := &fakeReporter{}
	e1 := mustExpected(t, "dut", "ping", 0, FailCritical, false, rep)
	e2 := mustExpected(t, "dut", "ping", 0, FailCritical, false, rep)
	e3 := mustExpected(t, "dut", "ping", 0, FailCritical, false, rep)
	allOf := NewAllOf(e1, e2, e3)

	completed, started, _ := allOf.Completes("dut", "ping\n")
	assert.False(t, completed)
	assert.True(t, started)
	assert.Len(t, allOf.residual, 2)

	allOf.Completes("dut", "ping\n")
	allOf.Completes("dut", "ping\n")
	assert.Empty(t, allOf.residual)
}

func TestAllOf_CompletesWhenAllChildrenDo(t *testing.T) {
	rep := &fakeReporter{}
	e1 := mustExpected(t, "dut", "a", 0, FailCritical, false, rep)
	e2 := mustExpected(t, "dut", "b", 0, FailCritical, false, rep)
	allOf := NewAllOf(e1, e2)

	c, _, _ := allOf.Completes("dut", "a\n")
	assert.False(t, c)
	c, _, _ = allOf.Completes("dut", "b\n")
	assert.True(t, c)
}

// Property 4: after any child signals started, all other children's
// timers are cancelled.
func TestOneOf_CommitmentCancelsOtherTimers(t *testing.T) {
	m := &fakeMaster{}
	rep := &fakeReporter{}
	e1 := mustExpected(t, "ep0", "Role: Slave", 5*time.Second, FailCritical, true, rep)
	e2 := mustExpected(t, "ep1", "Role: Slave", 5*time.Second, FailCritical, true, rep)
	oneOf := NewOneOf(e1, e2)
	oneOf.RegisterTimeouts(m)
	require.Equal(t, 2, m.armed)

	// An Expected leaf starts and completes on the same line, so the
	// matching alternative completes the whole OneOf at once.
	completed, started, _ := oneOf.Completes("ep0", "Role: Slave\n")
	assert.True(t, completed)
	assert.True(t, started)
	assert.Empty(t, oneOf.residual)
	assert.True(t, m.handles[1].cancelled) // e2's timer, the uncommitted alternative
}

func TestOneOf_ChildCompletionClearsResidual(t *testing.T) {
	rep := &fakeReporter{}
	e1 := mustExpected(t, "ep0", "x", 0, FailCritical, false, rep)
	e2 := mustExpected(t, "ep1", "x", 0, FailCritical, false, rep)
	oneOf := NewOneOf(e1, e2)

	completed, _, _ := oneOf.Completes("ep0", "x\n")
	assert.True(t, completed)
	assert.Empty(t, oneOf.residual)
}

func TestNoneOf_SuccessOnAllTimeouts(t *testing.T) {
	m := &fakeMaster{}
	rep := &fakeReporter{}
	e := mustExpected(t, "ep", "lost lock", 5*time.Second, FailCritical, true, rep)
	noneOf := NewNoneOf(true, rep, e)
	noneOf.RegisterTimeouts(m)

	m.fire(0)

	completed, started, timedout := noneOf.Completes("<invalid>", "<invalid>")
	assert.True(t, completed)
	assert.True(t, started)
	assert.False(t, timedout)
	assert.Empty(t, rep.errors)
}

func TestNoneOf_FailureOnMatch(t *testing.T) {
	rep := &fakeReporter{}
	e := mustExpected(t, "ep", "lost lock", 5*time.Second, FailCritical, true, rep)
	noneOf := NewNoneOf(true, rep, e)

	completed, started, _ := noneOf.Completes("ep", "lost lock detected\n")
	assert.True(t, completed)
	assert.True(t, started)
	require.Len(t, rep.errors, 1)
	assert.Contains(t, rep.errors[0], "Seen NoneOf event")
}

// Property 5: at any instant a Sequence's armed timer set is exactly
// {head.timer}.
func TestSequence_HeadOnlyTimer(t *testing.T) {
	m := &fakeMaster{}
	rep := &fakeReporter{}
	e1 := mustExpected(t, "ep", "Count0", 10*time.Second, FailCritical, true, rep)
	e2 := mustExpected(t, "ep", "Count1", 10*time.Second, FailCritical, true, rep)
	seq := NewSequence(e1, e2)
	seq.RegisterTimeouts(m)

	assert.Equal(t, 1, m.armed)

	completed, _, _ := seq.Completes("ep", "Count0\n")
	assert.False(t, completed)
	assert.Equal(t, 2, m.armed) // e2's timer now armed

	completed, _, _ = seq.Completes("ep", "Count1\n")
	assert.True(t, completed)
}

func TestSequence_TimeoutPopsHead(t *testing.T) {
	m := &fakeMaster{}
	rep := &fakeReporter{}
	e1 := mustExpected(t, "ep", "first", 1*time.Second, SucceedSilently, false, rep)
	e2 := mustExpected(t, "ep", "second", 1*time.Second, SucceedSilently, false, rep)
	seq := NewSequence(e1, e2)
	seq.RegisterTimeouts(m)

	m.fire(0)
	completed, _, timedout := seq.Completes("ep", "irrelevant\n")
	assert.False(t, completed)
	assert.False(t, timedout)

	completed, _, timedout = seq.Completes("ep", "second\n")
	assert.True(t, completed)
	assert.False(t, timedout)
}

func TestOneOf_FromS6Scenario(t *testing.T) {
	rep := &fakeReporter{}
	m := &fakeMaster{}

	seq0, err := buildPTPSequence(t, "ep0", rep)
	require.NoError(t, err)
	seq1, err := buildPTPSequence(t, "ep1", rep)
	require.NoError(t, err)

	oneOf := NewOneOf(seq0, seq1)
	oneOf.RegisterTimeouts(m)
	require.Equal(t, 2, m.armed) // each Sequence only arms its head

	completed, started, _ := oneOf.Completes("ep0", "PTP Role: Slave\n")
	assert.False(t, completed)
	assert.True(t, started)
	assert.Len(t, oneOf.residual, 1)

	completed, _, _ = oneOf.Completes("ep0", "PTP sync locked\n")
	assert.True(t, completed)
}

func buildPTPSequence(t *testing.T, process string, rep Reporter) (*Sequence, error) {
	t.Helper()
	role, err := NewExpected(process, "PTP Role: Slave", 5*time.Second, FailCritical, true, rep, nil)
	if err != nil {
		return nil, err
	}
	sync, err := NewExpected(process, "PTP sync locked", 1*time.Second, FailCritical, true, rep, nil)
	if err != nil {
		return nil, err
	}
	return NewSequence(role, sync), nil
}
