// Package timer provides the harness's single-threaded timer service:
// one-shot callbacks armed through a Clock and posted to run on the
// scheduler goroutine that owns the Service. The deadline min-heap lives in
// FakeClock, the deterministic Clock used by tests.
package timer

import (
	"container/heap"
	"time"
)

// Clock abstracts wall-clock time so tests can drive timers without
// sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) StopFunc
}

// StopFunc cancels an underlying clock alarm. Calling it after the alarm
// has already fired is a no-op.
type StopFunc func() bool

// RealClock is the production Clock, backed by time.AfterFunc.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) StopFunc {
	t := time.AfterFunc(d, f)
	return func() bool { return t.Stop() }
}

// Handle is a cancellable, idempotent reference to a scheduled callback.
type Handle struct {
	svc     *Service
	id      uint64
	stop    StopFunc
	fired   bool
	stopped bool
}

// Cancel disarms the timer. Safe to call multiple times and safe to call
// after the timer has already fired (both are no-ops).
func (h *Handle) Cancel() {
	if h == nil || h.stopped {
		return
	}
	h.stopped = true
	if h.stop != nil {
		h.stop()
	}
	h.svc.forget(h.id)
}

// Fired reports whether the callback has already run (the timer is
// "consumed", per spec §4.D, so the owner does not try to double-cancel).
func (h *Handle) Fired() bool {
	if h == nil {
		return false
	}
	return h.fired
}

// Service schedules one-shot callbacks at a wall-clock delta. All callbacks
// registered through a Service are expected to run on the single scheduler
// goroutine that owns it; Service itself does not introduce concurrency
// beyond what the Clock does to deliver the fire signal.
type Service struct {
	clock   Clock
	nextID  uint64
	pending map[uint64]*Handle
	post    func(func())
}

// New constructs a Service. post is called (from whatever goroutine the
// Clock's alarm fires on) with the callback that must run on the scheduler
// goroutine; a typical Scheduler passes a function that pushes onto its
// internal dispatch channel.
func New(clock Clock, post func(func())) *Service {
	if clock == nil {
		clock = RealClock{}
	}
	return &Service{clock: clock, pending: make(map[uint64]*Handle), post: post}
}

// Schedule arms a callback to run after d. d <= 0 is rejected by the caller
// (spec: a zero timeout means "no timer" and callers should not call
// Schedule in that case); Schedule itself just arms whatever it's given.
func (s *Service) Schedule(d time.Duration, fn func()) *Handle {
	s.nextID++
	id := s.nextID
	h := &Handle{svc: s, id: id}
	h.stop = s.clock.AfterFunc(d, func() {
		s.post(func() {
			if h.stopped {
				return
			}
			h.fired = true
			delete(s.pending, id)
			fn()
		})
	})
	s.pending[id] = h
	return h
}

// Len reports the number of currently-armed timers, for tests asserting
// e.g. "a Sequence's armed timer set is exactly {head.timer}".
func (s *Service) Len() int { return len(s.pending) }

func (s *Service) forget(id uint64) { delete(s.pending, id) }

// heapEntry and the heap.Interface implementation below back an
// alternative, fully in-process Clock (FakeClock) used by tests: rather
// than relying on real timers, FakeClock keeps a min-heap of pending
// alarms keyed by deadline and only fires them when the test explicitly
// advances the clock.
type heapEntry struct {
	when  time.Time
	seq   uint64
	fn    func()
	index int
}

type alarmHeap []*heapEntry

func (h alarmHeap) Len() int { return len(h) }
func (h alarmHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h alarmHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *alarmHeap) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// FakeClock is a deterministic Clock for tests: time only advances when
// Advance is called, and alarms fire synchronously (on the calling
// goroutine) in deadline order as they come due.
type FakeClock struct {
	now    time.Time
	seq    uint64
	alarms alarmHeap
	byID   map[uint64]*heapEntry
}

// NewFakeClock creates a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start, byID: make(map[uint64]*heapEntry)}
}

func (c *FakeClock) Now() time.Time { return c.now }

func (c *FakeClock) AfterFunc(d time.Duration, f func()) StopFunc {
	c.seq++
	id := c.seq
	e := &heapEntry{when: c.now.Add(d), seq: id, fn: f}
	c.byID[id] = e
	heap.Push(&c.alarms, e)
	return func() bool {
		existing, ok := c.byID[id]
		if !ok {
			return false
		}
		delete(c.byID, id)
		if existing.index >= 0 {
			heap.Remove(&c.alarms, existing.index)
		}
		return true
	}
}

// Advance moves the fake clock forward by d, firing (in deadline order,
// synchronously) every alarm whose deadline is now due.
func (c *FakeClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for c.alarms.Len() > 0 {
		next := c.alarms[0]
		if next.when.After(target) {
			break
		}
		heap.Pop(&c.alarms)
		delete(c.byID, next.seq)
		c.now = next.when
		next.fn()
	}
	c.now = target
}
