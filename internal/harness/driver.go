package harness

import (
	"context"
	"fmt"
)

// TestFunc is a cooperative test coroutine: it runs on its own goroutine
// and suspends by calling s.Expect, returning an error (or nil) when the
// scenario is done.
type TestFunc func(ctx context.Context, s *Scheduler) error

// RunTest implements the test coroutine driver (spec §4.G): it starts the
// scheduler loop, runs fn to completion (or until ctx is cancelled),
// then runs the shutdown hook, terminating every process under
// management, and returns fn's error.
func RunTest(ctx context.Context, s *Scheduler, fn TestFunc) error {
	loopDone := make(chan struct{})
	go func() {
		s.Run(ctx.Done())
		close(loopDone)
	}()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("harness: test coroutine panicked: %v", r)
			}
		}()
		result <- fn(ctx, s)
	}()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.Shutdown()
	s.RequestStop()
	<-loopDone

	return err
}
