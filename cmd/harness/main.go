// Command harness is the default test-runner entry point (spec.md §6's
// base CLI surface): a thin cobra wrapper around internal/harness that
// wires together the logger, the scheduler, and one example scenario. A
// real test binary imports internal/harness directly, builds its own
// harness.TestFunc, and adds its own positional/flag arguments the way
// this file adds --seed; this command exists to exercise the wiring
// end-to-end and as a template for such test-specific cmd/<test>
// binaries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xmos-testframework/harness/internal/expect"
	"github.com/xmos-testframework/harness/internal/harness"
	"github.com/xmos-testframework/harness/internal/timer"
	"github.com/xmos-testframework/harness/internal/xlog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		logFile     string
		summaryFile string
		seed        uint64
	)

	root := &cobra.Command{
		Use:           "harness",
		Short:         "Run the example two-process ready-check scenario",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetArgs(args)
	root.PersistentFlags().StringVar(&logFile, "logfile", "run.log", "Path to the detailed log file")
	root.PersistentFlags().StringVar(&summaryFile, "summaryfile", "", "Path to mirror the one-line pass/fail summary to (optional)")
	root.PersistentFlags().Uint64Var(&seed, "seed", 1, "Seed for any scenario generator the test constructs")

	var exitCode int
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		opts := []xlog.Option{
			xlog.WithConsoleLevel(xlog.LevelInfo),
			xlog.WithLogFile(logFile),
			xlog.WithFileLevel(xlog.LevelDebug),
		}
		if summaryFile != "" {
			opts = append(opts, xlog.WithSummaryFile(summaryFile))
		}
		log, err := xlog.New(opts...)
		if err != nil {
			return fmt.Errorf("harness: opening logs: %w", err)
		}

		sched := harness.New(timer.RealClock{}, log)

		ctx, cancel := newCancellableContext()
		defer cancel()

		if runErr := harness.RunTest(ctx, sched, exampleScenario(seed, log)); runErr != nil {
			log.Error(runErr.Error())
		}

		exitCode = log.PrintSummary(cmd.OutOrStdout())
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// newCancellableContext cancels on SIGINT/SIGTERM, so a Ctrl+C during the
// test coroutine reaches harness.RunTest's shutdown path instead of
// killing the process out from under its managed children.
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

// exampleScenario spawns two shell children that each print "ready" and
// waits for both lines, demonstrating the base wiring: Spawn, an AllOf
// over two Expected leaves, and Expect. seed is accepted (and logged) to
// show where a test-specific scenario generator seed would plug in; this
// example scenario has no branching to seed.
func exampleScenario(seed uint64, log *xlog.Logger) harness.TestFunc {
	return func(ctx context.Context, s *harness.Scheduler) error {
		log.Info(fmt.Sprintf("starting example scenario (seed=%d)", seed))

		sup := s.Supervisor()
		for _, name := range []string{"alpha", "beta"} {
			if _, err := sup.Spawn(ctx, name, "sh", []string{"-c", "echo ready"}, ""); err != nil {
				return fmt.Errorf("spawning %s: %w", name, err)
			}
		}

		alpha, err := expect.NewExpected("alpha", `^ready$`, 5*time.Second, expect.FailCritical, true, s.Reporter(), nil)
		if err != nil {
			return err
		}
		beta, err := expect.NewExpected("beta", `^ready$`, 5*time.Second, expect.FailCritical, true, s.Reporter(), nil)
		if err != nil {
			return err
		}

		s.Expect(expect.NewAllOf(alpha, beta))
		return nil
	}
}
