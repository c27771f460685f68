package harness

import "github.com/xmos-testframework/harness/internal/xlog"

// reporter adapts the Scheduler's logger to expect.Reporter: errors are
// counted by the logger, and a critical error additionally requests the
// scheduler stop, mirroring testError's "if critical and reactor_running:
// reactor.stop()".
type reporter struct {
	log        *xlog.Logger
	onCritical func()
}

func (r *reporter) Error(reason string, critical bool) {
	if r.log != nil {
		r.log.Error(reason)
	}
	if critical && r.onCritical != nil {
		r.onCritical()
	}
}

func (r *reporter) Info(message string) {
	if r.log != nil {
		r.log.Debug(message)
	}
}
