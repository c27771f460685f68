package expect

import "fmt"

// policyRewriter is implemented by leaves whose timeout policy NoneOf can
// rewrite. Only Expected implements it; NoneOf's children are expected to
// be leaves (or trees whose own construction already arranged for the
// right policy), matching the source's child.func rewrite.
type policyRewriter interface {
	setSucceedSilently()
}

// NoneOf completes successfully only if every child times out without
// ever completing or starting; any child match is a reported failure.
// Children's timeout policy is rewritten to SucceedSilently at
// construction, since "never seen" is the desired outcome for a NoneOf
// child, not a failure.
type NoneOf struct {
	residual []Node
	critical bool
	report   Reporter
}

// NewNoneOf constructs a NoneOf over children, none of which should ever
// match. critical governs whether a forbidden match stops the run.
func NewNoneOf(critical bool, report Reporter, children ...Node) *NoneOf {
	residual := append([]Node(nil), children...)
	for _, c := range residual {
		if pr, ok := c.(policyRewriter); ok {
			pr.setSucceedSilently()
		}
	}
	return &NoneOf{residual: residual, critical: critical, report: report}
}

func (n *NoneOf) GetProcesses() map[string]struct{} { return unionProcesses(n.residual) }

func (n *NoneOf) RegisterTimeouts(m Master) {
	for _, c := range n.residual {
		c.RegisterTimeouts(m)
	}
}

func (n *NoneOf) CancelTimeouts() {
	for _, c := range n.residual {
		c.CancelTimeouts()
	}
}

func (n *NoneOf) Completes(process, line string) (completed, started, timedout bool) {
	var timedOutChildren []Node

	for _, c := range n.residual {
		cc, cs, ct := c.Completes(process, line)
		if cc || cs {
			if n.report != nil {
				n.report.Error(fmt.Sprintf("Seen NoneOf event %s:\n   Actual: %s", process, line), n.critical)
			}
			n.CancelTimeouts()
			n.residual = nil
			return true, true, false
		}
		if ct {
			timedOutChildren = append(timedOutChildren, c)
		}
	}

	if len(timedOutChildren) > 0 {
		removed := make(map[Node]struct{}, len(timedOutChildren))
		for _, c := range timedOutChildren {
			c.CancelTimeouts()
			removed[c] = struct{}{}
		}
		kept := n.residual[:0:0]
		for _, c := range n.residual {
			if _, gone := removed[c]; !gone {
				kept = append(kept, c)
			}
		}
		n.residual = kept
	}

	completed := len(n.residual) == 0
	return completed, completed, false
}
