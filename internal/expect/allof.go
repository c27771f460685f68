package expect

// AllOf completes when every child has completed. Each line feeds at most
// one child: the residual is walked in a fixed (construction) order and
// the loop breaks as soon as one child starts, completes, or times out.
// This is what lets N identical children require N distinct lines.
type AllOf struct {
	residual []Node
}

// NewAllOf constructs an AllOf over children, in the given order. The
// order is used only to make iteration deterministic; it carries no
// other meaning.
func NewAllOf(children ...Node) *AllOf {
	return &AllOf{residual: append([]Node(nil), children...)}
}

func (a *AllOf) GetProcesses() map[string]struct{} { return unionProcesses(a.residual) }

func (a *AllOf) RegisterTimeouts(m Master) {
	for _, c := range a.residual {
		c.RegisterTimeouts(m)
	}
}

func (a *AllOf) CancelTimeouts() {
	for _, c := range a.residual {
		c.CancelTimeouts()
	}
}

func (a *AllOf) Completes(process, line string) (completed, started, timedout bool) {
	for i, c := range a.residual {
		cc, cs, ct := c.Completes(process, line)
		started = started || cs
		timedout = timedout || ct

		if cc || ct {
			a.residual = append(a.residual[:i:i], a.residual[i+1:]...)
		}
		if cc || cs || ct {
			break
		}
	}
	return len(a.residual) == 0, started, timedout
}
