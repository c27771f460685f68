package expect

// OneOf completes when exactly one child completes; the others are
// alternatives that are cancelled. The first child to *start* (without
// necessarily completing) commits the whole node to that alternative:
// every other child's timer is cancelled and removed from the residual.
type OneOf struct {
	residual []Node
}

// NewOneOf constructs a OneOf over the given alternatives.
func NewOneOf(children ...Node) *OneOf {
	return &OneOf{residual: append([]Node(nil), children...)}
}

func (o *OneOf) GetProcesses() map[string]struct{} { return unionProcesses(o.residual) }

func (o *OneOf) RegisterTimeouts(m Master) {
	for _, c := range o.residual {
		c.RegisterTimeouts(m)
	}
}

func (o *OneOf) CancelTimeouts() {
	for _, c := range o.residual {
		c.CancelTimeouts()
	}
}

func (o *OneOf) Completes(process, line string) (completed, started, timedout bool) {
	for i, c := range o.residual {
		cc, cs, ct := c.Completes(process, line)
		started = started || cs
		timedout = timedout || ct

		switch {
		case cc || ct:
			for j, other := range o.residual {
				if j != i {
					other.CancelTimeouts()
				}
			}
			o.residual = nil
		case cs:
			for j, other := range o.residual {
				if j != i {
					other.CancelTimeouts()
				}
			}
			o.residual = []Node{c}
		}
		if cc || cs || ct {
			break
		}
	}
	return len(o.residual) == 0, started, timedout
}
