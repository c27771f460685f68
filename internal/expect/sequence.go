package expect

// Sequence completes its children left to right. Only the head of the
// residual is ever active: only its timer is armed, and only it is fed
// lines. When the head completes or times out it is popped and the new
// head (if any) is armed.
type Sequence struct {
	residual []Node
	master   Master
}

// NewSequence constructs a Sequence over children, in order.
func NewSequence(children ...Node) *Sequence {
	return &Sequence{residual: append([]Node(nil), children...)}
}

func (s *Sequence) GetProcesses() map[string]struct{} { return unionProcesses(s.residual) }

func (s *Sequence) RegisterTimeouts(m Master) {
	s.master = m
	if len(s.residual) > 0 {
		s.residual[0].RegisterTimeouts(m)
	}
}

func (s *Sequence) CancelTimeouts() {
	if len(s.residual) > 0 {
		s.residual[0].CancelTimeouts()
	}
}

func (s *Sequence) Completes(process, line string) (completed, started, timedout bool) {
	if len(s.residual) == 0 {
		return true, false, false
	}

	head := s.residual[0]
	cc, started, ct := head.Completes(process, line)

	if cc {
		head.CancelTimeouts()
	}
	if cc || ct {
		s.residual = s.residual[1:]
		if len(s.residual) > 0 && s.master != nil {
			s.residual[0].RegisterTimeouts(s.master)
		}
	}

	completed = len(s.residual) == 0
	if completed {
		timedout = ct
	}
	return completed, started, timedout
}
