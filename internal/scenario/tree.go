package scenario

// Tree is a complete scenario: a root node plus the shared Rand its
// Sequence/Choice descendants draw from.
type Tree struct {
	root Node
	rng  *Rand
}

// NewTree wraps root with the Rand used to construct it.
func NewTree(root Node, rng *Rand) *Tree {
	return &Tree{root: root, rng: rng}
}

// Next yields the tree's next command, or ok=false once fully drained.
func (t *Tree) Next() (string, bool) { return t.root.Next() }

// Reset reseeds the shared Rand back to its construction seed and resets
// the whole tree, so draining again reproduces the same command
// sequence.
func (t *Tree) Reset() {
	t.rng.Reset()
	t.root.Reset()
}

// Drain exhausts the tree, collecting every command it yields. Intended
// for tests and scenario tooling, not for driving a live process (which
// should pace commands against SendLine instead of draining up front).
func (t *Tree) Drain() []string {
	var out []string
	for {
		cmd, ok := t.Next()
		if !ok {
			return out
		}
		out = append(out, cmd)
	}
}
