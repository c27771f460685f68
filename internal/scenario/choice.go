package scenario

// Choice picks one child by weight — a uniform draw over [0, totalWeight)
// selects by cumulative weight — and drains that child to exhaustion
// before choosing again on the next repeat.
type Choice struct {
	items         []Node
	weight        int
	repeat        int
	currentRepeat int
	totalWeight   int
	choice        Node
	rng           *Rand
	started       bool
}

// NewChoice constructs a Choice over items, weighted by each item's
// Weight(). It does not draw from rng; the first weighted pick happens
// lazily on the first Next (see ensureStarted), so that construction
// itself never consumes the shared generator's stream and Reset can
// reproduce the exact draw sequence of a fresh drain.
func NewChoice(rng *Rand, weight, repeat int, items ...Node) *Choice {
	total := 0
	for _, it := range items {
		total += it.Weight()
	}
	return &Choice{
		items:       items,
		weight:      normalize(weight),
		repeat:      normalize(repeat),
		totalWeight: total,
		rng:         rng,
	}
}

func (c *Choice) Weight() int { return c.weight }

func (c *Choice) ensureStarted() {
	if !c.started {
		c.startIteration()
		c.started = true
	}
}

func (c *Choice) startIteration() {
	c.choice = nil
	v := c.rng.IntN(c.totalWeight)
	for _, it := range c.items {
		if v < it.Weight() {
			c.choice = it
			break
		}
		v -= it.Weight()
	}
	resetAll(c.items)
}

func (c *Choice) Next() (string, bool) {
	c.ensureStarted()
	for c.currentRepeat < c.repeat {
		cmd, ok := c.choice.Next()
		if ok {
			return cmd, true
		}
		c.currentRepeat++
		c.startIteration()
	}
	return "", false
}

// Reset restarts the choice, including a fresh weighted pick (see
// Sequence.Reset's doc comment for why this strengthens the source's
// bare repeat-counter reset). Because construction itself is draw-free
// (see NewChoice), this reproduces exactly the draw a fresh Choice's
// first Next would make.
func (c *Choice) Reset() {
	c.currentRepeat = 0
	c.startIteration()
	c.started = true
}
