package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_RepeatsThenExhausts(t *testing.T) {
	c := NewCommand("go", 1, 3)

	for i := 0; i < 3; i++ {
		cmd, ok := c.Next()
		require.True(t, ok)
		assert.Equal(t, "go", cmd)
	}
	_, ok := c.Next()
	assert.False(t, ok)

	c.Reset()
	cmd, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, "go", cmd)
}

func TestSequence_VisitsEveryChildOncePerRepeat(t *testing.T) {
	rng := NewRand(1)
	seq := NewSequence(rng, false, 1, 2, NewCommand("a", 1, 1), NewCommand("b", 1, 1))

	tree := NewTree(seq, rng)
	got := tree.Drain()
	assert.Equal(t, []string{"a", "b", "a", "b"}, got)
}

// Property 7: restartability. Two drainings of the same tree, separated
// by Reset, produce identical sequences.
func TestTree_RestartabilityWithOrderRand(t *testing.T) {
	build := func() *Tree {
		rng := NewRand(1)
		root := NewSequence(rng, true, 1, 10,
			NewCommand("+", 1, 2),
			NewChoice(rng, 1, 10, NewCommand("A", 10, 1), NewCommand("B", 1, 1)),
			NewCommand("*", 1, 1),
		)
		return NewTree(root, rng)
	}

	tree := build()
	first := tree.Drain()
	require.NotEmpty(t, first)

	tree.Reset()
	second := tree.Drain()

	assert.Equal(t, first, second)
}

// S5 shape: Sequence[Command("+",repeat=2), Choice[...](repeat=10),
// Command("*")](order_rand=True, repeat=10) drains to a fixed-size
// sequence (2 + 10 + 1 per repeat, 10 repeats).
func TestTree_S5Shape(t *testing.T) {
	rng := NewRand(1)
	root := NewSequence(rng, true, 1, 10,
		NewCommand("+", 1, 2),
		NewChoice(rng, 1, 10, NewCommand("A", 10, 1), NewCommand("B", 1, 1)),
		NewCommand("*", 1, 1),
	)
	tree := NewTree(root, rng)

	out := tree.Drain()
	assert.Len(t, out, 130)

	plusCount, starCount := 0, 0
	for _, c := range out {
		switch c {
		case "+":
			plusCount++
		case "*":
			starCount++
		}
	}
	assert.Equal(t, 20, plusCount)
	assert.Equal(t, 10, starCount)
}

// Property 8: weighted choice ratio approaches wa/(wa+wb) for large N.
func TestChoice_WeightedRatioApproachesWeights(t *testing.T) {
	rng := NewRand(42)
	choice := NewChoice(rng, 1, 5000, NewCommand("A", 10, 1), NewCommand("B", 1, 1))

	var aCount, bCount int
	for {
		cmd, ok := choice.Next()
		if !ok {
			break
		}
		if cmd == "A" {
			aCount++
		} else {
			bCount++
		}
	}

	ratio := float64(aCount) / float64(aCount+bCount)
	assert.InDelta(t, 10.0/11.0, ratio, 0.03)
}

func TestParseTree_JSONSurface(t *testing.T) {
	doc := []byte(`{
		"sequence": [
			{"command": "+", "repeat": 2},
			{"choice": [{"command": "A", "weight": 10}, {"command": "B", "weight": 1}], "repeat": 10},
			{"command": "*"}
		],
		"order_rand": true,
		"repeat": 10
	}`)

	tree, err := ParseTree(1, doc)
	require.NoError(t, err)

	out := tree.Drain()
	assert.Len(t, out, 130)
}

func TestParseTree_RejectsUnknownShape(t *testing.T) {
	_, err := ParseTree(1, []byte(`{"nonsense": 1}`))
	assert.Error(t, err)
}
