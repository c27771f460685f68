package scenario

import (
	"encoding/json"
	"fmt"
)

// jsonNode mirrors the JSON surface: an object containing "sequence"
// constructs a Sequence, "choice" a Choice, "command" a Command.
// "repeat", "weight", and "order_rand" are recognized on any of the
// three.
type jsonNode struct {
	Sequence  []json.RawMessage `json:"sequence"`
	Choice    []json.RawMessage `json:"choice"`
	Command   *string           `json:"command"`
	Repeat    int               `json:"repeat"`
	Weight    int               `json:"weight"`
	OrderRand bool              `json:"order_rand"`
}

// ParseTree decodes a scenario tree from JSON, using a fresh Rand seeded
// with seed. The returned Tree owns that Rand, so Tree.Reset reproduces
// the same draining deterministically.
//
// The source's object_hook passes unrecognized objects through unchanged
// and accepts a bare array as a document root; this port narrows that to
// the three known node shapes and requires a single object root, erroring
// on anything else rather than silently passing it through.
func ParseTree(seed uint64, data []byte) (*Tree, error) {
	rng := NewRand(seed)
	root, err := parseNode(rng, data)
	if err != nil {
		return nil, err
	}
	return NewTree(root, rng), nil
}

func parseNode(rng *Rand, data []byte) (Node, error) {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	switch {
	case jn.Command != nil:
		return NewCommand(*jn.Command, jn.Weight, jn.Repeat), nil

	case jn.Sequence != nil:
		items, err := parseNodes(rng, jn.Sequence)
		if err != nil {
			return nil, err
		}
		return NewSequence(rng, jn.OrderRand, jn.Weight, jn.Repeat, items...), nil

	case jn.Choice != nil:
		items, err := parseNodes(rng, jn.Choice)
		if err != nil {
			return nil, err
		}
		return NewChoice(rng, jn.Weight, jn.Repeat, items...), nil

	default:
		return nil, fmt.Errorf("scenario: object has none of \"sequence\", \"choice\", or \"command\"")
	}
}

func parseNodes(rng *Rand, raws []json.RawMessage) ([]Node, error) {
	out := make([]Node, len(raws))
	for i, raw := range raws {
		n, err := parseNode(rng, raw)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
