package snarktest

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/trace"
)

// MemoryLedger is an in-memory MiMC Merkle tree implementing trace.Query.
// The root of an empty tree is a fold of zero leaves and therefore non-zero,
// so a fresh ledger already satisfies the non-zero-root requirement.
type MemoryLedger struct {
	depth  int
	leaves []fr.Element
	index  map[fr.Element]uint64
}

// NewMemoryLedger returns an empty ledger of the given tree depth.
func NewMemoryLedger(depth int) *MemoryLedger {
	return &MemoryLedger{depth: depth, index: make(map[fr.Element]uint64)}
}

// Add appends a commitment to the ledger state.
func (l *MemoryLedger) Add(commitment fr.Element) error {
	if uint64(len(l.leaves)) == 1<<l.depth {
		return fmt.Errorf("ledger is full: %d commitments", len(l.leaves))
	}
	if _, ok := l.index[commitment]; ok {
		return fmt.Errorf("commitment %s already exists", commitment.String())
	}
	l.index[commitment] = uint64(len(l.leaves))
	l.leaves = append(l.leaves, commitment)
	return nil
}

// StateRoot implements trace.Query.
func (l *MemoryLedger) StateRoot(ctx context.Context) (fr.Element, error) {
	if err := ctx.Err(); err != nil {
		return fr.Element{}, err
	}
	return l.node(l.depth, 0), nil
}

// StatePath implements trace.Query.
func (l *MemoryLedger) StatePath(ctx context.Context, commitment fr.Element) (*trace.StatePath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	leafIndex, ok := l.index[commitment]
	if !ok {
		return nil, fmt.Errorf("commitment %s does not exist in the ledger", commitment.String())
	}
	siblings := make([]fr.Element, l.depth)
	idx := leafIndex
	for level := 0; level < l.depth; level++ {
		siblings[level] = l.node(level, idx^1)
		idx >>= 1
	}
	return &trace.StatePath{
		GlobalStateRoot: l.node(l.depth, 0),
		Leaf:            commitment,
		LeafIndex:       leafIndex,
		Siblings:        siblings,
	}, nil
}

// node computes the tree node at the given level (0 = leaves) and position.
// Absent leaves are zero.
func (l *MemoryLedger) node(level int, position uint64) fr.Element {
	if level == 0 {
		if position < uint64(len(l.leaves)) {
			return l.leaves[position]
		}
		return fr.Element{}
	}
	left := l.node(level-1, 2*position)
	right := l.node(level-1, 2*position+1)
	return hashPair(left, right)
}
