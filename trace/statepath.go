package trace

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/mimc"
)

// StatePath is a Merkle-style membership witness tying a leaf commitment to
// the global state root it was computed against. Siblings are ordered from
// the leaf up.
type StatePath struct {
	GlobalStateRoot fr.Element
	Leaf            fr.Element
	LeafIndex       uint64
	Siblings        []fr.Element
}

// Verify folds the path with MiMC and reports whether it lands on the
// embedded global state root.
func (p *StatePath) Verify() bool {
	current := p.Leaf
	index := p.LeafIndex
	for _, sibling := range p.Siblings {
		if index&1 == 1 {
			current = hashPair(sibling, current)
		} else {
			current = hashPair(current, sibling)
		}
		index >>= 1
	}
	return current.Equal(&p.GlobalStateRoot)
}

func hashPair(left, right fr.Element) fr.Element {
	h := mimc.NewMiMC()
	l := left.Bytes()
	r := right.Bytes()
	h.Write(l[:])
	h.Write(r[:])
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
