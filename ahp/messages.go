package ahp

import "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"

// BatchCombiners holds the random scalars combining one circuit's instances
// into the aggregate claim. The first instance combiner is always one; the
// circuit combiner is one for the canonically-first circuit of the batch and
// a transcript-derived scalar for every other circuit.
type BatchCombiners struct {
	CircuitCombiner   fr.Element
	InstanceCombiners []fr.Element
}

// FirstMessage is the verifier's first-round message: the sumcheck evaluation
// point, the linear-combination weights between the three constraint
// matrices, and the batching combiners.
type FirstMessage struct {
	Alpha     fr.Element
	EtaB      fr.Element
	EtaC      fr.Element
	Combiners map[CircuitID]*BatchCombiners
}

// SecondMessage carries the second-round challenge.
type SecondMessage struct {
	Beta fr.Element
}

// ThirdMessage carries the weights combining the B- and C-matrix sumcheck
// relations into one.
type ThirdMessage struct {
	RB fr.Element
	RC fr.Element
}
