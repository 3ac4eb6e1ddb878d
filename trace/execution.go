package trace

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/snark"
)

// Execution is the caller-facing result of proving a non-fee trace: the
// ordered transitions, the global state root their membership witnesses were
// computed against, and the aggregate proof.
type Execution struct {
	Transitions     []*Transition
	GlobalStateRoot fr.Element
	Proof           snark.Proof
}

// Fee is the caller-facing result of proving a fee trace.
type Fee struct {
	Transition      *Transition
	GlobalStateRoot fr.Element
	Proof           snark.Proof
}
