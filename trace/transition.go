package trace

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/snark"
)

// InputType tags how a transition input is exposed to the circuit.
type InputType uint8

const (
	InputConstant InputType = iota
	InputPublic
	InputPrivate
	// InputRecord consumes a record committed in the ledger state; it is the
	// only input type requiring a membership witness.
	InputRecord
	InputExternalRecord
)

// Input describes one transition input. Record inputs additionally carry the
// serial number published for the consumed record and the commitment whose
// ledger membership must be proven.
type Input struct {
	Type         InputType
	ID           fr.Element
	SerialNumber fr.Element
	Commitment   fr.Element
}

// Transition is a single witnessed invocation of one circuit.
type Transition struct {
	ID           fr.Element
	ProgramID    string
	FunctionName string
	Inputs       []Input
}

// Locator returns the identity of the circuit this transition invokes.
func (t *Transition) Locator() snark.Locator {
	return snark.NewLocator(t.ProgramID, t.FunctionName)
}

func (t *Transition) recordInputs() []Input {
	var records []Input
	for _, in := range t.Inputs {
		if in.Type == InputRecord {
			records = append(records, in)
		}
	}
	return records
}
