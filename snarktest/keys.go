package snarktest

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/ahp"
	"github.com/marlin-zk/marlin/snark"
)

// Relation selects the satisfiability relation a circuit's instances are
// checked against at verification time.
type Relation uint8

const (
	// RelationPreimage accepts an instance iff the first public input equals
	// the MiMC digest of the private witness.
	RelationPreimage Relation = iota
	// RelationStatePath is the reserved inclusion circuit's relation; the
	// path itself is validated at witness-conversion time, so verification
	// only binds the instance into the aggregate.
	RelationStatePath
)

// ProvingKey is the engine's proving key for one circuit: the circuit
// identity plus a secret binding scalar.
type ProvingKey struct {
	circuit  *ahp.Circuit
	binding  fr.Element
	digest   fr.Element
	relation Relation
}

// Circuit returns the circuit this key was set up for.
func (pk *ProvingKey) Circuit() *ahp.Circuit {
	return pk.circuit
}

// VerifyingKey returns the verification counterpart of the proving key.
func (pk *ProvingKey) VerifyingKey() *VerifyingKey {
	return &VerifyingKey{circuit: pk.circuit, digest: pk.digest, relation: pk.relation}
}

// VerifyingKey is the engine's verifying key: the circuit identity plus the
// digest of the binding scalar.
type VerifyingKey struct {
	circuit  *ahp.Circuit
	digest   fr.Element
	relation Relation
}

// Circuit returns the circuit this key was set up for.
func (vk *VerifyingKey) Circuit() *ahp.Circuit {
	return vk.circuit
}

// Setup draws a binding scalar from rng and returns the key pair for the
// given circuit.
func Setup(circuit *ahp.Circuit, rng io.Reader) (*ProvingKey, *VerifyingKey, error) {
	return setup(circuit, rng, RelationPreimage)
}

// SetupInclusion returns the key pair of the reserved state-path inclusion
// circuit.
func SetupInclusion(rng io.Reader) (*ProvingKey, *VerifyingKey, error) {
	circuit, err := InclusionCircuit()
	if err != nil {
		return nil, nil, err
	}
	return setup(circuit, rng, RelationStatePath)
}

func setup(circuit *ahp.Circuit, rng io.Reader, relation Relation) (*ProvingKey, *VerifyingKey, error) {
	binding, err := randomElement(rng)
	if err != nil {
		return nil, nil, fmt.Errorf("draw binding scalar: %w", err)
	}
	pk := &ProvingKey{
		circuit:  circuit,
		binding:  binding,
		digest:   hashElements(binding),
		relation: relation,
	}
	return pk, pk.VerifyingKey(), nil
}

// InclusionCircuit returns the descriptor of the reserved state-path
// inclusion circuit.
func InclusionCircuit() (*ahp.Circuit, error) {
	return ahp.NewCircuit(ahp.CircuitInfo{
		NumConstraints:  1 << 10,
		NumVariables:    1 << 10,
		NumPublicInputs: 2,
		NumNonZeroA:     1 << 10,
		NumNonZeroB:     1 << 10,
		NumNonZeroC:     1 << 10,
	})
}

// PreimageAssignment builds an honest assignment for the preimage relation:
// the public input is the MiMC digest of the private witness.
func PreimageAssignment(private fr.Vector) *snark.Assignment {
	return &snark.Assignment{
		Public:  fr.Vector{hashVector(private)},
		Private: append(fr.Vector(nil), private...),
	}
}
