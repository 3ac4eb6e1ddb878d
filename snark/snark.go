// Package snark defines the data model shared between the batch trace and
// the key-batch engine: circuit locators, witness assignments, and the opaque
// key/proof interfaces an engine backend implements.
package snark

import (
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/ahp"
)

// Assignment is the witness of one circuit instance: the public inputs the
// verifier sees and the private witness values only the prover knows.
type Assignment struct {
	Public  fr.Vector
	Private fr.Vector
}

// ProvingKey is an engine-owned proving key for one circuit. All assignments
// accumulated under one locator must have been produced against the same
// proving key. Keys are immutable and safe for concurrent use.
type ProvingKey interface {
	Circuit() *ahp.Circuit
}

// VerifyingKey is the verification counterpart of a ProvingKey.
type VerifyingKey interface {
	Circuit() *ahp.Circuit
}

// Proof is an opaque aggregate proof spanning every circuit instance of a
// batch.
type Proof interface {
	// Bytes returns a canonical encoding of the proof.
	Bytes() []byte
}

// ProvingTask maps one circuit to the ordered witnesses being proven for it.
type ProvingTask struct {
	Key         ProvingKey
	Assignments []*Assignment
}

// VerifyingTask maps one circuit to the ordered public-input vectors being
// verified for it, one vector per instance.
type VerifyingTask struct {
	Key    VerifyingKey
	Inputs []fr.Vector
}

// Engine is the key-batch engine: it issues one aggregate proving or
// verification call across every circuit instance of a batch, deriving its
// challenges from the batch's combined data. Verification is all-or-nothing;
// the engine never reports which sub-claim failed.
type Engine interface {
	ProveBatch(label string, tasks map[Locator]ProvingTask, rng io.Reader) (Proof, error)
	VerifyBatch(label string, tasks map[Locator]VerifyingTask, proof Proof) bool
}
