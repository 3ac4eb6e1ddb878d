package ahp

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// CircuitInfo holds the immutable size metadata of one R1CS circuit: the
// shape of the constraint system and the number of non-zero entries in each
// of the three constraint matrices.
type CircuitInfo struct {
	NumConstraints  uint64
	NumVariables    uint64
	NumPublicInputs uint64
	NumNonZeroA     uint64
	NumNonZeroB     uint64
	NumNonZeroC     uint64
}

// CircuitID is a content-derived key identifying a circuit. It defines the
// canonical total order over circuits in a batch; the prover and the verifier
// must iterate circuits in this order or their transcripts desynchronize.
type CircuitID [sha256.Size]byte

func (id CircuitID) String() string {
	return hex.EncodeToString(id[:8])
}

// Less reports whether id sorts before other in the canonical order.
func (id CircuitID) Less(other CircuitID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// Circuit couples a circuit's size metadata with its content-derived identity.
type Circuit struct {
	Info CircuitInfo

	id CircuitID
}

// NewCircuit computes the content-derived identity of the circuit described
// by info. The identity is the SHA-256 digest of the deterministic CBOR
// encoding of info, so independent implementations agree on it bit-for-bit.
func NewCircuit(info CircuitInfo) (*Circuit, error) {
	data, err := cborEnc.Marshal(&info)
	if err != nil {
		return nil, fmt.Errorf("serialize circuit info: %w", err)
	}
	return &Circuit{Info: info, id: sha256.Sum256(data)}, nil
}

// ID returns the circuit's content-derived identity.
func (c *Circuit) ID() CircuitID {
	return c.id
}

// BatchEntry is one circuit of a batch together with its instance count.
type BatchEntry struct {
	Circuit   *Circuit
	Instances int
}

// Batch is the set of circuits being proven together, held in canonical
// order. It is fixed at round 1 and never mutated afterwards.
type Batch []BatchEntry

// NewBatch builds a batch from the given instance counts, sorted by circuit
// identity. Every count must be at least 1.
func NewBatch(sizes map[*Circuit]int) (Batch, error) {
	if len(sizes) == 0 {
		return nil, ErrEmptyBatch
	}
	batch := make(Batch, 0, len(sizes))
	for circuit, instances := range sizes {
		if instances < 1 {
			return nil, fmt.Errorf("circuit %s: instance count must be at least 1, got %d", circuit.ID(), instances)
		}
		batch = append(batch, BatchEntry{Circuit: circuit, Instances: instances})
	}
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].Circuit.ID().Less(batch[j].Circuit.ID())
	})
	for i := 1; i < len(batch); i++ {
		if batch[i].Circuit.ID() == batch[i-1].Circuit.ID() {
			return nil, fmt.Errorf("duplicate circuit %s in batch", batch[i].Circuit.ID())
		}
	}
	return batch, nil
}

// TotalInstances returns the number of circuit instances across the batch.
func (b Batch) TotalInstances() int {
	total := 0
	for _, entry := range b {
		total += entry.Instances
	}
	return total
}
