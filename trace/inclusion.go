package trace

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/snark"
)

// InclusionAssignment is the membership witness of one consumed record: the
// state path of its commitment, the serial number published for it, and the
// transition it belongs to. Every assignment in a batch must carry the same
// global state root.
type InclusionAssignment struct {
	StatePath    *StatePath
	SerialNumber fr.Element
	TransitionID fr.Element
}

// GlobalStateRoot returns the root the state path was computed against.
func (a *InclusionAssignment) GlobalStateRoot() fr.Element {
	return a.StatePath.GlobalStateRoot
}

// CircuitAssignment converts the membership witness into the engine's native
// witness representation: the root and serial number are public, the path is
// private.
func (a *InclusionAssignment) CircuitAssignment() (*snark.Assignment, error) {
	if !a.StatePath.Verify() {
		return nil, fmt.Errorf("state path of serial number %s does not fold to its global state root", a.SerialNumber.String())
	}
	private := make(fr.Vector, 0, 2+len(a.StatePath.Siblings))
	private = append(private, a.StatePath.Leaf, fr.NewElement(a.StatePath.LeafIndex))
	private = append(private, a.StatePath.Siblings...)
	return &snark.Assignment{
		Public:  fr.Vector{a.StatePath.GlobalStateRoot, a.SerialNumber},
		Private: private,
	}, nil
}

type inclusionTask struct {
	transitionID fr.Element
	inputs       []Input
}

// Inclusion accumulates, per inserted transition, the record inputs whose
// ledger membership must later be witnessed. Preparation resolves the
// accumulated tasks against a ledger view.
type Inclusion struct {
	tasks []inclusionTask
}

// NewInclusion returns an empty accumulator.
func NewInclusion() *Inclusion {
	return &Inclusion{}
}

// InsertTransition records the transition's record inputs for later
// preparation. inputIDs must mirror the transition's inputs in order.
func (in *Inclusion) InsertTransition(inputIDs []Input, transition *Transition) error {
	if len(inputIDs) != len(transition.Inputs) {
		return fmt.Errorf("transition %s: %d input ids for %d inputs", transition.ID.String(), len(inputIDs), len(transition.Inputs))
	}
	var records []Input
	for _, id := range inputIDs {
		if id.Type == InputRecord {
			records = append(records, id)
		}
	}
	if len(records) > 0 {
		in.tasks = append(in.tasks, inclusionTask{transitionID: transition.ID, inputs: records})
	}
	return nil
}

// PrepareExecution resolves every accumulated task against the query and
// returns the membership witnesses together with the single global state
// root they were computed against.
func (in *Inclusion) PrepareExecution(ctx context.Context, transitions []*Transition, query Query) ([]InclusionAssignment, fr.Element, error) {
	known := make(map[fr.Element]struct{}, len(transitions))
	for _, transition := range transitions {
		known[transition.ID] = struct{}{}
	}
	for _, task := range in.tasks {
		if _, ok := known[task.transitionID]; !ok {
			return nil, fr.Element{}, fmt.Errorf("inclusion task for unknown transition %s", task.transitionID.String())
		}
	}
	return in.prepare(ctx, query)
}

// PrepareFee resolves the single fee transition's task. A fee consumes
// exactly one record, so exactly one membership witness is permitted.
func (in *Inclusion) PrepareFee(ctx context.Context, transition *Transition, query Query) ([]InclusionAssignment, fr.Element, error) {
	if len(in.tasks) != 1 || !in.tasks[0].transitionID.Equal(&transition.ID) {
		return nil, fr.Element{}, fmt.Errorf("expected exactly 1 inclusion task for the fee transition")
	}
	if len(in.tasks[0].inputs) != 1 {
		return nil, fr.Element{}, fmt.Errorf("expected the fee transition to consume exactly 1 record, got %d", len(in.tasks[0].inputs))
	}
	return in.prepare(ctx, query)
}

func (in *Inclusion) prepare(ctx context.Context, query Query) ([]InclusionAssignment, fr.Element, error) {
	root, err := query.StateRoot(ctx)
	if err != nil {
		return nil, fr.Element{}, fmt.Errorf("query state root: %w", err)
	}
	var assignments []InclusionAssignment
	for _, task := range in.tasks {
		for _, input := range task.inputs {
			path, err := query.StatePath(ctx, input.Commitment)
			if err != nil {
				return nil, fr.Element{}, fmt.Errorf("query state path of commitment %s: %w", input.Commitment.String(), err)
			}
			if !path.GlobalStateRoot.Equal(&root) {
				return nil, fr.Element{}, fmt.Errorf("state path of commitment %s was computed against a stale global state root", input.Commitment.String())
			}
			assignments = append(assignments, InclusionAssignment{
				StatePath:    path,
				SerialNumber: input.SerialNumber,
				TransitionID: task.transitionID,
			})
		}
	}
	return assignments, root, nil
}

// PrepareVerifierInputs reconstructs the inclusion circuit's public-input
// vectors from public data alone: one (root, serial number) vector per record
// input, in transition order. It mirrors the ordering of the assignments
// produced at proving time.
func PrepareVerifierInputs(root fr.Element, transitions []*Transition) []fr.Vector {
	var inputs []fr.Vector
	for _, transition := range transitions {
		for _, record := range transition.recordInputs() {
			inputs = append(inputs, fr.Vector{root, record.SerialNumber})
		}
	}
	return inputs
}
