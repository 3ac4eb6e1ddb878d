// Package trace accumulates the witnesses of one logical proof, that is, one
// transaction's set of circuit invocations, augments them with ledger
// membership witnesses, and issues exactly one aggregate proving or
// verification call through the key-batch engine.
package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/logger"
	"github.com/marlin-zk/marlin/snark"
	"github.com/rs/zerolog"
)

var (
	// FeeLocator identifies the canonical fee circuit.
	FeeLocator = snark.NewLocator("credits", "fee")
	// InclusionLocator identifies the reserved state-path inclusion circuit
	// synthesized into a batch whenever membership witnesses exist.
	InclusionLocator = snark.NewLocator("inclusion", "state_path")
)

var (
	errAlreadyPrepared        = errors.New("inclusion assignments and global state root have already been set")
	errNotPrepared            = errors.New("inclusion assignments and global state root have not been set")
	errZeroStateRoot          = errors.New("global state root must not be zero")
	errMissingProof           = errors.New("expected the execution or fee to contain a proof")
	errProofVerificationError = errors.New("failed to verify batch proof")
)

type provingTask struct {
	key         snark.ProvingKey
	assignments []*snark.Assignment
}

// Trace collects the witnesses of one proof session. A Trace belongs to a
// single goroutine; independent traces are fully independent and may run in
// parallel.
type Trace struct {
	// the ordered transitions; the order is the one presented to the proof
	// and later to verification
	transitions []*Transition
	// locator → (proving key, ordered assignments); the key is inserted on
	// first use of the locator and shared by every later assignment under it
	transitionTasks map[snark.Locator]*provingTask
	inclusionTasks  *Inclusion

	inclusionAssignments cell[[]InclusionAssignment]
	globalStateRoot      cell[fr.Element]

	engine       snark.Engine
	inclusionKey snark.ProvingKey
	log          zerolog.Logger
}

// Option configures a Trace.
type Option func(*Trace)

// WithLogger overrides the trace's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Trace) { t.log = l }
}

// New initializes an empty trace bound to the given engine. inclusionKey is
// the proving key of the reserved state-path inclusion circuit.
func New(engine snark.Engine, inclusionKey snark.ProvingKey, opts ...Option) *Trace {
	t := &Trace{
		transitionTasks: make(map[snark.Locator]*provingTask),
		inclusionTasks:  NewInclusion(),
		engine:          engine,
		inclusionKey:    inclusionKey,
		log:             logger.Logger().With().Str("component", "trace").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InsertTransition inserts the transition and its witness into the trace.
// Insertion is rejected once Prepare has run: the membership witnesses are
// fixed at that point and a later transition could not be covered by them.
func (t *Trace) InsertTransition(inputIDs []Input, transition *Transition, key snark.ProvingKey, assignment *snark.Assignment) error {
	if _, set := t.inclusionAssignments.Get(); set {
		return fmt.Errorf("insert transition: %w", errAlreadyPrepared)
	}
	if _, set := t.globalStateRoot.Get(); set {
		return fmt.Errorf("insert transition: %w", errAlreadyPrepared)
	}

	if err := t.inclusionTasks.InsertTransition(inputIDs, transition); err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	locator := transition.Locator()
	task, ok := t.transitionTasks[locator]
	if !ok {
		task = &provingTask{key: key}
		t.transitionTasks[locator] = task
	}
	task.assignments = append(task.assignments, assignment)
	t.transitions = append(t.transitions, transition)
	return nil
}

// IsFee reports whether the trace is a fee trace: exactly one transition,
// targeting the canonical fee circuit.
func (t *Trace) IsFee() bool {
	if len(t.transitions) != 1 {
		return false
	}
	return t.transitions[0].Locator() == FeeLocator
}

// Prepare resolves the membership witnesses against the given ledger view
// and fixes them, together with the global state root, into the trace's
// write-once cells. It blocks until the query completes; see PrepareContext
// for the suspending variant. A second call fails regardless of the query.
func (t *Trace) Prepare(query Query) error {
	return t.PrepareContext(context.Background(), query)
}

// PrepareContext is Prepare with cancellation: identical results, but the
// calling context may cancel while the ledger query performs I/O.
func (t *Trace) PrepareContext(ctx context.Context, query Query) error {
	if _, set := t.inclusionAssignments.Get(); set {
		return fmt.Errorf("prepare: %w", errAlreadyPrepared)
	}
	if _, set := t.globalStateRoot.Get(); set {
		return fmt.Errorf("prepare: %w", errAlreadyPrepared)
	}

	var (
		assignments []InclusionAssignment
		root        fr.Element
		err         error
	)
	if t.IsFee() {
		assignments, root, err = t.inclusionTasks.PrepareFee(ctx, t.transitions[0], query)
	} else {
		assignments, root, err = t.inclusionTasks.PrepareExecution(ctx, t.transitions, query)
	}
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	if err := t.inclusionAssignments.Set(assignments); err != nil {
		return fmt.Errorf("set inclusion assignments: %w", err)
	}
	if err := t.globalStateRoot.Set(root); err != nil {
		return fmt.Errorf("set global state root: %w", err)
	}
	t.log.Debug().Int("assignments", len(assignments)).Msg("trace prepared")
	return nil
}

// ProveExecution proves the current trace as an execution and returns it
// with the aggregate proof. The trace must not be a fee trace and must have
// been prepared.
func (t *Trace) ProveExecution(label string, rng io.Reader) (*Execution, error) {
	if t.IsFee() {
		return nil, errors.New("the trace cannot prove execution for fee")
	}
	assignments, set := t.inclusionAssignments.Get()
	if !set {
		return nil, fmt.Errorf("prove execution: %w", errNotPrepared)
	}
	root, set := t.globalStateRoot.Get()
	if !set {
		return nil, fmt.Errorf("prove execution: %w", errNotPrepared)
	}
	root, proof, err := t.proveBatch(label, assignments, root, rng)
	if err != nil {
		return nil, fmt.Errorf("prove execution: %w", err)
	}
	return &Execution{Transitions: t.transitions, GlobalStateRoot: root, Proof: proof}, nil
}

// ProveFee proves the current trace as a fee and returns it with the
// aggregate proof. The trace must be a fee trace and must have been
// prepared.
func (t *Trace) ProveFee(rng io.Reader) (*Fee, error) {
	if !t.IsFee() {
		return nil, errors.New("the trace cannot prove fee for execution")
	}
	assignments, set := t.inclusionAssignments.Get()
	if !set {
		return nil, fmt.Errorf("prove fee: %w", errNotPrepared)
	}
	if len(assignments) != 1 {
		return nil, fmt.Errorf("expected 1 inclusion assignment for proving the fee, got %d", len(assignments))
	}
	root, set := t.globalStateRoot.Get()
	if !set {
		return nil, fmt.Errorf("prove fee: %w", errNotPrepared)
	}
	root, proof, err := t.proveBatch(FeeLocator.String(), assignments, root, rng)
	if err != nil {
		return nil, fmt.Errorf("prove fee: %w", err)
	}
	return &Fee{Transition: t.transitions[0], GlobalStateRoot: root, Proof: proof}, nil
}

// proveBatch issues the single aggregate proving call spanning every circuit
// instance of the trace, including the synthetic inclusion task when
// membership witnesses exist.
func (t *Trace) proveBatch(label string, assignments []InclusionAssignment, root fr.Element, rng io.Reader) (fr.Element, snark.Proof, error) {
	// Even when there are no membership witnesses, a real global state root
	// must be supplied: a zero root would leak whether any membership checks
	// were required.
	if root.IsZero() {
		return fr.Element{}, nil, errZeroStateRoot
	}

	tasks := make(map[snark.Locator]snark.ProvingTask, len(t.transitionTasks)+1)
	for locator, task := range t.transitionTasks {
		tasks[locator] = snark.ProvingTask{Key: task.key, Assignments: task.assignments}
	}

	inclusions := make([]*snark.Assignment, 0, len(assignments))
	for i := range assignments {
		if got := assignments[i].GlobalStateRoot(); !got.Equal(&root) {
			return fr.Element{}, nil, fmt.Errorf("inclusion assignment of transition %s carries global state root %s, expected %s",
				assignments[i].TransitionID.String(), got.String(), root.String())
		}
		converted, err := assignments[i].CircuitAssignment()
		if err != nil {
			return fr.Element{}, nil, err
		}
		inclusions = append(inclusions, converted)
	}
	if len(inclusions) > 0 {
		tasks[InclusionLocator] = snark.ProvingTask{Key: t.inclusionKey, Assignments: inclusions}
	}

	start := time.Now()
	proof, err := t.engine.ProveBatch(label, tasks, rng)
	if err != nil {
		return fr.Element{}, nil, fmt.Errorf("prove batch: %w", err)
	}
	t.log.Debug().Str("label", label).Dur("took", time.Since(start)).Msg("batch proven")
	return root, proof, nil
}

// VerifyExecutionProof checks the aggregate proof of an execution against
// the given verifier inputs. It does not check that the global state root
// exists in the ledger; that belongs to consensus.
func VerifyExecutionProof(engine snark.Engine, inclusionKey snark.VerifyingKey, label string, verifierInputs map[snark.Locator]snark.VerifyingTask, execution *Execution) error {
	if execution.Proof == nil {
		return fmt.Errorf("execution: %w", errMissingProof)
	}
	if err := verifyBatch(engine, inclusionKey, label, verifierInputs, execution.GlobalStateRoot, execution.Transitions, execution.Proof); err != nil {
		return fmt.Errorf("execution is invalid: %w", err)
	}
	return nil
}

// VerifyFeeProof checks the aggregate proof of a fee. The fee's shape is
// validated before any cryptography runs: the root must be non-zero and the
// transition must consume exactly one record.
func VerifyFeeProof(engine snark.Engine, inclusionKey snark.VerifyingKey, feeInputs snark.VerifyingTask, fee *Fee) error {
	if fee.GlobalStateRoot.IsZero() {
		return fmt.Errorf("fee: %w", errZeroStateRoot)
	}
	if fee.Proof == nil {
		return fmt.Errorf("fee: %w", errMissingProof)
	}
	if records := fee.Transition.recordInputs(); len(records) != 1 {
		return fmt.Errorf("expected the fee transition to contain exactly 1 record input, got %d", len(records))
	}
	verifierInputs := map[snark.Locator]snark.VerifyingTask{FeeLocator: feeInputs}
	if err := verifyBatch(engine, inclusionKey, FeeLocator.String(), verifierInputs, fee.GlobalStateRoot, []*Transition{fee.Transition}, fee.Proof); err != nil {
		return fmt.Errorf("fee is invalid: %w", err)
	}
	return nil
}

// verifyBatch merges the inclusion verifier inputs and issues the single
// all-or-nothing verification call.
func verifyBatch(engine snark.Engine, inclusionKey snark.VerifyingKey, label string, verifierInputs map[snark.Locator]snark.VerifyingTask, root fr.Element, transitions []*Transition, proof snark.Proof) error {
	tasks := make(map[snark.Locator]snark.VerifyingTask, len(verifierInputs)+1)
	for locator, task := range verifierInputs {
		tasks[locator] = task
	}
	if inclusionInputs := PrepareVerifierInputs(root, transitions); len(inclusionInputs) > 0 {
		tasks[InclusionLocator] = snark.VerifyingTask{Key: inclusionKey, Inputs: inclusionInputs}
	}
	if !engine.VerifyBatch(label, tasks, proof) {
		return errProofVerificationError
	}
	return nil
}
