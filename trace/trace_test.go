package trace_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/stretchr/testify/require"

	"github.com/marlin-zk/marlin/ahp"
	"github.com/marlin-zk/marlin/snark"
	"github.com/marlin-zk/marlin/snarktest"
	"github.com/marlin-zk/marlin/trace"
)

type fixture struct {
	engine *snarktest.Engine
	ledger *snarktest.MemoryLedger
	rng    *rand.Rand

	appPK *snarktest.ProvingKey
	appVK *snarktest.VerifyingKey
	feePK *snarktest.ProvingKey
	feeVK *snarktest.VerifyingKey
	incPK *snarktest.ProvingKey
	incVK *snarktest.VerifyingKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rng := rand.New(rand.NewSource(42))

	appCircuit, err := ahp.NewCircuit(ahp.CircuitInfo{
		NumConstraints:  1 << 8,
		NumVariables:    1 << 8,
		NumPublicInputs: 4,
		NumNonZeroA:     1 << 9,
		NumNonZeroB:     1 << 9,
		NumNonZeroC:     1 << 8,
	})
	require.NoError(t, err)
	feeCircuit, err := ahp.NewCircuit(ahp.CircuitInfo{
		NumConstraints:  1 << 7,
		NumVariables:    1 << 7,
		NumPublicInputs: 2,
		NumNonZeroA:     1 << 7,
		NumNonZeroB:     1 << 7,
		NumNonZeroC:     1 << 7,
	})
	require.NoError(t, err)

	f := &fixture{
		engine: snarktest.NewEngine(),
		ledger: snarktest.NewMemoryLedger(8),
		rng:    rng,
	}
	f.appPK, f.appVK, err = snarktest.Setup(appCircuit, rng)
	require.NoError(t, err)
	f.feePK, f.feeVK, err = snarktest.Setup(feeCircuit, rng)
	require.NoError(t, err)
	f.incPK, f.incVK, err = snarktest.SetupInclusion(rng)
	require.NoError(t, err)
	return f
}

// recordTransition builds a transition consuming one ledger record, with the
// commitment already added to the fixture's ledger.
func (f *fixture) recordTransition(t *testing.T, program, function string, seq uint64) *trace.Transition {
	t.Helper()
	commitment := fr.NewElement(1_000_000 + seq)
	require.NoError(t, f.ledger.Add(commitment))
	return &trace.Transition{
		ID:           fr.NewElement(seq),
		ProgramID:    program,
		FunctionName: function,
		Inputs: []trace.Input{
			{Type: trace.InputPublic, ID: fr.NewElement(10*seq + 1)},
			{Type: trace.InputRecord, ID: fr.NewElement(10*seq + 2), SerialNumber: fr.NewElement(10*seq + 3), Commitment: commitment},
		},
	}
}

// plainTransition builds a transition with no record inputs.
func plainTransition(program, function string, seq uint64) *trace.Transition {
	return &trace.Transition{
		ID:           fr.NewElement(seq),
		ProgramID:    program,
		FunctionName: function,
		Inputs: []trace.Input{
			{Type: trace.InputPublic, ID: fr.NewElement(10*seq + 1)},
			{Type: trace.InputPrivate, ID: fr.NewElement(10*seq + 2)},
		},
	}
}

func witness(seq uint64) *snark.Assignment {
	return snarktest.PreimageAssignment(fr.Vector{fr.NewElement(seq), fr.NewElement(seq + 1)})
}

func TestIsFee(t *testing.T) {
	f := newFixture(t)

	tr := trace.New(f.engine, f.incPK)
	require.False(t, tr.IsFee())

	fee := f.recordTransition(t, "credits", "fee", 1)
	require.NoError(t, tr.InsertTransition(fee.Inputs, fee, f.feePK, witness(1)))
	require.True(t, tr.IsFee())

	other := plainTransition("token", "transfer", 2)
	require.NoError(t, tr.InsertTransition(other.Inputs, other, f.appPK, witness(2)))
	require.False(t, tr.IsFee())

	tr2 := trace.New(f.engine, f.incPK)
	nonFee := plainTransition("token", "transfer", 3)
	require.NoError(t, tr2.InsertTransition(nonFee.Inputs, nonFee, f.appPK, witness(3)))
	require.False(t, tr2.IsFee())

	// the locator must match exactly, program and function both
	tr3 := trace.New(f.engine, f.incPK)
	almost := plainTransition("credits", "transfer", 4)
	require.NoError(t, tr3.InsertTransition(almost.Inputs, almost, f.appPK, witness(4)))
	require.False(t, tr3.IsFee())
}

func TestInsertTransitionInputMismatch(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := plainTransition("token", "transfer", 1)
	err := tr.InsertTransition(transition.Inputs[:1], transition, f.appPK, witness(1))
	require.Error(t, err)
}

func TestPrepareIsOneShot(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := plainTransition("token", "transfer", 1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, witness(1)))
	require.NoError(t, tr.Prepare(f.ledger))

	// a second preparation and any later insertion are both rejected
	require.Error(t, tr.Prepare(f.ledger))
	late := plainTransition("token", "transfer", 2)
	require.Error(t, tr.InsertTransition(late.Inputs, late, f.appPK, witness(2)))
}

func TestPrepareContextCancellation(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := f.recordTransition(t, "token", "transfer", 1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, witness(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.PrepareContext(ctx, f.ledger)
	require.ErrorIs(t, err, context.Canceled)

	// cancellation does not burn the one-shot cells
	require.NoError(t, tr.Prepare(f.ledger))
}

func TestProveRequiresPrepare(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := plainTransition("token", "transfer", 1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, witness(1)))

	_, err := tr.ProveExecution("label", f.rng)
	require.Error(t, err)
}

func TestProveShapeMismatch(t *testing.T) {
	f := newFixture(t)

	feeTrace := trace.New(f.engine, f.incPK)
	fee := f.recordTransition(t, "credits", "fee", 1)
	require.NoError(t, feeTrace.InsertTransition(fee.Inputs, fee, f.feePK, witness(1)))
	require.NoError(t, feeTrace.Prepare(f.ledger))
	_, err := feeTrace.ProveExecution("label", f.rng)
	require.Error(t, err)

	execTrace := trace.New(f.engine, f.incPK)
	transition := plainTransition("token", "transfer", 2)
	require.NoError(t, execTrace.InsertTransition(transition.Inputs, transition, f.appPK, witness(2)))
	require.NoError(t, execTrace.Prepare(f.ledger))
	_, err = execTrace.ProveFee(f.rng)
	require.Error(t, err)
}

// stubQuery returns canned answers; it lets the tests force roots the real
// ledger never produces.
type stubQuery struct {
	root  fr.Element
	paths map[fr.Element]*trace.StatePath
}

func (q *stubQuery) StateRoot(context.Context) (fr.Element, error) {
	return q.root, nil
}

func (q *stubQuery) StatePath(_ context.Context, commitment fr.Element) (*trace.StatePath, error) {
	path, ok := q.paths[commitment]
	if !ok {
		return nil, errors.New("unknown commitment")
	}
	return path, nil
}

func TestProveRejectsZeroStateRoot(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	// no record inputs, so preparation succeeds against a zero-root view;
	// proving must still refuse the zero root
	transition := plainTransition("token", "transfer", 1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, witness(1)))
	require.NoError(t, tr.Prepare(&stubQuery{}))

	_, err := tr.ProveExecution("label", f.rng)
	require.ErrorContains(t, err, "zero")
}

func TestPrepareRejectsStaleStatePath(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := f.recordTransition(t, "token", "transfer", 1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, witness(1)))

	commitment := transition.Inputs[1].Commitment
	stale, err := f.ledger.StatePath(context.Background(), commitment)
	require.NoError(t, err)
	query := &stubQuery{
		root:  fr.NewElement(999),
		paths: map[fr.Element]*trace.StatePath{commitment: stale},
	}
	err = tr.Prepare(query)
	require.ErrorContains(t, err, "stale")
}

func TestProveRejectsInconsistentWitnessRoot(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := f.recordTransition(t, "token", "transfer", 1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, witness(1)))

	// the trace aliases the path the query hands out; corrupting it after
	// preparation must be caught by the root consistency check, before the
	// engine ever runs
	commitment := transition.Inputs[1].Commitment
	path, err := f.ledger.StatePath(context.Background(), commitment)
	require.NoError(t, err)
	query := &stubQuery{
		root:  path.GlobalStateRoot,
		paths: map[fr.Element]*trace.StatePath{commitment: path},
	}
	require.NoError(t, tr.Prepare(query))

	path.GlobalStateRoot = fr.NewElement(424242)
	_, err = tr.ProveExecution("label", f.rng)
	require.ErrorContains(t, err, "carries global state root")
}

func TestExecutionRoundTrip(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	// two transitions of the same circuit, one consuming a record
	t1 := f.recordTransition(t, "token", "transfer", 1)
	t2 := plainTransition("token", "transfer", 2)
	w1, w2 := witness(1), witness(2)
	require.NoError(t, tr.InsertTransition(t1.Inputs, t1, f.appPK, w1))
	require.NoError(t, tr.InsertTransition(t2.Inputs, t2, f.appPK, w2))
	require.NoError(t, tr.Prepare(f.ledger))

	execution, err := tr.ProveExecution("token-execution", f.rng)
	require.NoError(t, err)
	require.NotNil(t, execution.Proof)
	require.False(t, execution.GlobalStateRoot.IsZero())
	require.Len(t, execution.Transitions, 2)

	verifierInputs := map[snark.Locator]snark.VerifyingTask{
		t1.Locator(): {Key: f.appVK, Inputs: []fr.Vector{w1.Public, w2.Public}},
	}
	require.NoError(t, trace.VerifyExecutionProof(f.engine, f.incVK, "token-execution", verifierInputs, execution))
}

func TestExecutionWithoutRecordsRoundTrip(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := plainTransition("token", "mint", 1)
	w := witness(1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, w))
	require.NoError(t, tr.Prepare(f.ledger))

	execution, err := tr.ProveExecution("token-mint", f.rng)
	require.NoError(t, err)

	verifierInputs := map[snark.Locator]snark.VerifyingTask{
		transition.Locator(): {Key: f.appVK, Inputs: []fr.Vector{w.Public}},
	}
	require.NoError(t, trace.VerifyExecutionProof(f.engine, f.incVK, "token-mint", verifierInputs, execution))
}

func TestVerifyExecutionRejectsTampering(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	transition := f.recordTransition(t, "token", "transfer", 1)
	w := witness(1)
	require.NoError(t, tr.InsertTransition(transition.Inputs, transition, f.appPK, w))
	require.NoError(t, tr.Prepare(f.ledger))

	execution, err := tr.ProveExecution("token-execution", f.rng)
	require.NoError(t, err)

	honest := map[snark.Locator]snark.VerifyingTask{
		transition.Locator(): {Key: f.appVK, Inputs: []fr.Vector{w.Public}},
	}
	require.NoError(t, trace.VerifyExecutionProof(f.engine, f.incVK, "token-execution", honest, execution))

	t.Run("mutated public input", func(t *testing.T) {
		var forged fr.Element
		forged.Double(&w.Public[0])
		tampered := map[snark.Locator]snark.VerifyingTask{
			transition.Locator(): {Key: f.appVK, Inputs: []fr.Vector{{forged}}},
		}
		err := trace.VerifyExecutionProof(f.engine, f.incVK, "token-execution", tampered, execution)
		require.Error(t, err)
	})

	t.Run("wrong label", func(t *testing.T) {
		err := trace.VerifyExecutionProof(f.engine, f.incVK, "another-label", honest, execution)
		require.Error(t, err)
	})

	t.Run("mutated state root", func(t *testing.T) {
		forged := *execution
		forged.GlobalStateRoot = fr.NewElement(12345)
		err := trace.VerifyExecutionProof(f.engine, f.incVK, "token-execution", honest, &forged)
		require.Error(t, err)
	})

	t.Run("missing proof", func(t *testing.T) {
		forged := *execution
		forged.Proof = nil
		err := trace.VerifyExecutionProof(f.engine, f.incVK, "token-execution", honest, &forged)
		require.Error(t, err)
	})

	t.Run("mutated serial number", func(t *testing.T) {
		forgedTransition := *transition
		forgedTransition.Inputs = append([]trace.Input(nil), transition.Inputs...)
		forgedTransition.Inputs[1].SerialNumber = fr.NewElement(777)
		forged := *execution
		forged.Transitions = []*trace.Transition{&forgedTransition}
		err := trace.VerifyExecutionProof(f.engine, f.incVK, "token-execution", honest, &forged)
		require.Error(t, err)
	})
}

func TestFeeRoundTrip(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	fee := f.recordTransition(t, "credits", "fee", 1)
	w := witness(1)
	require.NoError(t, tr.InsertTransition(fee.Inputs, fee, f.feePK, w))
	require.True(t, tr.IsFee())
	require.NoError(t, tr.Prepare(f.ledger))

	proven, err := tr.ProveFee(f.rng)
	require.NoError(t, err)
	require.NotNil(t, proven.Proof)
	require.False(t, proven.GlobalStateRoot.IsZero())

	feeInputs := snark.VerifyingTask{Key: f.feeVK, Inputs: []fr.Vector{w.Public}}
	require.NoError(t, trace.VerifyFeeProof(f.engine, f.incVK, feeInputs, proven))

	t.Run("mutated state root", func(t *testing.T) {
		forged := *proven
		forged.GlobalStateRoot = fr.NewElement(12345)
		require.Error(t, trace.VerifyFeeProof(f.engine, f.incVK, feeInputs, &forged))
	})

	t.Run("zero state root", func(t *testing.T) {
		forged := *proven
		forged.GlobalStateRoot = fr.Element{}
		require.Error(t, trace.VerifyFeeProof(f.engine, f.incVK, feeInputs, &forged))
	})

	t.Run("missing proof", func(t *testing.T) {
		forged := *proven
		forged.Proof = nil
		require.Error(t, trace.VerifyFeeProof(f.engine, f.incVK, feeInputs, &forged))
	})

	t.Run("wrong record count", func(t *testing.T) {
		forgedTransition := *fee
		forgedTransition.Inputs = []trace.Input{fee.Inputs[0]}
		forged := *proven
		forged.Transition = &forgedTransition
		require.Error(t, trace.VerifyFeeProof(f.engine, f.incVK, feeInputs, &forged))
	})
}

func TestFeeRequiresExactlyOneRecord(t *testing.T) {
	f := newFixture(t)
	tr := trace.New(f.engine, f.incPK)

	// a fee transition consuming no record cannot be prepared
	fee := plainTransition("credits", "fee", 1)
	require.NoError(t, tr.InsertTransition(fee.Inputs, fee, f.feePK, witness(1)))
	require.Error(t, tr.Prepare(f.ledger))
}

func TestIndependentTracesInParallel(t *testing.T) {
	f := newFixture(t)

	// commitments are registered up front; the ledger is read-only below
	transitions := make([]*trace.Transition, 4)
	for i := range transitions {
		transitions[i] = f.recordTransition(t, "token", "transfer", uint64(i+1))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(transitions))
	for i, transition := range transitions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := trace.New(f.engine, f.incPK)
			w := witness(uint64(i + 1))
			if err := tr.InsertTransition(transition.Inputs, transition, f.appPK, w); err != nil {
				errs[i] = err
				return
			}
			if err := tr.Prepare(f.ledger); err != nil {
				errs[i] = err
				return
			}
			execution, err := tr.ProveExecution("parallel", rand.New(rand.NewSource(int64(i))))
			if err != nil {
				errs[i] = err
				return
			}
			verifierInputs := map[snark.Locator]snark.VerifyingTask{
				transition.Locator(): {Key: f.appVK, Inputs: []fr.Vector{w.Public}},
			}
			errs[i] = trace.VerifyExecutionProof(f.engine, f.incVK, "parallel", verifierInputs, execution)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "trace %d", i)
	}
}
