// Package snarktest provides a deterministic key-batch engine and an
// in-memory ledger for exercising the proving pipeline end to end. The
// engine derives its challenges by running the real AHP verifier rounds, so
// any transcript divergence between proving and verification (ordering,
// batch shape, absorbed bytes) fails verification exactly as it would with
// a full cryptographic backend. It is not a cryptographic proof system and
// must never leave test or benchmark code.
package snarktest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/marlin-zk/marlin/ahp"
	"github.com/marlin-zk/marlin/logger"
	"github.com/marlin-zk/marlin/snark"
)

const transcriptDomain = "marlin-snarktest-v1"

// Proof is the engine's aggregate proof: the per-instance witness digests in
// canonical order, and the combiner-weighted aggregate tag binding them to
// the derived challenges.
type Proof struct {
	witnessDigests []fr.Element
	aggregate      fr.Element
}

// Bytes returns a canonical encoding of the proof.
func (p *Proof) Bytes() []byte {
	out := make([]byte, 0, (len(p.witnessDigests)+1)*fr.Bytes)
	for i := range p.witnessDigests {
		b := p.witnessDigests[i].Bytes()
		out = append(out, b[:]...)
	}
	b := p.aggregate.Bytes()
	return append(out, b[:]...)
}

// Engine implements snark.Engine.
type Engine struct {
	log zerolog.Logger
}

// NewEngine returns a new engine.
func NewEngine() *Engine {
	return &Engine{log: logger.Logger().With().Str("backend", "snarktest").Logger()}
}

// orderedTask is one locator's task in the batch's canonical circuit order.
type orderedTask struct {
	locator     snark.Locator
	circuit     *ahp.Circuit
	digest      fr.Element
	relation    Relation
	publics     []fr.Vector
	assignments []*snark.Assignment // proving only
}

// ProveBatch runs one aggregate proving call across every circuit instance
// of the batch.
func (e *Engine) ProveBatch(label string, tasks map[snark.Locator]snark.ProvingTask, rng io.Reader) (snark.Proof, error) {
	start := time.Now()

	ordered := make([]orderedTask, 0, len(tasks))
	sizes := make(map[*ahp.Circuit]int, len(tasks))
	for locator, task := range tasks {
		pk, ok := task.Key.(*ProvingKey)
		if !ok {
			return nil, errors.New("proving key was not produced by this engine")
		}
		if len(task.Assignments) == 0 {
			return nil, fmt.Errorf("locator %s: no assignments", locator)
		}
		if _, dup := sizes[pk.circuit]; dup {
			return nil, fmt.Errorf("circuit %s is shared by multiple locators", pk.circuit.ID())
		}
		publics := make([]fr.Vector, len(task.Assignments))
		for i, assignment := range task.Assignments {
			publics[i] = assignment.Public
		}
		ordered = append(ordered, orderedTask{
			locator:     locator,
			circuit:     pk.circuit,
			digest:      pk.digest,
			relation:    pk.relation,
			publics:     publics,
			assignments: task.Assignments,
		})
		sizes[pk.circuit] = len(task.Assignments)
	}
	sortTasks(ordered)

	batch, err := ahp.NewBatch(sizes)
	if err != nil {
		return nil, fmt.Errorf("build batch: %w", err)
	}

	// per-instance witness digests; computed in parallel, absorbed in order
	digests := make([][]fr.Element, len(ordered))
	var g errgroup.Group
	for i := range ordered {
		g.Go(func() error {
			task := ordered[i]
			digests[i] = make([]fr.Element, len(task.assignments))
			for j, assignment := range task.assignments {
				digests[i][j] = hashVector(assignment.Private)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sponge := buildTranscript(label, ordered)
	flat := make([]fr.Element, 0, batch.TotalInstances())
	for i := range digests {
		for _, d := range digests[i] {
			b := d.Bytes()
			sponge.Absorb(b[:])
			flat = append(flat, d)
		}
	}

	state, err := runRounds(ordered[0].circuit.Info, batch, sponge)
	if err != nil {
		return nil, err
	}
	aggregate, err := aggregateTag(state, ordered, flat)
	if err != nil {
		return nil, err
	}

	e.log.Debug().Str("label", label).Int("instances", len(flat)).Dur("took", time.Since(start)).Msg("batch proven")
	return &Proof{witnessDigests: flat, aggregate: aggregate}, nil
}

// VerifyBatch checks one aggregate proof against the public inputs of every
// circuit instance. The result is all-or-nothing.
func (e *Engine) VerifyBatch(label string, tasks map[snark.Locator]snark.VerifyingTask, proof snark.Proof) bool {
	start := time.Now()
	p, ok := proof.(*Proof)
	if !ok {
		return false
	}

	ordered := make([]orderedTask, 0, len(tasks))
	sizes := make(map[*ahp.Circuit]int, len(tasks))
	for locator, task := range tasks {
		vk, ok := task.Key.(*VerifyingKey)
		if !ok || len(task.Inputs) == 0 {
			return false
		}
		if _, dup := sizes[vk.circuit]; dup {
			return false
		}
		ordered = append(ordered, orderedTask{
			locator:  locator,
			circuit:  vk.circuit,
			digest:   vk.digest,
			relation: vk.relation,
			publics:  task.Inputs,
		})
		sizes[vk.circuit] = len(task.Inputs)
	}
	sortTasks(ordered)

	batch, err := ahp.NewBatch(sizes)
	if err != nil {
		return false
	}
	if batch.TotalInstances() != len(p.witnessDigests) {
		return false
	}

	sponge := buildTranscript(label, ordered)
	for i := range p.witnessDigests {
		b := p.witnessDigests[i].Bytes()
		sponge.Absorb(b[:])
	}

	state, err := runRounds(ordered[0].circuit.Info, batch, sponge)
	if err != nil {
		return false
	}

	// the circuit relation: a preimage instance is accepted only if its
	// claimed witness digest equals its first public input
	idx := 0
	for _, task := range ordered {
		for _, public := range task.publics {
			if task.relation == RelationPreimage {
				if len(public) == 0 || !p.witnessDigests[idx].Equal(&public[0]) {
					return false
				}
			}
			idx++
		}
	}

	aggregate, err := aggregateTag(state, ordered, p.witnessDigests)
	if err != nil {
		return false
	}
	ok = aggregate.Equal(&p.aggregate)
	e.log.Debug().Str("label", label).Bool("ok", ok).Dur("took", time.Since(start)).Msg("batch verified")
	return ok
}

func sortTasks(ordered []orderedTask) {
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].circuit.ID().Less(ordered[j].circuit.ID())
	})
}

// buildTranscript seeds the sponge with everything both sides know publicly:
// the label, and per circuit in canonical order its identity, key digest,
// instance count, and public inputs.
func buildTranscript(label string, ordered []orderedTask) ahp.Sponge {
	sponge := ahp.NewSponge([]byte(transcriptDomain))
	sponge.Absorb([]byte(label))
	for _, task := range ordered {
		id := task.circuit.ID()
		sponge.Absorb(id[:])
		d := task.digest.Bytes()
		sponge.Absorb(d[:])
		var count [8]byte
		binary.BigEndian.PutUint64(count[:], uint64(len(task.publics)))
		sponge.Absorb(count[:])
		for _, public := range task.publics {
			for i := range public {
				b := public[i].Bytes()
				sponge.Absorb(b[:])
			}
		}
	}
	return sponge
}

// runRounds drives the verifier state machine to completion against the
// sponge. The canonically-first circuit's descriptor fixes the domains.
func runRounds(info ahp.CircuitInfo, batch ahp.Batch, sponge ahp.Sponge) (*ahp.State, error) {
	_, state, err := ahp.FirstRound(info, batch, sponge)
	if err != nil {
		return nil, fmt.Errorf("first round: %w", err)
	}
	if _, err := state.SecondRound(sponge); err != nil {
		return nil, fmt.Errorf("second round: %w", err)
	}
	if _, err := state.ThirdRound(sponge); err != nil {
		return nil, fmt.Errorf("third round: %w", err)
	}
	if err := state.FourthRound(sponge); err != nil {
		return nil, fmt.Errorf("fourth round: %w", err)
	}
	return state, nil
}

// aggregateTag folds every instance into one scalar: per-instance tags keyed
// by the circuit's key digest and gamma, combined with the batch combiners,
// then bound to the query set.
func aggregateTag(state *ahp.State, ordered []orderedTask, witnessDigests []fr.Element) (fr.Element, error) {
	gamma, ok := state.Gamma()
	if !ok {
		return fr.Element{}, ahp.ErrRoundOutOfOrder
	}
	combiners := state.FirstMessage().Combiners

	var aggregate fr.Element
	idx := 0
	for _, task := range ordered {
		c, ok := combiners[task.circuit.ID()]
		if !ok {
			return fr.Element{}, fmt.Errorf("no combiners for circuit %s", task.circuit.ID())
		}
		var circuitSum fr.Element
		for j := range task.publics {
			tag := hashElements(task.digest, witnessDigests[idx], gamma)
			tag.Mul(&tag, &c.InstanceCombiners[j])
			circuitSum.Add(&circuitSum, &tag)
			idx++
		}
		circuitSum.Mul(&circuitSum, &c.CircuitCombiner)
		aggregate.Add(&aggregate, &circuitSum)
	}

	queries, err := state.QuerySet()
	if err != nil {
		return fr.Element{}, err
	}
	points := make([]fr.Element, 0, len(queries)+1)
	for _, q := range queries {
		points = append(points, q.Point)
	}
	points = append(points, aggregate)
	return hashElements(points...), nil
}
