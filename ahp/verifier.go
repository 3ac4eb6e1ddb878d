// Package ahp implements the verifier side of a Marlin-style algebraic
// holographic proof for R1CS: a four-round Fiat-Shamir challenge-generation
// state machine over a batch of circuit instances, terminated by the
// derivation of the query set.
//
// The prover executes the same rounds against an identically-seeded sponge;
// any divergence in absorbed bytes, circuit ordering, or extraction counts
// silently produces proofs that do not verify. Determinism of this package is
// therefore soundness-critical.
package ahp

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/marlin-zk/marlin/debug"
	"github.com/marlin-zk/marlin/logger"
)

// FirstRound checks the circuit descriptor, constructs the five evaluation
// domains, and squeezes the first-round challenges: alpha, etaB, etaC, then
// per circuit in canonical order the instance combiners (one per instance
// beyond the first) and, for every circuit after the first, the circuit
// combiner.
func FirstRound(info CircuitInfo, batch Batch, sponge Sponge) (*FirstMessage, *State, error) {
	if len(batch) == 0 {
		return nil, nil, ErrEmptyBatch
	}
	if info.NumConstraints != info.NumVariables {
		return nil, nil, fmt.Errorf("%w: %d constraints, %d variables",
			ErrNonSquareMatrix, info.NumConstraints, info.NumVariables)
	}

	constraintDomain, err := NewDomain(info.NumConstraints)
	if err != nil {
		return nil, nil, fmt.Errorf("constraint domain: %w", err)
	}
	nonZeroADomain, err := NewDomain(info.NumNonZeroA)
	if err != nil {
		return nil, nil, fmt.Errorf("non-zero-a domain: %w", err)
	}
	nonZeroBDomain, err := NewDomain(info.NumNonZeroB)
	if err != nil {
		return nil, nil, fmt.Errorf("non-zero-b domain: %w", err)
	}
	nonZeroCDomain, err := NewDomain(info.NumNonZeroC)
	if err != nil {
		return nil, nil, fmt.Errorf("non-zero-c domain: %w", err)
	}
	inputDomain, err := NewDomain(info.NumPublicInputs)
	if err != nil {
		return nil, nil, fmt.Errorf("input domain: %w", err)
	}

	elems := sponge.SqueezeFieldElements(3)
	alpha, etaB, etaC := elems[0], elems[1], elems[2]

	combiners := make(map[CircuitID]*BatchCombiners, len(batch))
	for i, entry := range batch {
		c := &BatchCombiners{
			CircuitCombiner:   fr.One(),
			InstanceCombiners: make([]fr.Element, 1, entry.Instances),
		}
		c.InstanceCombiners[0].SetOne()

		// the canonically-first circuit's combiner is fixed to one and costs
		// no transcript extraction
		needed := entry.Instances - 1
		if i > 0 {
			needed++
		}
		elems := sponge.SqueezeFieldElements(needed)
		c.InstanceCombiners = append(c.InstanceCombiners, elems[:entry.Instances-1]...)
		if i > 0 {
			c.CircuitCombiner = elems[len(elems)-1]
		}
		combiners[entry.Circuit.ID()] = c
	}

	if v := constraintDomain.EvaluateVanishingPolynomial(alpha); v.IsZero() {
		log := logger.Logger()
		log.Error().Str("challenge", "alpha").Str("stack", debug.Stack()).Msg("degenerate verifier challenge")
		return nil, nil, fmt.Errorf("alpha: %w", ErrChallengeDegenerate)
	}

	message := &FirstMessage{Alpha: alpha, EtaB: etaB, EtaC: etaC, Combiners: combiners}
	state := &State{
		batch:            batch,
		constraintDomain: constraintDomain,
		nonZeroADomain:   nonZeroADomain,
		nonZeroBDomain:   nonZeroBDomain,
		nonZeroCDomain:   nonZeroCDomain,
		inputDomain:      inputDomain,
		firstMessage:     message,
	}
	return message, state, nil
}

// SecondRound squeezes beta. It requires round 1 to be complete and runs at
// most once.
func (s *State) SecondRound(sponge Sponge) (*SecondMessage, error) {
	if s.firstMessage == nil || s.secondMessage != nil {
		return nil, fmt.Errorf("second round: %w", ErrRoundOutOfOrder)
	}
	beta := sponge.SqueezeFieldElements(1)[0]
	if v := s.constraintDomain.EvaluateVanishingPolynomial(beta); v.IsZero() {
		log := logger.Logger()
		log.Error().Str("challenge", "beta").Str("stack", debug.Stack()).Msg("degenerate verifier challenge")
		return nil, fmt.Errorf("beta: %w", ErrChallengeDegenerate)
	}
	message := &SecondMessage{Beta: beta}
	s.secondMessage = message
	return message, nil
}

// ThirdRound squeezes rB and rC. It requires round 2 to be complete and runs
// at most once.
func (s *State) ThirdRound(sponge Sponge) (*ThirdMessage, error) {
	if s.secondMessage == nil || s.thirdMessage != nil {
		return nil, fmt.Errorf("third round: %w", ErrRoundOutOfOrder)
	}
	elems := sponge.SqueezeFieldElements(2)
	message := &ThirdMessage{RB: elems[0], RC: elems[1]}
	s.thirdMessage = message
	return message, nil
}

// FourthRound squeezes gamma, the evaluation point of the final opening
// check. Nothing is sent to the prover at this step; the prover derives gamma
// identically from the same transcript state.
func (s *State) FourthRound(sponge Sponge) error {
	if s.thirdMessage == nil || s.gamma != nil {
		return fmt.Errorf("fourth round: %w", ErrRoundOutOfOrder)
	}
	gamma := sponge.SqueezeFieldElements(1)[0]
	s.gamma = &gamma
	return nil
}
