package ahp

import "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"

// State is the verifier's session state for one batched proof attempt. It is
// created by FirstRound and threaded through the remaining rounds; each
// round's message field is set exactly once, by that round. A State belongs
// to a single goroutine.
type State struct {
	batch Batch

	constraintDomain *Domain
	nonZeroADomain   *Domain
	nonZeroBDomain   *Domain
	nonZeroCDomain   *Domain
	inputDomain      *Domain

	firstMessage  *FirstMessage
	secondMessage *SecondMessage
	thirdMessage  *ThirdMessage
	gamma         *fr.Element
}

// Batch returns the batch composition fixed at round 1.
func (s *State) Batch() Batch {
	return s.batch
}

// ConstraintDomain returns the evaluation domain of the constraint system.
func (s *State) ConstraintDomain() *Domain {
	return s.constraintDomain
}

// InputDomain returns the evaluation domain of the public inputs.
func (s *State) InputDomain() *Domain {
	return s.inputDomain
}

// FirstMessage returns the first-round message, or nil before round 1.
func (s *State) FirstMessage() *FirstMessage {
	return s.firstMessage
}

// SecondMessage returns the second-round message, or nil before round 2.
func (s *State) SecondMessage() *SecondMessage {
	return s.secondMessage
}

// ThirdMessage returns the third-round message, or nil before round 3.
func (s *State) ThirdMessage() *ThirdMessage {
	return s.thirdMessage
}

// Gamma returns the terminal challenge. The second return value is false
// before round 4.
func (s *State) Gamma() (fr.Element, bool) {
	if s.gamma == nil {
		return fr.Element{}, false
	}
	return *s.gamma, true
}
