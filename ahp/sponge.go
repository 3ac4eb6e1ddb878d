package ahp

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"golang.org/x/crypto/sha3"
)

// Sponge is the transcript primitive driving the Fiat-Shamir transform. Its
// output is a deterministic function of everything absorbed so far; both
// sides of the protocol must absorb byte-identical data in byte-identical
// order. A Sponge is exclusively owned by one proof session and must never be
// shared across sessions.
type Sponge interface {
	// Absorb appends data to the transcript.
	Absorb(data ...[]byte)
	// SqueezeFieldElements extracts n field elements from the transcript.
	SqueezeFieldElements(n int) []fr.Element
}

// shakeSponge is a duplex construction over SHAKE-256. Absorbed inputs are
// length-prefixed so distinct absorption sequences never collide, and each
// squeeze ratchets the state so successive squeezes are chained.
type shakeSponge struct {
	state []byte
}

// NewSponge returns a SHAKE-256 backed Sponge seeded with the given domain
// separator.
func NewSponge(domainSeparator []byte) Sponge {
	s := &shakeSponge{}
	s.Absorb(domainSeparator)
	return s
}

func (s *shakeSponge) Absorb(data ...[]byte) {
	for _, d := range data {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(d)))
		s.state = append(s.state, length[:]...)
		s.state = append(s.state, d...)
	}
}

func (s *shakeSponge) SqueezeFieldElements(n int) []fr.Element {
	h := sha3.NewShake256()
	h.Write(s.state)

	// read fr.Bytes+16 bytes per element so the modular reduction bias is
	// negligible
	out := make([]fr.Element, n)
	wide := make([]byte, fr.Bytes+16)
	for i := range out {
		h.Read(wide)
		out[i].SetBytes(wide)
	}

	// ratchet: the next squeeze must not repeat this one
	next := make([]byte, 32)
	h.Read(next)
	s.state = next
	return out
}
