package snarktest

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/mimc"
)

func hashElements(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

func hashVector(v fr.Vector) fr.Element {
	return hashElements(v...)
}

func hashPair(left, right fr.Element) fr.Element {
	return hashElements(left, right)
}

func randomElement(rng io.Reader) (fr.Element, error) {
	var buf [fr.Bytes + 16]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return fr.Element{}, fmt.Errorf("read randomness: %w", err)
	}
	var out fr.Element
	out.SetBytes(buf[:])
	return out, nil
}
