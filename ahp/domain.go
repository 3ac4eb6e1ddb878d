package ahp

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr/fft"
)

// Domain is an FFT-friendly multiplicative subgroup of the scalar field,
// large enough to interpolate the requested number of evaluations.
type Domain struct {
	*fft.Domain
}

// NewDomain returns the smallest evaluation domain with at least size
// elements, or ErrPolynomialDegreeTooLarge when the field's two-adicity
// cannot accommodate it.
func NewDomain(size uint64) (*Domain, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: domain size is zero", ErrPolynomialDegreeTooLarge)
	}
	cardinality := ecc.NextPowerOfTwo(size)
	if _, err := fr.Generator(cardinality); err != nil {
		return nil, fmt.Errorf("%w: no subgroup of size %d", ErrPolynomialDegreeTooLarge, cardinality)
	}
	return &Domain{fft.NewDomain(size)}, nil
}

// Size returns the cardinality of the domain.
func (d *Domain) Size() uint64 {
	return d.Cardinality
}

// EvaluateVanishingPolynomial evaluates xⁿ-1 at point, where n is the domain
// cardinality. The result is zero exactly on the domain's points.
func (d *Domain) EvaluateVanishingPolynomial(point fr.Element) fr.Element {
	var res fr.Element
	var n big.Int
	n.SetUint64(d.Cardinality)
	res.Exp(point, &n)
	one := fr.One()
	res.Sub(&res, &one)
	return res
}
