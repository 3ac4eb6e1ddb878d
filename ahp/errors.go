package ahp

import "errors"

var (
	// ErrNonSquareMatrix is returned when a circuit's constraint matrix is not square.
	ErrNonSquareMatrix = errors.New("number of constraints does not equal number of variables")

	// ErrPolynomialDegreeTooLarge is returned when no evaluation domain of
	// sufficient size exists in the field.
	ErrPolynomialDegreeTooLarge = errors.New("polynomial degree is too large")

	// ErrChallengeDegenerate is returned when a squeezed challenge lands on a
	// root of the constraint domain's vanishing polynomial. The probability of
	// this happening with an honest sponge is negligible, but it is surfaced
	// as a recoverable error so a long-running caller can retry with fresh
	// transcript input instead of crashing.
	ErrChallengeDegenerate = errors.New("challenge is a root of the vanishing polynomial")

	// ErrRoundOutOfOrder is returned when verifier rounds are not executed in
	// the strict order 1 → 2 → 3 → 4 → query set, or a round runs twice.
	ErrRoundOutOfOrder = errors.New("verifier round executed out of order")

	// ErrEmptyBatch is returned when a batch contains no circuit instance.
	ErrEmptyBatch = errors.New("batch contains no circuit instance")
)
