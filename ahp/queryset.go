package ahp

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// PointQuery names one polynomial opening the prover must supply: the
// polynomial's label and the point it is evaluated at.
type PointQuery struct {
	Label string
	Point fr.Element
}

// QuerySet is the ordered set of openings closing the protocol. It is a pure
// function of the completed verifier state; no randomness is consumed, so
// both parties reproduce it independently.
type QuerySet []PointQuery

// QuerySet derives the query set from the completed state: the lincheck
// sumcheck polynomial is opened at beta, and each circuit's three matrix
// sumcheck polynomials at gamma, in the batch's canonical order.
func (s *State) QuerySet() (QuerySet, error) {
	if s.gamma == nil {
		return nil, fmt.Errorf("query set: %w", ErrRoundOutOfOrder)
	}
	beta := s.secondMessage.Beta
	gamma := *s.gamma

	queries := make(QuerySet, 0, 1+3*len(s.batch))
	queries = append(queries, PointQuery{Label: "g_1", Point: beta})
	for _, entry := range s.batch {
		id := entry.Circuit.ID()
		queries = append(queries,
			PointQuery{Label: fmt.Sprintf("g_a_%s", id), Point: gamma},
			PointQuery{Label: fmt.Sprintf("g_b_%s", id), Point: gamma},
			PointQuery{Label: fmt.Sprintf("g_c_%s", id), Point: gamma},
		)
	}
	return queries, nil
}
