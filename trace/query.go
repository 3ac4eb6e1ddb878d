package trace

import (
	"context"

	"github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
)

// Query is the current ledger view membership witnesses are prepared against.
// The trace never inspects the ledger's internals; it only consumes the root
// and the state paths the query yields. Implementations may perform I/O; the
// context carries cancellation for callers that must not block.
type Query interface {
	// StateRoot returns the current global state root.
	StateRoot(ctx context.Context) (fr.Element, error)
	// StatePath returns the membership witness for the given commitment.
	StatePath(ctx context.Context, commitment fr.Element) (*StatePath, error)
}
