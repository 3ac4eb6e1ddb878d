package trace

import "errors"

var errCellAlreadySet = errors.New("write-once cell is already set")

// cell is an explicit write-once container: either unset or set exactly once.
// A second Set is a typed conflict, which is the mechanism preventing a trace
// from being re-prepared against a different ledger view after its witnesses
// have been fixed.
type cell[T any] struct {
	value T
	set   bool
}

func (c *cell[T]) Set(value T) error {
	if c.set {
		return errCellAlreadySet
	}
	c.value = value
	c.set = true
	return nil
}

func (c *cell[T]) Get() (T, bool) {
	return c.value, c.set
}
