package aggregates

import "slices"

// Contract records which tables an aggregate writes and the order in which
// its write paths take row locks. Every write runs in one transaction owned
// by the aggregate.
type Contract struct {
	Name string
	// Tables written inside the aggregate's transaction.
	Writes []string
	// Row lock acquisition order. Wallet pairs are locked by ascending user id.
	LockOrder []string
	Notes     string
}

// Aggregate is implemented by every write boundary.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) WritesTable(table string) bool {
	return slices.Contains(c.Writes, table)
}

// Locks reports whether table appears in the lock order, and its position.
func (c Contract) Locks(table string) (int, bool) {
	i := slices.Index(c.LockOrder, table)
	return i, i >= 0
}
