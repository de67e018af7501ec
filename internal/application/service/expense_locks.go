package service

import (
	"hash/fnv"
	"sync"
)

// expenseLocks serializes mutations per expense. Evaluation reads and
// conditionally appends to the same approvals list, so two decisions on
// one expense must never interleave. Locks are striped by expense id;
// distinct expenses usually proceed in parallel.
type expenseLocks struct {
	shards [64]sync.Mutex
}

func (l *expenseLocks) lock(expenseID string) func() {
	h := fnv.New32a()
	h.Write([]byte(expenseID))
	shard := &l.shards[h.Sum32()%uint32(len(l.shards))]
	shard.Lock()
	return shard.Unlock
}
