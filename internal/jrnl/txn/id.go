package txn

import (
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"go.uber.org/atomic"
)

// IDAllocator hands out the ids callers assign to records and
// transactions. The journal never allocates ids itself.
type IDAllocator interface {
	// Next reserves and returns the next id. 0 is reserved as "unset".
	Next() uint64

	// Peek returns the id Next would return, without reserving it.
	Peek() uint64

	// SetNext moves the allocator forward, typically after a load.
	SetNext(next uint64) error
}

// CounterAllocator is a lock-free IDAllocator shared by every appending
// goroutine.
type CounterAllocator struct {
	next atomic.Uint64
}

// NewCounterAllocator starts the allocator at next. For an empty journal
// pass 1.
func NewCounterAllocator(next uint64) (*CounterAllocator, error) {
	if next < 1 {
		return nil, &IDError{Err: ErrInvalidID, Have: next, Want: 1}
	}
	a := &CounterAllocator{}
	a.next.Store(next)
	return a, nil
}

// AllocatorAfterLoad starts past every record and transaction id the load
// saw, since both are drawn from one counter.
func AllocatorAfterLoad(res *recovery.Result) *CounterAllocator {
	var highest uint64
	if res != nil {
		highest = max(res.MaxRecordID, res.MaxTxID)
	}
	a := &CounterAllocator{}
	a.next.Store(highest + 1)
	return a
}

func (a *CounterAllocator) Next() uint64 {
	return a.next.Inc() - 1
}

func (a *CounterAllocator) Peek() uint64 {
	return a.next.Load()
}

// SetNext refuses to move backwards.
func (a *CounterAllocator) SetNext(next uint64) error {
	if next < 1 {
		return &IDError{Err: ErrInvalidID, Have: next, Want: 1}
	}
	for {
		cur := a.next.Load()
		if next < cur {
			return &IDError{Err: ErrIDRegression, Have: next, Want: cur}
		}
		if a.next.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

var _ IDAllocator = (*CounterAllocator)(nil)
