package testutil

import (
	"sync"

	"github.com/julianstephens/jrnl/internal/jrnl/txn"
)

// IDAllocator is a deterministic txn.IDAllocator that also remembers every
// id it handed out.
type IDAllocator struct {
	mu     sync.Mutex
	nextID uint64
	Issued []uint64
}

func NewIDAllocator(startID uint64) *IDAllocator {
	return &IDAllocator{nextID: startID}
}

func (m *IDAllocator) Next() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.Issued = append(m.Issued, id)
	return id
}

func (m *IDAllocator) Peek() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID
}

func (m *IDAllocator) SetNext(next uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next < 1 {
		return &txn.IDError{Err: txn.ErrInvalidID, Have: next, Want: 1}
	}
	if next < m.nextID {
		return &txn.IDError{Err: txn.ErrIDRegression, Have: next, Want: m.nextID}
	}
	m.nextID = next
	return nil
}

var _ txn.IDAllocator = (*IDAllocator)(nil)
