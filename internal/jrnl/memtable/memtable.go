// Package memtable materialises the record set a journal load reports.
package memtable

import (
	"errors"
	"sort"
	"sync"

	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/jrnl/txn"
)

var (
	ErrInvalidID = errors.New("memtable: invalid record id")
	ErrInvalidOp = errors.New("memtable: invalid op kind")
)

// Entry is the current state of one record.
type Entry struct {
	UserType byte
	Data     []byte
	// Updates counts the updates applied since the add.
	Updates int
}

// Table is an in-memory view of live records, keyed by record id. It
// implements recovery.LoaderCallback.
type Table struct {
	mu sync.RWMutex
	m  map[uint64]Entry

	prepared map[uint64]recovery.PreparedTransaction
	failed   []uint64
	// strayDeletes counts deletes of ids the table never saw. After a
	// reclaim a delete can outlive the file holding its add.
	strayDeletes int
}

// New creates an empty memtable.
func New() *Table {
	return &Table{
		m:        make(map[uint64]Entry),
		prepared: make(map[uint64]recovery.PreparedTransaction),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Get returns the record with id if it is live.
func (t *Table) Get(id uint64) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.m[id]
	return e, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// IDs returns the live record ids in ascending order.
func (t *Table) IDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint64, 0, len(t.m))
	for id := range t.m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *Table) putLocked(id uint64, userType byte, data []byte, update bool) {
	e := Entry{UserType: userType, Data: cloneBytes(data)}
	if update {
		e.Updates = t.m[id].Updates + 1
	}
	t.m[id] = e
}

func (t *Table) deleteLocked(id uint64) {
	if _, ok := t.m[id]; !ok {
		t.strayDeletes++
		return
	}
	delete(t.m, id)
}

// Apply applies ops in order. Either all ops are applied or none.
func (t *Table) Apply(ops []txn.Op) error {
	for _, op := range ops {
		if op.ID == 0 {
			return ErrInvalidID
		}
		if op.Kind != txn.OpAdd && op.Kind != txn.OpUpdate && op.Kind != txn.OpDelete {
			return ErrInvalidOp
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case txn.OpAdd:
			t.putLocked(op.ID, op.UserType, op.Data, false)
		case txn.OpUpdate:
			t.putLocked(op.ID, op.UserType, op.Data, true)
		case txn.OpDelete:
			t.deleteLocked(op.ID)
		}
	}
	return nil
}

func (t *Table) AddRecord(info recovery.RecordInfo) error {
	if info.ID == 0 {
		return ErrInvalidID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.putLocked(info.ID, info.UserType, info.Data, false)
	return nil
}

func (t *Table) UpdateRecord(info recovery.RecordInfo) error {
	if info.ID == 0 {
		return ErrInvalidID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.putLocked(info.ID, info.UserType, info.Data, true)
	return nil
}

func (t *Table) DeleteRecord(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleteLocked(id)
	return nil
}

// AddPreparedTransaction holds tx aside; its records are not live until a
// later commit is applied.
func (t *Table) AddPreparedTransaction(tx recovery.PreparedTransaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prepared[tx.TxID] = tx
	return nil
}

func (t *Table) FailedTransaction(txID uint64, _, _ []recovery.RecordInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = append(t.failed, txID)
	return nil
}

// Prepared returns the in-doubt transactions reported by the load, by tx id.
func (t *Table) Prepared() []recovery.PreparedTransaction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]recovery.PreparedTransaction, 0, len(t.prepared))
	for _, tx := range t.prepared {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out
}

// ResolvePrepared applies (commit) or drops a prepared transaction. It
// reports false when txID is not prepared.
func (t *Table) ResolvePrepared(txID uint64, commit bool) (bool, error) {
	t.mu.Lock()
	tx, ok := t.prepared[txID]
	delete(t.prepared, txID)
	t.mu.Unlock()

	if !ok || !commit {
		return ok, nil
	}
	return true, t.Apply(txn.PreparedOps(tx))
}

// Failed returns the ids of transactions the load could not apply.
func (t *Table) Failed() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]uint64(nil), t.failed...)
}

func (t *Table) StrayDeletes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strayDeletes
}

// Snapshot returns a copy of the live records (for tests/debugging).
func (t *Table) Snapshot() map[uint64]Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[uint64]Entry, len(t.m))
	for id, e := range t.m {
		out[id] = Entry{UserType: e.UserType, Data: cloneBytes(e.Data), Updates: e.Updates}
	}
	return out
}

var _ recovery.LoaderCallback = (*Table)(nil)
