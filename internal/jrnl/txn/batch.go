package txn

import (
	"github.com/julianstephens/jrnl/internal/jrnl/record"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
)

type OpKind uint8

const (
	OpAdd OpKind = iota + 1
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one record operation of a batch.
type Op struct {
	Kind     OpKind
	ID       uint64
	UserType byte
	Data     []byte
}

// PreparedOps returns the operations a prepared transaction applies when it
// commits: its adds and updates in log order, then its deletes.
func PreparedOps(tx recovery.PreparedTransaction) []Op {
	ops := make([]Op, 0, len(tx.Records)+len(tx.RecordsToDelete))
	for _, r := range tx.Records {
		kind := OpAdd
		if r.IsUpdate {
			kind = OpUpdate
		}
		ops = append(ops, Op{Kind: kind, ID: r.ID, UserType: r.UserType, Data: r.Data})
	}
	for _, r := range tx.RecordsToDelete {
		ops = append(ops, Op{Kind: OpDelete, ID: r.ID})
	}
	return ops
}

// Batch collects record operations to be appended as one transaction.
type Batch struct {
	ops []Op
}

func NewBatch() *Batch {
	return &Batch{
		ops: make([]Op, 0),
	}
}

func (b *Batch) Add(id uint64, userType byte, data []byte) {
	b.ops = append(b.ops, Op{Kind: OpAdd, ID: id, UserType: userType, Data: data})
}

func (b *Batch) Update(id uint64, userType byte, data []byte) {
	b.ops = append(b.ops, Op{Kind: OpUpdate, ID: id, UserType: userType, Data: data})
}

func (b *Batch) Delete(id uint64) {
	b.ops = append(b.ops, Op{Kind: OpDelete, ID: id})
}

// Ops returns the operations in the order they were added.
func (b *Batch) Ops() []Op {
	return b.ops
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// Validate checks the batch is non-empty and every op is encodable.
func (b *Batch) Validate() error {
	if len(b.ops) == 0 {
		return &BatchValidationError{Err: ErrEmptyBatch, OpIndex: -1}
	}
	for i, op := range b.ops {
		switch op.Kind {
		case OpAdd, OpUpdate, OpDelete:
		default:
			return &BatchValidationError{Err: ErrInvalidOp, OpIndex: i, OpKind: op.Kind, ID: op.ID}
		}
		if op.ID == 0 {
			return &BatchValidationError{Err: ErrInvalidID, OpIndex: i, OpKind: op.Kind}
		}
		if len(op.Data) > record.MaxDataSize {
			return &BatchValidationError{
				Err:     ErrDataTooLarge,
				OpIndex: i,
				OpKind:  op.Kind,
				ID:      op.ID,
				DataLen: len(op.Data),
			}
		}
	}
	return nil
}
