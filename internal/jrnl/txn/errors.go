package txn

import (
	"errors"
	"fmt"
)

var (
	// Returned when an id is 0.
	ErrInvalidID = errors.New("txn: invalid id")

	// Returned when SetNext attempts to move the allocator backwards.
	ErrIDRegression = errors.New("txn: id regression")
)

type IDError struct {
	Err  error
	Have uint64
	Want uint64
}

func (e *IDError) Error() string {
	return fmt.Sprintf("%v (have %d, want >= %d)", e.Err, e.Have, e.Want)
}
func (e *IDError) Unwrap() error { return e.Err }

var (
	ErrEmptyBatch    = errors.New("txn: empty batch")
	ErrInvalidOp     = errors.New("txn: invalid operation")
	ErrDataTooLarge  = errors.New("txn: data too large")
	ErrExtraTooLarge = errors.New("txn: extra data too large")
)

type BatchValidationError struct {
	Err error

	OpIndex int // index in the batch, or -1 for batch-level errors
	OpKind  OpKind
	ID      uint64
	DataLen int
}

func (e *BatchValidationError) Error() string {
	if e.OpIndex >= 0 {
		return fmt.Sprintf("txn batch validation failed at op %d: %v", e.OpIndex, e.Err)
	}
	return fmt.Sprintf("txn batch validation failed: %v", e.Err)
}

func (e *BatchValidationError) Unwrap() error {
	return e.Err
}

var (
	ErrCommitInvalidBatch = errors.New("txn: commit invalid batch")
	ErrCommitAppendOp     = errors.New("txn: commit append op failed")
	ErrCommitPrepare      = errors.New("txn: commit prepare failed")
	ErrCommitAppendCommit = errors.New("txn: commit append COMMIT failed")
	ErrCommitRollback     = errors.New("txn: rollback failed")
)

// CommitStage is where a commit failed.
type CommitStage uint8

const (
	StageUnknown CommitStage = iota
	StageValidateBatch
	StageAppendOp
	StagePrepare
	StageAppendCommit
	StageRollback
)

func (s CommitStage) String() string {
	switch s {
	case StageValidateBatch:
		return "validate_batch"
	case StageAppendOp:
		return "append_op"
	case StagePrepare:
		return "prepare"
	case StageAppendCommit:
		return "append_commit"
	case StageRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// CommitError wraps commit failures with a stable sentinel and context.
type CommitError struct {
	Err   error
	Stage CommitStage

	TxID uint64

	OpIndex int // for StageAppendOp, else -1
	OpKind  OpKind
	ID      uint64

	// RolledBack is set when a rollback entry was written after the
	// failure.
	RolledBack bool

	Cause error
}

func (e *CommitError) Error() string {
	base := fmt.Sprintf("txn commit failed (%s)", e.Stage.String())
	if e.TxID != 0 {
		base = fmt.Sprintf("%s tx_id=%d", base, e.TxID)
	}
	if e.OpIndex >= 0 {
		base = fmt.Sprintf("%s op=%d", base, e.OpIndex)
	}
	if e.Cause != nil {
		base = fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *CommitError) Unwrap() error   { return e.Err }
func (e *CommitError) CauseErr() error { return e.Cause }

func wrapCommitErr(stage CommitStage, sentinel error, txID uint64, cause error) *CommitError {
	return &CommitError{
		Err:     sentinel,
		Stage:   stage,
		TxID:    txID,
		OpIndex: -1,
		Cause:   cause,
	}
}

func wrapCommitOpErr(stage CommitStage, sentinel error, txID uint64, opIndex int, op Op, cause error) *CommitError {
	return &CommitError{
		Err:     sentinel,
		Stage:   stage,
		TxID:    txID,
		OpIndex: opIndex,
		OpKind:  op.Kind,
		ID:      op.ID,
		Cause:   cause,
	}
}
