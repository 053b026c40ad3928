package txn

import (
	"github.com/julianstephens/jrnl/internal/jrnl/journal"
	"github.com/julianstephens/jrnl/internal/logger"
)

// Appender is the part of the journal a Writer drives.
type Appender interface {
	AppendAddRecordTransactional(txID, id uint64, userType byte, data []byte) error
	AppendUpdateRecordTransactional(txID, id uint64, userType byte, data []byte) error
	AppendDeleteRecordTransactional(txID, id uint64) error
	AppendPrepareRecord(txID uint64, extraData []byte, sync bool) error
	AppendCommitRecord(txID uint64, sync bool) error
	AppendRollbackRecord(txID uint64, sync bool) error
}

var _ Appender = (*journal.Journal)(nil)

type WriterOpts struct {
	// SyncCommit makes Commit wait until the commit entry is on disk.
	SyncCommit bool
}

// Writer appends batches as journal transactions.
type Writer struct {
	ids    IDAllocator
	log    Appender
	logger logger.Logger
	opts   WriterOpts
}

func NewWriter(ids IDAllocator, log Appender, opts WriterOpts, lg logger.Logger) *Writer {
	return &Writer{
		ids:    ids,
		log:    log,
		logger: logger.OrNoOp(lg),
		opts:   opts,
	}
}

// Commit appends every op of batch under a fresh transaction id followed by
// a commit entry, and returns the id. If an op fails to append, the
// transaction is rolled back.
func (w *Writer) Commit(batch *Batch) (uint64, error) {
	txID, err := w.appendOps(batch)
	if err != nil {
		return txID, err
	}

	if err := w.log.AppendCommitRecord(txID, w.opts.SyncCommit); err != nil {
		w.logger.Error("failed to append commit", err, "tx", txID)
		return txID, wrapCommitErr(StageAppendCommit, ErrCommitAppendCommit, txID, err)
	}

	w.logger.Debug("commit successful", "tx", txID, "count", batch.Len())
	return txID, nil
}

// Prepare appends the ops of batch and a durable prepare entry carrying
// extra. The transaction stays open until Resolve.
func (w *Writer) Prepare(batch *Batch, extra []byte) (uint64, error) {
	txID, err := w.appendOps(batch)
	if err != nil {
		return txID, err
	}

	if err := w.log.AppendPrepareRecord(txID, extra, true); err != nil {
		w.logger.Error("failed to append prepare", err, "tx", txID)
		ce := wrapCommitErr(StagePrepare, ErrCommitPrepare, txID, err)
		ce.RolledBack = w.rollback(txID)
		return txID, ce
	}

	w.logger.Debug("transaction prepared", "tx", txID, "count", batch.Len())
	return txID, nil
}

// Resolve commits or rolls back a prepared transaction, including one
// reported by a load.
func (w *Writer) Resolve(txID uint64, commit bool) error {
	if commit {
		if err := w.log.AppendCommitRecord(txID, true); err != nil {
			return wrapCommitErr(StageAppendCommit, ErrCommitAppendCommit, txID, err)
		}
		return nil
	}
	if err := w.log.AppendRollbackRecord(txID, true); err != nil {
		return wrapCommitErr(StageRollback, ErrCommitRollback, txID, err)
	}
	return nil
}

func (w *Writer) appendOps(batch *Batch) (uint64, error) {
	if err := batch.Validate(); err != nil {
		w.logger.Warn("batch validation failed", "count", batch.Len(), "reason", err.Error())
		return 0, wrapCommitErr(StageValidateBatch, ErrCommitInvalidBatch, 0, err)
	}

	txID := w.ids.Next()
	w.logger.Debug("allocated tx id", "tx", txID, "ops_count", batch.Len())

	for i, op := range batch.Ops() {
		var err error
		switch op.Kind {
		case OpAdd:
			err = w.log.AppendAddRecordTransactional(txID, op.ID, op.UserType, op.Data)
		case OpUpdate:
			err = w.log.AppendUpdateRecordTransactional(txID, op.ID, op.UserType, op.Data)
		case OpDelete:
			err = w.log.AppendDeleteRecordTransactional(txID, op.ID)
		}
		if err != nil {
			w.logger.Error("failed to append operation", err, "tx", txID, "op_index", i, "kind", op.Kind.String())
			ce := wrapCommitOpErr(StageAppendOp, ErrCommitAppendOp, txID, i, op, err)
			ce.RolledBack = w.rollback(txID)
			return txID, ce
		}
	}
	return txID, nil
}

// rollback voids txID after a failure and reports whether it managed to.
func (w *Writer) rollback(txID uint64) bool {
	if err := w.log.AppendRollbackRecord(txID, false); err != nil {
		w.logger.Warn("rollback after failure did not append", "tx", txID, "reason", err.Error())
		return false
	}
	return true
}
