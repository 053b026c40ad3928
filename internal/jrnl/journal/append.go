package journal

import (
	"github.com/julianstephens/jrnl/internal/jrnl/record"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
)

// appendOp is one entry on its way into the active file.
type appendOp struct {
	entry record.Entry
	sync  bool

	// resolve runs under the lock before the entry is written. It may
	// reject the entry or fill in fields that depend on journal state.
	resolve func(e *record.Entry) error
	// stateful entries are encoded after resolve, under the lock; all
	// others are encoded before the lock is taken.
	stateful bool
	// track runs under the lock once the entry was handed to fileID.
	track func(fileID uint64)
}

// appendCallback counts failed writes and, for sync appends, wakes the
// waiting caller.
type appendCallback struct {
	j     *Journal
	wait  *sequential.WaitCallback
	entry record.Entry
}

func (cb *appendCallback) Done() {
	if cb.wait != nil {
		cb.wait.Done()
	}
}

func (cb *appendCallback) OnError(err error) {
	cb.j.failed.Inc()
	if cb.wait != nil {
		cb.wait.OnError(err)
		return
	}
	cb.j.lg.Error("journal write failed", err, "type", cb.entry.Type.String(), "id", cb.entry.ID, "tx", cb.entry.TxID)
}

func (j *Journal) encode(e record.Entry) ([]byte, error) {
	data, err := record.EncodeEntry(e)
	if err != nil {
		return nil, entryErr("encode", ErrAppendFailed, e, 0, err)
	}
	if int64(len(data)) > j.opts.FileSize-record.HeaderSize {
		return nil, entryErr("encode", ErrEntryTooLarge, e, 0, nil)
	}
	return data, nil
}

func (j *Journal) append(op appendOp) error {
	var data []byte
	if !op.stateful {
		var err error
		if data, err = j.encode(op.entry); err != nil {
			return err
		}
	}

	cb := &appendCallback{j: j, entry: op.entry}
	if op.sync {
		cb.wait = sequential.NewWaitCallback()
	}

	j.mu.Lock()
	fileID, n, err := j.submitLocked(&op, data, cb)
	j.mu.Unlock()
	if err != nil {
		return err
	}

	j.appends.Inc()
	j.bytes.Add(uint64(n)) //nolint:gosec
	if cb.wait == nil {
		return nil
	}

	j.syncs.Inc()
	if err := cb.wait.Wait(); err != nil {
		return entryErr("append", ErrAppendFailed, op.entry, fileID, err)
	}
	return nil
}

func (j *Journal) submitLocked(op *appendOp, data []byte, cb *appendCallback) (uint64, int, error) {
	switch j.state {
	case stateNew, stateStarted:
		return 0, 0, entryErr("append", ErrNotLoaded, op.entry, 0, nil)
	case stateStopped:
		return 0, 0, entryErr("append", ErrJournalClosed, op.entry, 0, nil)
	}

	if op.resolve != nil {
		if err := op.resolve(&op.entry); err != nil {
			return 0, 0, err
		}
	}
	if op.stateful {
		var err error
		if data, err = j.encode(op.entry); err != nil {
			return 0, 0, err
		}
		cb.entry = op.entry
	}

	if j.active.Position()+int64(len(data)) > j.opts.FileSize {
		if err := j.rotateLocked(); err != nil {
			return 0, 0, err
		}
	}

	fileID := j.activeFileLocked().id
	if err := j.active.Write(data, op.sync, cb); err != nil {
		return fileID, 0, entryErr("append", ErrAppendFailed, op.entry, fileID, err)
	}
	if op.track != nil {
		op.track(fileID)
	}
	return fileID, len(data), nil
}

// requireLive rejects updates and deletes of records the journal does not
// hold.
func (j *Journal) requireLive(op string) func(e *record.Entry) error {
	return func(e *record.Entry) error {
		if _, ok := j.records[e.ID]; !ok {
			return entryErr(op, ErrRecordNotFound, *e, 0, nil)
		}
		return nil
	}
}

// requireOpen rejects entries for a transaction that was already prepared.
func (j *Journal) requireOpen(op string) func(e *record.Entry) error {
	return func(e *record.Entry) error {
		if tx, ok := j.txs[e.TxID]; ok && tx.prepared {
			return entryErr(op, ErrTxPrepared, *e, 0, nil)
		}
		return nil
	}
}

// AppendAddRecord writes a standalone add. With sync set it returns once the
// entry and everything before it is on disk.
func (j *Journal) AppendAddRecord(id uint64, userType byte, data []byte, sync bool) error {
	return j.append(appendOp{
		entry: record.AddEntry(id, userType, data),
		sync:  sync,
		track: func(fileID uint64) { j.recordLiveLocked(id, fileID) },
	})
}

// AppendUpdateRecord fails with ErrRecordNotFound unless id is live.
func (j *Journal) AppendUpdateRecord(id uint64, userType byte, data []byte, sync bool) error {
	return j.append(appendOp{
		entry:   record.UpdateEntry(id, userType, data),
		sync:    sync,
		resolve: j.requireLive("update"),
		track:   func(fileID uint64) { j.recordLiveLocked(id, fileID) },
	})
}

// AppendDeleteRecord fails with ErrRecordNotFound unless id is live.
func (j *Journal) AppendDeleteRecord(id uint64, sync bool) error {
	return j.append(appendOp{
		entry:   record.DeleteEntry(id),
		sync:    sync,
		resolve: j.requireLive("delete"),
		track:   func(uint64) { j.recordDeletedLocked(id) },
	})
}

func (j *Journal) AppendAddRecordTransactional(txID, id uint64, userType byte, data []byte) error {
	return j.appendTxOp(record.AddTxEntry(txID, id, userType, data), "add_tx", false)
}

func (j *Journal) AppendUpdateRecordTransactional(txID, id uint64, userType byte, data []byte) error {
	return j.appendTxOp(record.UpdateTxEntry(txID, id, userType, data), "update_tx", false)
}

func (j *Journal) AppendDeleteRecordTransactional(txID, id uint64) error {
	return j.appendTxOp(record.DeleteTxEntry(txID, id), "delete_tx", true)
}

func (j *Journal) appendTxOp(e record.Entry, op string, isDelete bool) error {
	return j.append(appendOp{
		entry:   e,
		resolve: j.requireOpen(op),
		track: func(fileID uint64) {
			j.txOpLocked(e.TxID, e.ID, fileID, isDelete)
		},
	})
}

// AppendPrepareRecord marks txID prepared. A prepared transaction takes no
// further operations; it must be committed or rolled back.
func (j *Journal) AppendPrepareRecord(txID uint64, extraData []byte, sync bool) error {
	return j.append(appendOp{
		entry:    record.PrepareEntry(txID, 0, extraData),
		sync:     sync,
		stateful: true,
		resolve: func(e *record.Entry) error {
			if err := j.requireOpen("prepare")(e); err != nil {
				return err
			}
			e.NumRecords = j.txCountLocked(txID)
			return nil
		},
		track: func(fileID uint64) { j.txPreparedLocked(txID, fileID) },
	})
}

// AppendCommitRecord makes every operation appended under txID visible to
// the next load. The commit entry is the durability boundary. Committing a
// transaction with no operations is legal and writes an empty commit.
func (j *Journal) AppendCommitRecord(txID uint64, sync bool) error {
	return j.append(appendOp{
		entry:    record.CommitEntry(txID, 0),
		sync:     sync,
		stateful: true,
		resolve: func(e *record.Entry) error {
			e.NumRecords = j.txCountLocked(txID)
			return nil
		},
		track: func(fileID uint64) { j.txCommittedLocked(txID, fileID) },
	})
}

// AppendRollbackRecord voids every operation appended under txID.
func (j *Journal) AppendRollbackRecord(txID uint64, sync bool) error {
	return j.append(appendOp{
		entry: record.RollbackEntry(txID),
		sync:  sync,
		track: func(uint64) { j.txRolledBackLocked(txID) },
	})
}
