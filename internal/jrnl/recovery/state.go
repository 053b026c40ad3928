package recovery

import (
	"github.com/julianstephens/jrnl/internal/jrnl/errorutil"
	"github.com/julianstephens/jrnl/internal/jrnl/record"
	"github.com/julianstephens/jrnl/internal/logger"
)

type txOp struct {
	kind   record.EntryType // add_tx, update_tx or delete_tx
	info   RecordInfo
	fileID uint64
}

type pendingTx struct {
	id       uint64
	ops      []txOp
	prepared bool
	// declared is the operation count from the prepare entry.
	declared uint32
	extra    []byte
	files    []uint64
}

func (tx *pendingTx) touch(fileID uint64) {
	if n := len(tx.files); n == 0 || tx.files[n-1] != fileID {
		tx.files = append(tx.files, fileID)
	}
}

// split separates the operations into records (adds and updates) and
// deletes, as PreparedTransaction and FailedTransaction present them.
func (tx *pendingTx) split() (records, deletes []RecordInfo) {
	for _, op := range tx.ops {
		if op.kind == record.EntryTypeDeleteTx {
			deletes = append(deletes, op.info)
			continue
		}
		records = append(records, op.info)
	}
	return records, deletes
}

// replayState resolves decoded entries into LoaderCallback events: record
// operations outside a transaction fire immediately, transactional ones are
// buffered per transaction id until a commit, rollback or end of log.
type replayState struct {
	cb LoaderCallback
	tr Tracker
	lg logger.Logger

	pending map[uint64]*pendingTx
	// order keeps first-seen order so end-of-log reporting is deterministic.
	order []uint64

	res *Result
}

func newReplayState(cb LoaderCallback, tr Tracker, lg logger.Logger, res *Result) *replayState {
	if tr == nil {
		tr = nopTracker{}
	}
	return &replayState{
		cb:      cb,
		tr:      tr,
		lg:      logger.OrNoOp(lg),
		pending: make(map[uint64]*pendingTx),
		res:     res,
	}
}

func (s *replayState) tx(id uint64) *pendingTx {
	tx, ok := s.pending[id]
	if !ok {
		tx = &pendingTx{id: id}
		s.pending[id] = tx
		s.order = append(s.order, id)
	}
	return tx
}

func (s *replayState) forget(id uint64) {
	delete(s.pending, id)
}

func (s *replayState) observeIDs(e record.Entry) {
	if e.Type.IsRecordOp() && e.ID > s.res.MaxRecordID {
		s.res.MaxRecordID = e.ID
	}
	if e.Type.Transactional() && e.TxID > s.res.MaxTxID {
		s.res.MaxTxID = e.TxID
	}
}

// apply handles one entry read from fileID at offset.
func (s *replayState) apply(e record.Entry, fileID uint64, offset int64) error {
	s.observeIDs(e)

	switch e.Type {
	case record.EntryTypeAdd, record.EntryTypeUpdate, record.EntryTypeDelete:
		return s.applyRecordOp(e.Type, recordInfo(e), fileID, offset, nil)

	case record.EntryTypeAddTx, record.EntryTypeUpdateTx, record.EntryTypeDeleteTx:
		tx := s.tx(e.TxID)
		tx.ops = append(tx.ops, txOp{kind: e.Type, info: recordInfo(e), fileID: fileID})
		tx.touch(fileID)

	case record.EntryTypePrepare:
		tx := s.tx(e.TxID)
		tx.prepared = true
		tx.declared = e.NumRecords
		tx.extra = append([]byte(nil), e.Data...)
		tx.touch(fileID)

	case record.EntryTypeCommit:
		return s.commit(e, fileID, offset)

	case record.EntryTypeRollback:
		if _, ok := s.pending[e.TxID]; ok {
			s.forget(e.TxID)
		}
		s.res.RolledBack++
	}
	return nil
}

func (s *replayState) commit(e record.Entry, fileID uint64, offset int64) error {
	tx, ok := s.pending[e.TxID]
	if !ok {
		tx = &pendingTx{id: e.TxID}
	}
	s.forget(e.TxID)

	if uint32(len(tx.ops)) != e.NumRecords { //nolint:gosec
		s.lg.Warn("transaction lost operations before commit",
			"tx", e.TxID, "declared", e.NumRecords, "found", len(tx.ops), "file", fileID)
		records, deletes := tx.split()
		s.res.Failed++
		return s.call("FailedTransaction", e, fileID, offset, func() error {
			return s.cb.FailedTransaction(e.TxID, records, deletes)
		})
	}

	opFiles := make([]uint64, 0, len(tx.files))
	for _, op := range tx.ops {
		if err := s.applyRecordOp(nonTx(op.kind), op.info, op.fileID, offset, &e.TxID); err != nil {
			return err
		}
		if n := len(opFiles); n == 0 || opFiles[n-1] != op.fileID {
			opFiles = append(opFiles, op.fileID)
		}
	}
	s.tr.TxCommitted(opFiles, fileID)
	s.res.Committed++
	return nil
}

func (s *replayState) applyRecordOp(kind record.EntryType, info RecordInfo, fileID uint64, offset int64, txID *uint64) error {
	e := record.Entry{Type: kind, ID: info.ID}
	if txID != nil {
		e.TxID = *txID
	}

	switch kind {
	case record.EntryTypeAdd:
		info.IsUpdate = false
		if err := s.call("AddRecord", e, fileID, offset, func() error { return s.cb.AddRecord(info) }); err != nil {
			return err
		}
		s.tr.RecordLive(info.ID, fileID)
		s.res.Added++
	case record.EntryTypeUpdate:
		info.IsUpdate = true
		if err := s.call("UpdateRecord", e, fileID, offset, func() error { return s.cb.UpdateRecord(info) }); err != nil {
			return err
		}
		s.tr.RecordLive(info.ID, fileID)
		s.res.Updated++
	case record.EntryTypeDelete:
		if err := s.call("DeleteRecord", e, fileID, offset, func() error { return s.cb.DeleteRecord(info.ID) }); err != nil {
			return err
		}
		s.tr.RecordDeleted(info.ID)
		s.res.Deleted++
	}
	return nil
}

// finish reports what is still open once every file has been read.
func (s *replayState) finish() error {
	for _, id := range s.order {
		tx, ok := s.pending[id]
		if !ok {
			continue
		}
		s.forget(id)

		if !tx.prepared {
			s.lg.Debug("discarding incomplete transaction", "tx", id, "ops", len(tx.ops))
			s.res.Discarded++
			continue
		}

		records, deletes := tx.split()
		e := record.Entry{Type: record.EntryTypePrepare, TxID: id}
		if uint32(len(tx.ops)) != tx.declared { //nolint:gosec
			s.lg.Warn("prepared transaction lost operations",
				"tx", id, "declared", tx.declared, "found", len(tx.ops))
			s.res.Failed++
			if err := s.call("FailedTransaction", e, 0, -1, func() error {
				return s.cb.FailedTransaction(id, records, deletes)
			}); err != nil {
				return err
			}
			continue
		}

		s.lg.Warn("in-doubt prepared transaction", "tx", id, "ops", len(tx.ops), "err", ErrInDoubtTransaction)
		s.res.Prepared++
		if err := s.call("AddPreparedTransaction", e, 0, -1, func() error {
			return s.cb.AddPreparedTransaction(PreparedTransaction{
				TxID:            id,
				ExtraData:       tx.extra,
				Records:         records,
				RecordsToDelete: deletes,
			})
		}); err != nil {
			return err
		}
		ops := make([]PendingOp, 0, len(tx.ops))
		for _, op := range tx.ops {
			ops = append(ops, PendingOp{ID: op.info.ID, FileID: op.fileID, Delete: op.kind == record.EntryTypeDeleteTx})
		}
		s.tr.TxPending(id, tx.files, ops)
	}
	s.order = s.order[:0]
	return nil
}

func (s *replayState) call(method string, e record.Entry, fileID uint64, offset int64, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	coords := &errorutil.Coordinates{}
	if fileID != 0 {
		coords.FileID = &fileID
	}
	if offset >= 0 {
		coords.Offset = &offset
	}
	if e.Type.Transactional() || e.TxID != 0 {
		tx := e.TxID
		coords.TxID = &tx
	}
	return &ReplayLogicError{
		Coordinates: coords,
		Kind:        ReplayLogicCallback,
		EntryType:   e.Type,
		Method:      method,
		Cause:       err,
		Err:         ErrCallback,
	}
}

func recordInfo(e record.Entry) RecordInfo {
	return RecordInfo{
		ID:       e.ID,
		UserType: e.UserType,
		Data:     e.Data,
		IsUpdate: e.Type == record.EntryTypeUpdate || e.Type == record.EntryTypeUpdateTx,
	}
}

func nonTx(t record.EntryType) record.EntryType {
	switch t {
	case record.EntryTypeAddTx:
		return record.EntryTypeAdd
	case record.EntryTypeUpdateTx:
		return record.EntryTypeUpdate
	case record.EntryTypeDeleteTx:
		return record.EntryTypeDelete
	default:
		return t
	}
}
