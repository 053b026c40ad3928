package journal

import (
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
)

// A file is pinned once for every live record entry it holds and once for
// every open transaction with entries in it. Reclaim only removes unpinned
// files.

func (j *Journal) pinLocked(fileID uint64) {
	if f, ok := j.byID[fileID]; ok {
		f.pins++
	}
}

func (j *Journal) unpinLocked(fileID uint64) {
	if f, ok := j.byID[fileID]; ok && f.pins > 0 {
		f.pins--
	}
}

func (j *Journal) recordLiveLocked(id, fileID uint64) {
	j.records[id] = append(j.records[id], fileID)
	j.pinLocked(fileID)
}

func (j *Journal) recordDeletedLocked(id uint64) {
	for _, fileID := range j.records[id] {
		j.unpinLocked(fileID)
	}
	delete(j.records, id)
}

// requireLocked marks files as needed for as long as file by survives.
func (j *Journal) requireLocked(files []uint64, by uint64) {
	for _, id := range files {
		if f, ok := j.byID[id]; ok && f.requiredBy < by {
			f.requiredBy = by
		}
	}
}

func (j *Journal) txLocked(txID uint64) *openTx {
	tx, ok := j.txs[txID]
	if !ok {
		tx = &openTx{}
		j.txs[txID] = tx
	}
	return tx
}

func (j *Journal) txTouchLocked(tx *openTx, fileID uint64) {
	if tx.touch(fileID) {
		j.pinLocked(fileID)
	}
}

func (j *Journal) txOpLocked(txID, id, fileID uint64, isDelete bool) {
	tx := j.txLocked(txID)
	tx.ops = append(tx.ops, recovery.PendingOp{ID: id, FileID: fileID, Delete: isDelete})
	j.txTouchLocked(tx, fileID)
}

func (j *Journal) txCountLocked(txID uint64) uint32 {
	if tx, ok := j.txs[txID]; ok {
		return uint32(len(tx.ops)) //nolint:gosec
	}
	return 0
}

func (j *Journal) txPreparedLocked(txID, fileID uint64) {
	tx := j.txLocked(txID)
	tx.prepared = true
	j.txTouchLocked(tx, fileID)
}

// txCommittedLocked moves the transaction's pins onto the records it made
// live.
func (j *Journal) txCommittedLocked(txID, commitFile uint64) {
	tx, ok := j.txs[txID]
	if !ok {
		return
	}
	delete(j.txs, txID)

	for _, op := range tx.ops {
		if op.Delete {
			j.recordDeletedLocked(op.ID)
			continue
		}
		j.recordLiveLocked(op.ID, op.FileID)
	}
	for _, fileID := range tx.files {
		j.unpinLocked(fileID)
	}
	j.requireLocked(tx.files, commitFile)
}

func (j *Journal) txRolledBackLocked(txID uint64) {
	tx, ok := j.txs[txID]
	if !ok {
		return
	}
	delete(j.txs, txID)
	for _, fileID := range tx.files {
		j.unpinLocked(fileID)
	}
}

// loadTracker rebuilds pins while Load replays the files. Load holds the
// journal lock throughout.
type loadTracker struct {
	j *Journal
}

func (t loadTracker) RecordLive(id, fileID uint64) {
	t.j.recordLiveLocked(id, fileID)
}

func (t loadTracker) RecordDeleted(id uint64) {
	t.j.recordDeletedLocked(id)
}

func (t loadTracker) TxCommitted(opFiles []uint64, commitFile uint64) {
	t.j.requireLocked(opFiles, commitFile)
}

func (t loadTracker) TxPending(txID uint64, files []uint64, ops []recovery.PendingOp) {
	tx := &openTx{ops: ops, prepared: true}
	t.j.txs[txID] = tx
	for _, fileID := range files {
		t.j.txTouchLocked(tx, fileID)
	}
}

var _ recovery.Tracker = loadTracker{}
