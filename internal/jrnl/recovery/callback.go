package recovery

// RecordInfo is a record as seen by the loader.
type RecordInfo struct {
	ID       uint64
	UserType byte
	Data     []byte
	IsUpdate bool
}

// PreparedTransaction is a transaction found prepared but unresolved at the
// end of the log. The caller decides whether to commit or roll it back.
type PreparedTransaction struct {
	TxID            uint64
	ExtraData       []byte
	Records         []RecordInfo
	RecordsToDelete []RecordInfo
}

// LoaderCallback receives the reconstructed state during load. Any error it
// returns halts the load.
type LoaderCallback interface {
	AddRecord(info RecordInfo) error
	UpdateRecord(info RecordInfo) error
	DeleteRecord(id uint64) error
	AddPreparedTransaction(tx PreparedTransaction) error
	// FailedTransaction reports a transaction whose commit or prepare entry
	// declares more operations than survived in the log.
	FailedTransaction(txID uint64, records, recordsToDelete []RecordInfo) error
}

// NopLoader ignores everything. Embed it to implement only some methods.
type NopLoader struct{}

func (NopLoader) AddRecord(RecordInfo) error                                 { return nil }
func (NopLoader) UpdateRecord(RecordInfo) error                              { return nil }
func (NopLoader) DeleteRecord(uint64) error                                  { return nil }
func (NopLoader) AddPreparedTransaction(PreparedTransaction) error           { return nil }
func (NopLoader) FailedTransaction(uint64, []RecordInfo, []RecordInfo) error { return nil }

var _ LoaderCallback = NopLoader{}

// Tracker observes which files hold the entries that load resolves, so the
// journal can rebuild its file pins. All methods are optional no-ops.
type Tracker interface {
	// RecordLive is called for each applied add or update.
	RecordLive(id, fileID uint64)
	// RecordDeleted is called for each applied delete.
	RecordDeleted(id uint64)
	// TxCommitted is called after a commit applies, with the files holding
	// the transaction's operations and its commit entry.
	TxCommitted(opFiles []uint64, commitFile uint64)
	// TxPending is called at the end of load for every prepared transaction
	// left open.
	TxPending(txID uint64, files []uint64, ops []PendingOp)
}

// PendingOp is one operation of a prepared transaction and the file that
// holds it.
type PendingOp struct {
	ID     uint64
	FileID uint64
	Delete bool
}

type nopTracker struct{}

func (nopTracker) RecordLive(uint64, uint64)               {}
func (nopTracker) RecordDeleted(uint64)                    {}
func (nopTracker) TxCommitted([]uint64, uint64)            {}
func (nopTracker) TxPending(uint64, []uint64, []PendingOp) {}
