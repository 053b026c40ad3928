package record

// EntryType is the wire tag of a journal entry.
type EntryType uint8

const (
	EntryTypeUnknown EntryType = iota
	EntryTypeAdd
	EntryTypeUpdate
	EntryTypeDelete
	EntryTypeAddTx
	EntryTypeUpdateTx
	EntryTypeDeleteTx
	EntryTypePrepare
	EntryTypeCommit
	EntryTypeRollback
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeAdd:
		return "add"
	case EntryTypeUpdate:
		return "update"
	case EntryTypeDelete:
		return "delete"
	case EntryTypeAddTx:
		return "add_tx"
	case EntryTypeUpdateTx:
		return "update_tx"
	case EntryTypeDeleteTx:
		return "delete_tx"
	case EntryTypePrepare:
		return "prepare"
	case EntryTypeCommit:
		return "commit"
	case EntryTypeRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t > EntryTypeUnknown && t <= EntryTypeRollback
}

// Transactional reports whether entries of type t carry a transaction id.
func (t EntryType) Transactional() bool {
	return t >= EntryTypeAddTx
}

// IsRecordOp reports whether t adds, updates or deletes a record.
func (t EntryType) IsRecordOp() bool {
	return t >= EntryTypeAdd && t <= EntryTypeDeleteTx
}

// Frame is the checksummed envelope around one entry payload.
type Frame struct {
	Type    EntryType `json:"type"`
	Payload []byte    `json:"payload"`
	CRC     uint32    `json:"crc"`
	// Len covers the type byte and the payload, not the CRC.
	Len uint32 `json:"len"`
}

// FramedEntry is a Frame plus its location in the file.
type FramedEntry struct {
	Frame  Frame `json:"frame"`
	Size   int64 `json:"size"`
	Offset int64 `json:"offset"`
}

// Entry is the decoded form of every entry type. Fields that a type does not
// carry are left zero.
type Entry struct {
	Type     EntryType `json:"type"`
	TxID     uint64    `json:"tx_id,omitempty"`
	ID       uint64    `json:"id,omitempty"`
	UserType byte      `json:"user_type,omitempty"`
	// Data is the record body for add/update entries and the extra data for
	// prepare entries.
	Data []byte `json:"data,omitempty"`
	// NumRecords is the number of record operations the transaction wrote
	// before this prepare or commit.
	NumRecords uint32 `json:"num_records,omitempty"`
}

func AddEntry(id uint64, userType byte, data []byte) Entry {
	return Entry{Type: EntryTypeAdd, ID: id, UserType: userType, Data: data}
}

func UpdateEntry(id uint64, userType byte, data []byte) Entry {
	return Entry{Type: EntryTypeUpdate, ID: id, UserType: userType, Data: data}
}

func DeleteEntry(id uint64) Entry {
	return Entry{Type: EntryTypeDelete, ID: id}
}

func AddTxEntry(txID, id uint64, userType byte, data []byte) Entry {
	return Entry{Type: EntryTypeAddTx, TxID: txID, ID: id, UserType: userType, Data: data}
}

func UpdateTxEntry(txID, id uint64, userType byte, data []byte) Entry {
	return Entry{Type: EntryTypeUpdateTx, TxID: txID, ID: id, UserType: userType, Data: data}
}

func DeleteTxEntry(txID, id uint64) Entry {
	return Entry{Type: EntryTypeDeleteTx, TxID: txID, ID: id}
}

func PrepareEntry(txID uint64, numRecords uint32, extra []byte) Entry {
	return Entry{Type: EntryTypePrepare, TxID: txID, NumRecords: numRecords, Data: extra}
}

func CommitEntry(txID uint64, numRecords uint32) Entry {
	return Entry{Type: EntryTypeCommit, TxID: txID, NumRecords: numRecords}
}

func RollbackEntry(txID uint64) Entry {
	return Entry{Type: EntryTypeRollback, TxID: txID}
}
