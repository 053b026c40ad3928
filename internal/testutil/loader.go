package testutil

import (
	"strconv"
	"sync"

	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
)

// LoaderEvent is one recorded LoaderCallback invocation.
type LoaderEvent struct {
	Method   string // "add", "update", "delete", "prepared", "failed"
	Info     recovery.RecordInfo
	ID       uint64
	TxID     uint64
	Prepared recovery.PreparedTransaction
	Records  []recovery.RecordInfo
	Deletes  []recovery.RecordInfo
}

// RecordingLoader records every callback in order.
type RecordingLoader struct {
	mu     sync.Mutex
	Events []LoaderEvent

	// FailOn makes the named method return Err.
	FailOn string
	Err    error
}

func NewRecordingLoader() *RecordingLoader {
	return &RecordingLoader{}
}

func (l *RecordingLoader) record(ev LoaderEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailOn == ev.Method {
		return l.Err
	}
	l.Events = append(l.Events, ev)
	return nil
}

func (l *RecordingLoader) AddRecord(info recovery.RecordInfo) error {
	return l.record(LoaderEvent{Method: "add", Info: info, ID: info.ID})
}

func (l *RecordingLoader) UpdateRecord(info recovery.RecordInfo) error {
	return l.record(LoaderEvent{Method: "update", Info: info, ID: info.ID})
}

func (l *RecordingLoader) DeleteRecord(id uint64) error {
	return l.record(LoaderEvent{Method: "delete", ID: id})
}

func (l *RecordingLoader) AddPreparedTransaction(tx recovery.PreparedTransaction) error {
	return l.record(LoaderEvent{Method: "prepared", TxID: tx.TxID, Prepared: tx})
}

func (l *RecordingLoader) FailedTransaction(txID uint64, records, deletes []recovery.RecordInfo) error {
	return l.record(LoaderEvent{Method: "failed", TxID: txID, Records: records, Deletes: deletes})
}

// Count returns how many events of method were recorded.
func (l *RecordingLoader) Count(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.Events {
		if ev.Method == method {
			n++
		}
	}
	return n
}

// Trace renders the events as "method:id" strings, using the tx id for
// transaction-level events.
func (l *RecordingLoader) Trace() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.Events))
	for _, ev := range l.Events {
		id := ev.ID
		if ev.Method == "prepared" || ev.Method == "failed" {
			id = ev.TxID
		}
		out = append(out, ev.Method+":"+strconv.FormatUint(id, 10))
	}
	return out
}

var _ recovery.LoaderCallback = (*RecordingLoader)(nil)
