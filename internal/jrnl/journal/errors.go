package journal

import (
	"errors"
	"fmt"

	"github.com/julianstephens/jrnl/internal/jrnl/errorutil"
	"github.com/julianstephens/jrnl/internal/jrnl/record"
)

var (
	// Lifecycle
	ErrNotStarted    = errors.New("journal: not started")
	ErrNotLoaded     = errors.New("journal: not loaded")
	ErrAlreadyLoaded = errors.New("journal: already loaded")
	ErrJournalClosed = errors.New("journal: closed")
	ErrInvalidDir    = errors.New("journal: invalid dir")

	// Caller errors
	ErrRecordNotFound = errors.New("journal: record not found")
	ErrTxPrepared     = errors.New("journal: transaction already prepared")
	ErrEntryTooLarge  = errors.New("journal: entry too large")

	// I/O
	ErrAppendFailed  = errors.New("journal: append failed")
	ErrFileOpen      = errors.New("journal: open file failed")
	ErrRotateFailed  = errors.New("journal: rotate failed")
	ErrLoadFailed    = errors.New("journal: load failed")
	ErrReclaimFailed = errors.New("journal: reclaim failed")
	ErrCloseFailed   = errors.New("journal: close failed")
)

// JournalError wraps journal failures with a stable sentinel in Err and the
// underlying failure in Cause. Both take part in errors.Is.
type JournalError struct {
	*errorutil.Coordinates

	// Op is where the error occurred: "append", "rotate", "load", etc.
	Op       string
	Entry    record.EntryType
	RecordID uint64

	Err   error
	Cause error
}

func (e *JournalError) Error() string {
	msg := "journal: " + e.Op
	if coords := e.FormatCoordinates(); coords != "" {
		msg += " " + coords
	}
	if e.Entry != 0 {
		msg += " type=" + e.Entry.String()
	}
	if e.RecordID != 0 {
		msg += fmt.Sprintf(" record=%d", e.RecordID)
	}
	msg += ": " + e.Err.Error()
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *JournalError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func (e *JournalError) CauseErr() error { return e.Cause }

func wrapErr(op string, sentinel error, fileID uint64, cause error) error {
	coords := &errorutil.Coordinates{}
	if fileID != 0 {
		coords.FileID = &fileID
	}
	return &JournalError{Coordinates: coords, Op: op, Err: sentinel, Cause: cause}
}

func entryErr(op string, sentinel error, e record.Entry, fileID uint64, cause error) error {
	coords := &errorutil.Coordinates{}
	if fileID != 0 {
		coords.FileID = &fileID
	}
	if e.Type.Transactional() {
		tx := e.TxID
		coords.TxID = &tx
	}
	return &JournalError{
		Coordinates: coords,
		Op:          op,
		Entry:       e.Type,
		RecordID:    e.ID,
		Err:         sentinel,
		Cause:       cause,
	}
}
