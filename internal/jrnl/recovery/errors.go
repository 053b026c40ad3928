package recovery

import (
	"errors"
	"fmt"

	"github.com/julianstephens/jrnl/internal/jrnl/errorutil"
	"github.com/julianstephens/jrnl/internal/jrnl/record"
)

var (
	ErrFileOrder   = errors.New("recovery: journal files not consecutive")
	ErrFileOpen    = errors.New("recovery: failed to open journal file")
	ErrFileRead    = errors.New("recovery: failed to read journal file")
	ErrFileMissing = errors.New("recovery: journal file missing")
	ErrCallback    = errors.New("recovery: loader callback failed")

	// ErrInDoubtTransaction marks a prepared transaction left unresolved by
	// the log. Load reports these through AddPreparedTransaction; the
	// sentinel lets callers surface them as errors of their own.
	ErrInDoubtTransaction = errors.New("recovery: in-doubt prepared transaction")
)

type ReplaySourceErrorKind int

const (
	ReplaySourceUnknown ReplaySourceErrorKind = iota
	ReplaySourceFileOrder
	ReplaySourceFileOpen
	ReplaySourceFileRead
)

func (k ReplaySourceErrorKind) String() string {
	switch k {
	case ReplaySourceFileOrder:
		return "file_order"
	case ReplaySourceFileOpen:
		return "file_open"
	case ReplaySourceFileRead:
		return "file_read"
	default:
		return "unknown"
	}
}

// ReplaySourceError halts a load because the journal files themselves could
// not be enumerated or read.
type ReplaySourceError struct {
	*errorutil.Coordinates
	Kind  ReplaySourceErrorKind
	Cause error
	Err   error
}

func (e *ReplaySourceError) Error() string {
	return fmt.Sprintf("recovery: source error %s kind=%s: %v (cause: %v)",
		e.FormatCoordinates(), e.Kind, e.Err, e.Cause,
	)
}

func (e *ReplaySourceError) Unwrap() error {
	return e.Err
}

type ReplayLogicErrorKind int

const (
	ReplayLogicUnknown ReplayLogicErrorKind = iota
	ReplayLogicCallback
)

// ReplayLogicError halts a load because a LoaderCallback rejected an event.
type ReplayLogicError struct {
	*errorutil.Coordinates
	Kind      ReplayLogicErrorKind
	EntryType record.EntryType
	// Method is the LoaderCallback method that failed.
	Method string
	Cause  error
	Err    error
}

func (e *ReplayLogicError) Error() string {
	return fmt.Sprintf("recovery: %s %s type=%s: %v (cause: %v)",
		e.Method, e.FormatCoordinates(), e.EntryType, e.Err, e.Cause,
	)
}

func (e *ReplayLogicError) Unwrap() error { return e.Err }

// CallbackCause returns the error the LoaderCallback returned.
func (e *ReplayLogicError) CallbackCause() error { return e.Cause }
