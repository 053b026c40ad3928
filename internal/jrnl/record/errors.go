package record

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrTruncated        = errors.New("record: truncated")
	ErrCorrupt          = errors.New("record: corrupt")
	ErrTooLarge         = errors.New("record: too large")
	ErrInvalidType      = errors.New("record: invalid type")
	ErrInvalidLength    = errors.New("record: invalid length (must be > 0)")
	ErrChecksumMismatch = errors.New("record: checksum mismatch")
	ErrBadHeader        = errors.New("record: bad file header")
)

type ParseErrorKind uint8

const (
	KindTruncated ParseErrorKind = iota
	KindInvalidLength
	KindTooLarge
	KindChecksumMismatch
	KindInvalidType
	KindCorrupt
	KindBadHeader
	KindIO
)

func (k ParseErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindInvalidLength:
		return "invalid_length"
	case KindTooLarge:
		return "too_large"
	case KindInvalidType:
		return "invalid_type"
	case KindChecksumMismatch:
		return "checksum_mismatch"
	case KindCorrupt:
		return "corrupt"
	case KindBadHeader:
		return "bad_header"
	case KindIO:
		return "io_error"
	default:
		return "unknown"
	}
}

// ParseError describes why a journal file stops yielding valid entries.
type ParseError struct {
	Kind ParseErrorKind
	// Offset is the file offset of the failing entry's length prefix.
	Offset int64
	// SafeTruncateOffset is where the file may be cut to drop the invalid
	// tail; for entry failures it equals Offset.
	SafeTruncateOffset int64
	DeclaredLen        uint32
	RawType            byte
	EntryType          EntryType
	Want               int
	Have               int
	Err                error
}

func (e *ParseError) Error() string {
	cause := "<nil>"
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return fmt.Sprintf("record parse error kind=%s offset=%d safe=%d len=%d type=0x%02x want=%d have=%d: %s",
		e.Kind.String(), e.Offset, e.SafeTruncateOffset, e.DeclaredLen, e.RawType, e.Want, e.Have, cause)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrTruncated:
		return e.Kind == KindTruncated
	case ErrInvalidLength:
		return e.Kind == KindInvalidLength
	case ErrTooLarge:
		return e.Kind == KindTooLarge
	case ErrInvalidType:
		return e.Kind == KindInvalidType
	case ErrChecksumMismatch:
		return e.Kind == KindChecksumMismatch
	case ErrCorrupt:
		return e.Kind == KindCorrupt
	case ErrBadHeader:
		return e.Kind == KindBadHeader
	}
	return false
}

func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func IsCleanEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

func IsTruncation(err error) bool {
	return errors.Is(err, ErrTruncated)
}

func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorrupt) || errors.Is(err, ErrInvalidLength) || errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrInvalidType) || errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrBadHeader)
}

var (
	ErrCodecTruncated = errors.New("record: codec truncated payload")
	ErrCodecCorrupt   = errors.New("record: codec corrupt payload")
	ErrCodecInvalid   = errors.New("record: codec invalid payload")
)

type CodecErrorKind uint8

const (
	CodecTruncated CodecErrorKind = iota
	CodecCorrupt
	CodecInvalid
)

func (k CodecErrorKind) String() string {
	switch k {
	case CodecTruncated:
		return "truncated"
	case CodecCorrupt:
		return "corrupt"
	case CodecInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// CodecError reports a malformed entry payload.
type CodecError struct {
	Kind  CodecErrorKind
	Field string // "tx_id", "data_len", "extra_len", ...
	At    int    // byte offset within the payload
	Want  int
	Have  int
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("record: codec %s field=%s at=%d want=%d have=%d: %v",
		e.Kind.String(), e.Field, e.At, e.Want, e.Have, e.Err,
	)
}

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Is(target error) bool {
	switch target {
	case ErrCodecTruncated:
		return e.Kind == CodecTruncated
	case ErrCodecCorrupt:
		return e.Kind == CodecCorrupt
	case ErrCodecInvalid:
		return e.Kind == CodecInvalid
	default:
		return false
	}
}
