package record

import "io"

// Reader streams decoded entries from one journal file body, positioned
// just past the file header.
type Reader struct {
	frames *FrameReader
}

// NewReader wraps r, whose first byte is at file offset HeaderSize.
func NewReader(r io.Reader) *Reader {
	return &Reader{frames: NewFrameReaderAt(r, HeaderSize)}
}

// Next returns the next entry with its frame. A malformed payload inside a
// checksummed frame is reported as a KindCorrupt ParseError at the frame's
// offset, so callers handle every bad entry the same way.
func (r *Reader) Next() (Entry, FramedEntry, error) {
	fe, err := r.frames.Next()
	if err != nil {
		return Entry{}, FramedEntry{}, err
	}

	e, err := DecodePayload(fe.Frame.Type, fe.Frame.Payload)
	if err != nil {
		return Entry{}, FramedEntry{}, &ParseError{
			Kind:               KindCorrupt,
			Offset:             fe.Offset,
			SafeTruncateOffset: fe.Offset,
			DeclaredLen:        fe.Frame.Len,
			RawType:            byte(fe.Frame.Type),
			EntryType:          fe.Frame.Type,
			Err:                err,
		}
	}
	return e, fe, nil
}

// Offset is the file offset just past the last entry returned.
func (r *Reader) Offset() int64 {
	return r.frames.Offset()
}
