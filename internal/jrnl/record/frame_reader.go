package record

import (
	"encoding/binary"
	"io"
)

// FrameReader streams frames from r, tracking the absolute file offset.
type FrameReader struct {
	r      io.Reader
	offset int64
}

// NewFrameReader reads frames from r, treating its first byte as offset 0.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderAt(r, 0)
}

// NewFrameReaderAt reads frames from r whose first byte sits at base in the
// file, so reported offsets are file offsets.
func NewFrameReaderAt(r io.Reader, base int64) *FrameReader {
	return &FrameReader{r: r, offset: base}
}

// Next returns the next frame. A clean end of stream yields io.EOF; anything
// else that stops the stream yields a *ParseError.
func (fr *FrameReader) Next() (FramedEntry, error) {
	start := fr.offset

	hdr := make([]byte, FrameLenSize)
	n, err := io.ReadFull(fr.r, hdr)
	if err != nil {
		fr.offset += int64(n)
		if err == io.EOF && n == 0 {
			return FramedEntry{}, io.EOF
		}
		if err != io.ErrUnexpectedEOF && err != io.EOF {
			return FramedEntry{}, &ParseError{
				Kind: KindIO, Offset: start, SafeTruncateOffset: start, Err: err,
			}
		}
		return FramedEntry{}, &ParseError{
			Kind:               KindTruncated,
			Offset:             start,
			SafeTruncateOffset: start,
			Want:               FrameLenSize,
			Have:               n,
			Err:                io.ErrUnexpectedEOF,
		}
	}

	frameLen := binary.LittleEndian.Uint32(hdr)
	if err = ValidateFrameLength(frameLen); err != nil {
		if pe, ok := AsParseError(err); ok {
			pe.Offset = start
			pe.SafeTruncateOffset = start
			return FramedEntry{}, pe
		}
		return FramedEntry{}, err
	}

	body := make([]byte, frameLen+FrameCRCSize)
	n, err = io.ReadFull(fr.r, body)
	if err != nil {
		fr.offset += int64(FrameLenSize + n)
		kind := KindTruncated
		cause := io.ErrUnexpectedEOF
		if err != io.ErrUnexpectedEOF && err != io.EOF {
			kind, cause = KindIO, err
		}
		return FramedEntry{}, &ParseError{
			Kind:               kind,
			Offset:             start,
			SafeTruncateOffset: start,
			DeclaredLen:        frameLen,
			Want:               int(frameLen) + FrameCRCSize,
			Have:               n,
			Err:                cause,
		}
	}
	fr.offset += int64(FrameLenSize + len(body))

	return parseBody(start, frameLen, body)
}

// Offset returns the file offset of the next unread byte.
func (fr *FrameReader) Offset() int64 {
	return fr.offset
}
