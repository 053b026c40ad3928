package record

import (
	"encoding/binary"
	"io"
)

// EncodeFrame frames payload as [len u32][type u8][payload][crc u32].
func EncodeFrame(t EntryType, payload []byte) ([]byte, error) {
	if err := ValidateFrame(t, payload); err != nil {
		return nil, err
	}
	frameLen := uint32(len(payload)) + FrameTypeSize //nolint:gosec

	data := make([]byte, FrameLenSize+frameLen+FrameCRCSize)
	binary.LittleEndian.PutUint32(data[:FrameLenSize], frameLen)
	data[FrameLenSize] = byte(t)
	copy(data[FrameLenSize+FrameTypeSize:], payload)

	crc := ComputeChecksum(data[FrameLenSize : FrameLenSize+frameLen])
	binary.LittleEndian.PutUint32(data[FrameLenSize+frameLen:], crc)

	return data, nil
}

// DecodeFrame decodes exactly one frame from data.
func DecodeFrame(data []byte) (FramedEntry, error) {
	if len(data) < FrameLenSize+FrameCRCSize {
		return FramedEntry{}, &ParseError{
			Kind: KindTruncated,
			Want: FrameLenSize + FrameCRCSize,
			Have: len(data),
			Err:  io.ErrUnexpectedEOF,
		}
	}

	frameLen := binary.LittleEndian.Uint32(data[:FrameLenSize])
	if err := ValidateFrameLength(frameLen); err != nil {
		return FramedEntry{}, err
	}

	wantTotal := FrameLenSize + int(frameLen) + FrameCRCSize
	if len(data) < wantTotal {
		return FramedEntry{}, &ParseError{
			Kind:        KindTruncated,
			DeclaredLen: frameLen,
			Want:        wantTotal,
			Have:        len(data),
			Err:         io.ErrUnexpectedEOF,
		}
	}
	if len(data) != wantTotal {
		return FramedEntry{}, &ParseError{
			Kind:        KindCorrupt,
			DeclaredLen: frameLen,
			Want:        wantTotal,
			Have:        len(data),
			Err:         ErrCorrupt,
		}
	}

	return parseBody(0, frameLen, data[FrameLenSize:])
}

// parseBody validates the [type][payload][crc] part of a frame starting at
// offset.
func parseBody(offset int64, frameLen uint32, body []byte) (FramedEntry, error) {
	rawType := body[0]
	t := EntryType(rawType)
	if !t.Valid() {
		return FramedEntry{}, &ParseError{
			Kind:               KindInvalidType,
			Offset:             offset,
			SafeTruncateOffset: offset,
			DeclaredLen:        frameLen,
			RawType:            rawType,
			EntryType:          t,
			Err:                ErrInvalidType,
		}
	}

	fe := FramedEntry{
		Offset: offset,
		Size:   int64(FrameLenSize + frameLen + FrameCRCSize),
		Frame: Frame{
			Len:     frameLen,
			Type:    t,
			Payload: body[FrameTypeSize:frameLen],
			CRC:     binary.LittleEndian.Uint32(body[frameLen : frameLen+FrameCRCSize]),
		},
	}

	if !VerifyChecksum(&fe.Frame) {
		return FramedEntry{}, &ParseError{
			Kind:               KindChecksumMismatch,
			Offset:             offset,
			SafeTruncateOffset: offset,
			DeclaredLen:        frameLen,
			RawType:            rawType,
			EntryType:          t,
			Err:                ErrChecksumMismatch,
		}
	}
	return fe, nil
}
