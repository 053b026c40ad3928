package record

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	HeaderMagic   = "JRNL"
	HeaderVersion = uint16(1)
	// HeaderSize is magic(4) + version(2) + reserved(2) + file id(8) + crc(4).
	HeaderSize = 20
)

// FileHeader opens every journal file and binds it to its sequence id.
type FileHeader struct {
	Version uint16
	FileID  uint64
}

// EncodeFileHeader returns the header bytes for file id.
func EncodeFileHeader(fileID uint64) []byte {
	data := make([]byte, HeaderSize)
	copy(data[0:4], HeaderMagic)
	binary.LittleEndian.PutUint16(data[4:6], HeaderVersion)
	binary.LittleEndian.PutUint64(data[8:16], fileID)
	binary.LittleEndian.PutUint32(data[16:20], ComputeChecksum(data[:16]))
	return data
}

// DecodeFileHeader validates and parses a header.
func DecodeFileHeader(data []byte) (FileHeader, error) {
	if len(data) < HeaderSize {
		return FileHeader{}, &ParseError{
			Kind: KindTruncated,
			Want: HeaderSize,
			Have: len(data),
			Err:  io.ErrUnexpectedEOF,
		}
	}
	if !bytes.Equal(data[0:4], []byte(HeaderMagic)) {
		return FileHeader{}, &ParseError{Kind: KindBadHeader, Err: ErrBadHeader}
	}
	if ComputeChecksum(data[:16]) != binary.LittleEndian.Uint32(data[16:20]) {
		return FileHeader{}, &ParseError{Kind: KindBadHeader, Err: ErrChecksumMismatch}
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != HeaderVersion {
		return FileHeader{}, &ParseError{
			Kind: KindBadHeader,
			Want: int(HeaderVersion),
			Have: int(version),
			Err:  ErrBadHeader,
		}
	}
	return FileHeader{
		Version: version,
		FileID:  binary.LittleEndian.Uint64(data[8:16]),
	}, nil
}

// ReadFileHeader reads and decodes the header at the start of r.
func ReadFileHeader(r io.Reader) (FileHeader, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return FileHeader{}, &ParseError{
				Kind: KindTruncated,
				Want: HeaderSize,
				Have: n,
				Err:  io.ErrUnexpectedEOF,
			}
		}
		return FileHeader{}, &ParseError{Kind: KindIO, Err: err}
	}
	return DecodeFileHeader(buf)
}
