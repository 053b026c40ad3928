package record

import "github.com/julianstephens/go-utils/checksum"

// ComputeChecksum computes the CRC32-C (Castagnoli) checksum of data.
func ComputeChecksum(data []byte) uint32 {
	return checksum.CRC32C(data)
}

// VerifyChecksum checks the CRC of a frame, computed over its type byte and
// payload.
func VerifyChecksum(frame *Frame) bool {
	if frame == nil {
		return false
	}
	return checksum.VerifyCRC32C(checksummed(frame.Type, frame.Payload), frame.CRC)
}

// UpdateChecksum recomputes frame.CRC from its type and payload.
func UpdateChecksum(frame *Frame) {
	if frame == nil {
		return
	}
	frame.CRC = ComputeChecksum(checksummed(frame.Type, frame.Payload))
}

func checksummed(t EntryType, payload []byte) []byte {
	data := make([]byte, 1+len(payload))
	data[0] = byte(t)
	copy(data[1:], payload)
	return data
}
