package record

const (
	FrameLenSize  = 4 // length prefix
	FrameTypeSize = 1 // type tag
	FrameCRCSize  = 4 // trailing CRC32-C
	FrameOverhead = FrameLenSize + FrameTypeSize + FrameCRCSize

	MaxFrameLen = 16 * 1024 * 1024 // type byte + payload

	IDSize       = 8 // record id (uint64)
	TxIDSize     = 8 // transaction id (uint64)
	UserTypeSize = 1
	LenFieldSize = 4 // data/extra length prefix
	CountSize    = 4 // record count in prepare/commit

	recordBodyHeader   = IDSize + UserTypeSize + LenFieldSize
	txRecordBodyHeader = TxIDSize + recordBodyHeader

	// MaxDataSize bounds a record body so the largest entry still fits a frame.
	MaxDataSize = MaxFrameLen - FrameTypeSize - txRecordBodyHeader
)

// ValidateFrameLength checks a declared frame length against its bounds.
func ValidateFrameLength(length uint32) error {
	if length < 1 {
		return &ParseError{
			Kind:        KindInvalidLength,
			DeclaredLen: length,
			Err:         ErrInvalidLength,
		}
	}

	if length > MaxFrameLen {
		return &ParseError{
			Kind:        KindTooLarge,
			DeclaredLen: length,
			Want:        MaxFrameLen,
			Have:        int(length),
			Err:         ErrTooLarge,
		}
	}
	return nil
}

// minPayloadLen is the smallest well-formed payload of each entry type.
func minPayloadLen(t EntryType) int {
	switch t {
	case EntryTypeAdd, EntryTypeUpdate:
		return recordBodyHeader
	case EntryTypeDelete:
		return IDSize
	case EntryTypeAddTx, EntryTypeUpdateTx:
		return txRecordBodyHeader
	case EntryTypeDeleteTx:
		return TxIDSize + IDSize
	case EntryTypePrepare:
		return TxIDSize + CountSize + LenFieldSize
	case EntryTypeCommit:
		return TxIDSize + CountSize
	case EntryTypeRollback:
		return TxIDSize
	default:
		return 0
	}
}

// ValidateFrame checks the type and payload size of a frame before encoding.
func ValidateFrame(t EntryType, payload []byte) error {
	if err := ValidateFrameLength(uint32(len(payload)) + 1); err != nil { //nolint:gosec
		return err
	}
	if !t.Valid() {
		return &ParseError{
			Kind:      KindInvalidType,
			RawType:   byte(t),
			EntryType: t,
			Err:       ErrInvalidType,
		}
	}
	if want := minPayloadLen(t); len(payload) < want {
		return &ParseError{
			Kind:      KindInvalidLength,
			EntryType: t,
			Want:      want,
			Have:      len(payload),
			Err:       ErrInvalidLength,
		}
	}
	return nil
}

// EncodedFrameSize is the on-disk size of a frame carrying payloadLen bytes.
func EncodedFrameSize(payloadLen int) int64 {
	return FrameOverhead + int64(payloadLen)
}
