package record

import (
	"encoding/binary"
	"fmt"
)

func need(data []byte, at, want int, field string) error {
	if at < 0 {
		at = 0
	}
	have := len(data) - at
	if have >= want {
		return nil
	}
	return &CodecError{
		Kind:  CodecTruncated,
		Field: field,
		At:    at,
		Want:  want,
		Have:  have,
		Err:   ErrCodecTruncated,
	}
}

func u32le(data []byte, at int, field string) (uint32, error) {
	if err := need(data, at, 4, field); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data[at : at+4]), nil
}

func u64le(data []byte, at int, field string) (uint64, error) {
	if err := need(data, at, 8, field); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data[at : at+8]), nil
}

func rejectTrailing(data []byte, expectedLen int, field string) error {
	if len(data) == expectedLen {
		return nil
	}
	return &CodecError{
		Kind:  CodecCorrupt,
		Field: field,
		At:    expectedLen,
		Want:  expectedLen,
		Have:  len(data),
		Err:   fmt.Errorf("%w: trailing bytes", ErrCodecCorrupt),
	}
}

func tooLong(field string, max, have int) error {
	return &CodecError{
		Kind:  CodecInvalid,
		Field: field,
		Want:  max,
		Have:  have,
		Err:   ErrCodecInvalid,
	}
}

// EncodePayload serialises the fields of e that its type carries.
//
//	add/update:       [id 8][user_type 1][data_len 4][data]
//	delete:           [id 8]
//	add_tx/update_tx: [tx_id 8][id 8][user_type 1][data_len 4][data]
//	delete_tx:        [tx_id 8][id 8]
//	prepare:          [tx_id 8][num_records 4][extra_len 4][extra]
//	commit:           [tx_id 8][num_records 4]
//	rollback:         [tx_id 8]
func EncodePayload(e Entry) ([]byte, error) {
	if !e.Type.Valid() {
		return nil, &CodecError{Kind: CodecInvalid, Field: "type", Have: int(e.Type), Err: ErrCodecInvalid}
	}
	if len(e.Data) > MaxDataSize {
		return nil, tooLong("data_len", MaxDataSize, len(e.Data))
	}

	le := binary.LittleEndian
	data := make([]byte, 0, minPayloadLen(e.Type)+len(e.Data))

	if e.Type.Transactional() {
		data = le.AppendUint64(data, e.TxID)
	}

	switch e.Type {
	case EntryTypeAdd, EntryTypeUpdate, EntryTypeAddTx, EntryTypeUpdateTx:
		data = le.AppendUint64(data, e.ID)
		data = append(data, e.UserType)
		data = le.AppendUint32(data, uint32(len(e.Data))) //nolint:gosec
		data = append(data, e.Data...)
	case EntryTypeDelete, EntryTypeDeleteTx:
		data = le.AppendUint64(data, e.ID)
	case EntryTypePrepare:
		data = le.AppendUint32(data, e.NumRecords)
		data = le.AppendUint32(data, uint32(len(e.Data))) //nolint:gosec
		data = append(data, e.Data...)
	case EntryTypeCommit:
		data = le.AppendUint32(data, e.NumRecords)
	case EntryTypeRollback:
	}
	return data, nil
}

// DecodePayload parses the payload of an entry of type t. Byte slices in the
// result alias data.
func DecodePayload(t EntryType, data []byte) (Entry, error) {
	if !t.Valid() {
		return Entry{}, &CodecError{Kind: CodecInvalid, Field: "type", Have: int(t), Err: ErrCodecInvalid}
	}

	e := Entry{Type: t}
	off := 0
	var err error

	if t.Transactional() {
		if e.TxID, err = u64le(data, off, "tx_id"); err != nil {
			return Entry{}, err
		}
		off += TxIDSize
	}

	switch t {
	case EntryTypeAdd, EntryTypeUpdate, EntryTypeAddTx, EntryTypeUpdateTx:
		if e.ID, err = u64le(data, off, "id"); err != nil {
			return Entry{}, err
		}
		off += IDSize

		if err = need(data, off, UserTypeSize, "user_type"); err != nil {
			return Entry{}, err
		}
		e.UserType = data[off]
		off += UserTypeSize

		if e.Data, off, err = lenPrefixed(data, off, "data"); err != nil {
			return Entry{}, err
		}
	case EntryTypeDelete, EntryTypeDeleteTx:
		if e.ID, err = u64le(data, off, "id"); err != nil {
			return Entry{}, err
		}
		off += IDSize
	case EntryTypePrepare:
		if e.NumRecords, err = u32le(data, off, "num_records"); err != nil {
			return Entry{}, err
		}
		off += CountSize

		if e.Data, off, err = lenPrefixed(data, off, "extra"); err != nil {
			return Entry{}, err
		}
	case EntryTypeCommit:
		if e.NumRecords, err = u32le(data, off, "num_records"); err != nil {
			return Entry{}, err
		}
		off += CountSize
	case EntryTypeRollback:
	}

	if err := rejectTrailing(data, off, "payload_length"); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func lenPrefixed(data []byte, off int, field string) ([]byte, int, error) {
	n, err := u32le(data, off, field+"_len")
	if err != nil {
		return nil, off, err
	}
	off += LenFieldSize

	if n > MaxDataSize {
		return nil, off, &CodecError{
			Kind:  CodecInvalid,
			Field: field + "_len",
			At:    off - LenFieldSize,
			Want:  MaxDataSize,
			Have:  int(n),
			Err:   ErrCodecInvalid,
		}
	}
	if err := need(data, off, int(n), field); err != nil {
		return nil, off, err
	}
	return data[off : off+int(n)], off + int(n), nil
}

// EncodeEntry encodes e into a complete frame.
func EncodeEntry(e Entry) ([]byte, error) {
	payload, err := EncodePayload(e)
	if err != nil {
		return nil, err
	}
	return EncodeFrame(e.Type, payload)
}

// DecodeEntry decodes a frame produced by EncodeEntry.
func DecodeEntry(data []byte) (Entry, error) {
	fe, err := DecodeFrame(data)
	if err != nil {
		return Entry{}, err
	}
	return DecodePayload(fe.Frame.Type, fe.Frame.Payload)
}
