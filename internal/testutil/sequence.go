package testutil

import (
	"github.com/julianstephens/jrnl/internal/jrnl/record"
)

// Sequence builds journal file images entry by entry. Entries land in the
// current file until NextFile is called.
type Sequence struct {
	files   [][]record.Entry
	firstID uint64
}

// NewSequence starts a sequence whose first file has id 1.
func NewSequence() *Sequence {
	return &Sequence{files: [][]record.Entry{nil}, firstID: 1}
}

// StartingAt changes the id of the first file.
func (s *Sequence) StartingAt(id uint64) *Sequence {
	s.firstID = id
	return s
}

func (s *Sequence) push(e record.Entry) *Sequence {
	last := len(s.files) - 1
	s.files[last] = append(s.files[last], e)
	return s
}

func (s *Sequence) NextFile() *Sequence {
	s.files = append(s.files, nil)
	return s
}

func (s *Sequence) Add(id uint64, userType byte, data []byte) *Sequence {
	return s.push(record.AddEntry(id, userType, data))
}

func (s *Sequence) Update(id uint64, userType byte, data []byte) *Sequence {
	return s.push(record.UpdateEntry(id, userType, data))
}

func (s *Sequence) Delete(id uint64) *Sequence {
	return s.push(record.DeleteEntry(id))
}

func (s *Sequence) AddTx(txID, id uint64, userType byte, data []byte) *Sequence {
	return s.push(record.AddTxEntry(txID, id, userType, data))
}

func (s *Sequence) UpdateTx(txID, id uint64, userType byte, data []byte) *Sequence {
	return s.push(record.UpdateTxEntry(txID, id, userType, data))
}

func (s *Sequence) DeleteTx(txID, id uint64) *Sequence {
	return s.push(record.DeleteTxEntry(txID, id))
}

func (s *Sequence) Prepare(txID uint64, numRecords uint32, extra []byte) *Sequence {
	return s.push(record.PrepareEntry(txID, numRecords, extra))
}

func (s *Sequence) Commit(txID uint64, numRecords uint32) *Sequence {
	return s.push(record.CommitEntry(txID, numRecords))
}

func (s *Sequence) Rollback(txID uint64) *Sequence {
	return s.push(record.RollbackEntry(txID))
}

// Build encodes every file, header included, keyed by file id.
func (s *Sequence) Build() (map[uint64][]byte, error) {
	out := make(map[uint64][]byte, len(s.files))
	for i, entries := range s.files {
		id := s.firstID + uint64(i) //nolint:gosec
		data, err := FileImage(id, entries...)
		if err != nil {
			return nil, err
		}
		out[id] = data
	}
	return out, nil
}

// Source builds the sequence into a MemSource.
func (s *Sequence) Source() (*MemSource, error) {
	files, err := s.Build()
	if err != nil {
		return nil, err
	}
	src := NewMemSource()
	for id, data := range files {
		src.AddFile(id, data)
	}
	return src, nil
}

// FileImage encodes a header for id followed by entries.
func FileImage(id uint64, entries ...record.Entry) ([]byte, error) {
	data := record.EncodeFileHeader(id)
	for _, e := range entries {
		encoded, err := record.EncodeEntry(e)
		if err != nil {
			return nil, err
		}
		data = append(data, encoded...)
	}
	return data, nil
}
