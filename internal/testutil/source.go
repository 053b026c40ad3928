package testutil

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// MemSource is an in-memory recovery.FileSource.
type MemSource struct {
	Files     map[uint64][]byte
	OpenErr   map[uint64]error
	ReadErr   map[uint64]error
	Closed    map[uint64]bool
	Prefix    string
	Extension string
}

func NewMemSource() *MemSource {
	return &MemSource{
		Files:     make(map[uint64][]byte),
		OpenErr:   make(map[uint64]error),
		ReadErr:   make(map[uint64]error),
		Closed:    make(map[uint64]bool),
		Prefix:    "test",
		Extension: "jrn",
	}
}

// AddFile registers raw file bytes under id.
func (m *MemSource) AddFile(id uint64, data []byte) {
	m.Files[id] = data
}

func (m *MemSource) SetOpenError(id uint64, err error) {
	m.OpenErr[id] = err
}

// SetReadError makes reads of file id fail with err once its bytes run out.
func (m *MemSource) SetReadError(id uint64, err error) {
	m.ReadErr[id] = err
}

func (m *MemSource) FileIDs() []uint64 {
	ids := make([]uint64, 0, len(m.Files))
	for id := range m.Files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemSource) FileName(id uint64) string {
	return JournalFileName(m.Prefix, m.Extension, id)
}

// JournalFileName renders the on-disk name of journal file id.
func JournalFileName(prefix, ext string, id uint64) string {
	return fmt.Sprintf("%s-%020d.%s", prefix, id, ext)
}

func (m *MemSource) OpenFile(id uint64) (io.ReadCloser, error) {
	if err := m.OpenErr[id]; err != nil {
		return nil, err
	}
	data, ok := m.Files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return &readerAdapter{data: data, readErr: m.ReadErr[id], onClose: func() { m.Closed[id] = true }}, nil
}

// readerAdapter serves a byte slice, optionally failing once it runs out
// with readErr instead of io.EOF.
type readerAdapter struct {
	data    []byte
	pos     int
	readErr error
	onClose func()
}

func (r *readerAdapter) Read(b []byte) (int, error) {
	if r.pos >= len(r.data) {
		if r.readErr != nil {
			return 0, r.readErr
		}
		return 0, io.EOF
	}
	n := copy(b, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *readerAdapter) Close() error {
	if r.onClose != nil {
		r.onClose()
	}
	return nil
}
