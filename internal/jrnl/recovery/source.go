package recovery

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
)

// FileSource lists and opens journal files for replay.
type FileSource interface {
	// FileIDs returns the ids of all journal files, ascending.
	FileIDs() []uint64
	FileName(id uint64) string
	OpenFile(id uint64) (io.ReadCloser, error)
}

// DirSource is a FileSource over the journal files a factory can see.
type DirSource struct {
	factory   sequential.Factory
	prefix    string
	extension string
	names     map[uint64]string
	ids       []uint64
}

// NewDirSource scans the factory directory for <prefix>-<id>.<ext> files.
// Names that match the pattern but carry no parsable id are skipped.
func NewDirSource(factory sequential.Factory, prefix, extension string) (*DirSource, error) {
	names, err := factory.ListFiles(prefix, extension)
	if err != nil {
		return nil, err
	}

	ds := &DirSource{
		factory:   factory,
		prefix:    prefix,
		extension: extension,
		names:     make(map[uint64]string, len(names)),
	}
	for _, name := range names {
		id, ok := ParseFileID(name, prefix, extension)
		if !ok {
			continue
		}
		ds.names[id] = name
		ds.ids = append(ds.ids, id)
	}
	sort.Slice(ds.ids, func(i, j int) bool { return ds.ids[i] < ds.ids[j] })
	return ds, nil
}

func (ds *DirSource) FileIDs() []uint64 {
	return append([]uint64(nil), ds.ids...)
}

func (ds *DirSource) FileName(id uint64) string {
	return ds.names[id]
}

func (ds *DirSource) OpenFile(id uint64) (io.ReadCloser, error) {
	name, ok := ds.names[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrFileMissing, id)
	}
	return ds.factory.OpenReader(name)
}

// ParseFileID extracts the sequence id from a journal file name.
func ParseFileID(name, prefix, extension string) (uint64, bool) {
	head, tail := prefix+"-", "."+extension
	if len(name) < len(head)+len(tail) || !strings.HasPrefix(name, head) || !strings.HasSuffix(name, tail) {
		return 0, false
	}
	digits := name[len(head) : len(name)-len(tail)]
	if len(digits) != 20 {
		return 0, false
	}
	id, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
