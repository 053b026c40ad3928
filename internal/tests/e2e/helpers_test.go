package e2e_test

import (
	"encoding/binary"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
	"github.com/julianstephens/jrnl/internal/jrnl"
	"github.com/julianstephens/jrnl/internal/jrnl/journal"
	"github.com/julianstephens/jrnl/internal/jrnl/memtable"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
)

var backends = []sequential.Backend{sequential.BackendSync, sequential.BackendAsync}

func factoryConfig(backend sequential.Backend) sequential.Config {
	cfg := sequential.DefaultConfig()
	cfg.Backend = backend
	return cfg
}

// openJournal starts a journal over dir and loads it into cb.
func openJournal(t *testing.T, dir string, cfg sequential.Config, fileSize int64, cb recovery.LoaderCallback) (*journal.Journal, *recovery.Result) {
	t.Helper()
	f, err := sequential.NewFactory(dir, cfg, nil)
	tst.RequireNoError(t, err)

	opts := jrnl.DefaultOptions(dir)
	if fileSize > 0 {
		opts.FileSize = fileSize
	}
	j, err := journal.New(opts, f, nil)
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, j.Start())

	res, err := j.Load(cb)
	tst.RequireNoError(t, err)
	return j, res
}

// loadTable loads dir into a fresh memtable and stops the journal again.
func loadTable(t *testing.T, dir string, cfg sequential.Config) (*memtable.Table, *recovery.Result) {
	t.Helper()
	tbl := memtable.New()
	j, res := openJournal(t, dir, cfg, 0, tbl)
	tst.RequireNoError(t, j.Stop())
	return tbl, res
}

// payloadFor encodes id into a payload of size bytes (at least 8) so a load
// can check every record came back with its own body.
func payloadFor(id uint64, size int) []byte {
	if size < 8 {
		size = 8
	}
	p := make([]byte, size)
	binary.LittleEndian.PutUint64(p, id)
	for i := 8; i < size; i++ {
		p[i] = byte(id + uint64(i)) //nolint:gosec
	}
	return p
}

func payloadMatches(id uint64, p []byte) bool {
	if len(p) < 8 || binary.LittleEndian.Uint64(p) != id {
		return false
	}
	for i := 8; i < len(p); i++ {
		if p[i] != byte(id+uint64(i)) { //nolint:gosec
			return false
		}
	}
	return true
}
