package recovery_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
	"github.com/julianstephens/jrnl/internal/jrnl/record"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
	"github.com/julianstephens/jrnl/internal/testutil"
)

func TestParseFileID(t *testing.T) {
	id, ok := recovery.ParseFileID("jrnl-00000000000000000042.jrn", "jrnl", "jrn")
	tst.AssertTrue(t, ok, "expected id")
	tst.AssertEqual(t, id, uint64(42), "id")

	for _, bad := range []string{
		"jrnl-42.jrn",
		"jrnl-0000000000000000004x.jrn",
		"other-00000000000000000042.jrn",
		"jrnl-00000000000000000042.tmp",
		"j",
	} {
		_, ok := recovery.ParseFileID(bad, "jrnl", "jrn")
		tst.AssertFalse(t, ok, "expected no id for "+bad)
	}
}

func TestDirSource_ReplaysDirectory(t *testing.T) {
	dir := t.TempDir()
	files, err := testutil.NewSequence().
		Add(1, 0, []byte("a")).
		NextFile().
		Update(1, 0, []byte("b")).
		Build()
	tst.RequireNoError(t, err)

	for id, data := range files {
		name := filepath.Join(dir, testutil.JournalFileName("jrnl", "jrn", id))
		tst.RequireNoError(t, os.WriteFile(name, data, 0o600))
	}
	// Neither of these belongs to the journal.
	tst.RequireNoError(t, os.WriteFile(filepath.Join(dir, "jrnl-abc.jrn"), []byte("x"), 0o600))
	tst.RequireNoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	factory := sequential.NewSyncFactory(dir, sequential.DefaultConfig(), nil)
	src, err := recovery.NewDirSource(factory, "jrnl", "jrn")
	tst.RequireNoError(t, err)
	tst.AssertDeepEqual(t, src.FileIDs(), []uint64{1, 2})
	tst.AssertEqual(t, src.FileName(2), "jrnl-00000000000000000002.jrn", "name")

	cb := testutil.NewRecordingLoader()
	res, err := recovery.Replay(src, cb, nil, nil)
	tst.RequireNoError(t, err)
	tst.AssertDeepEqual(t, cb.Trace(), []string{"add:1", "update:1"})
	tst.AssertFalse(t, res.Damaged(), "damaged")
	tst.AssertEqual(t, res.Files[1].ValidBytes, int64(len(files[2])), "valid bytes")

	_, err = src.OpenFile(9)
	tst.AssertTrue(t, errors.Is(err, recovery.ErrFileMissing), "expected ErrFileMissing")
}

func TestDirSource_MissingDirectory(t *testing.T) {
	factory := sequential.NewSyncFactory(filepath.Join(t.TempDir(), "absent"), sequential.DefaultConfig(), nil)
	_, err := recovery.NewDirSource(factory, "jrnl", "jrn")
	tst.AssertTrue(t, errors.Is(err, sequential.ErrOpen), "expected ErrOpen")
}

func TestDirSource_HeaderMatchesName(t *testing.T) {
	dir := t.TempDir()
	data, err := testutil.FileImage(5, record.AddEntry(1, 0, nil))
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, os.WriteFile(filepath.Join(dir, testutil.JournalFileName("jrnl", "jrn", 1)), data, 0o600))

	src, err := recovery.NewDirSource(sequential.NewSyncFactory(dir, sequential.DefaultConfig(), nil), "jrnl", "jrn")
	tst.RequireNoError(t, err)

	res, err := recovery.Replay(src, recovery.NopLoader{}, nil, nil)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, res.Files[0].Tail, recovery.TailStatusCorrupt, "tail")
	tst.AssertTrue(t, errors.Is(res.Files[0].TailErr, record.ErrBadHeader), "expected ErrBadHeader")
}
