package journal_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
	"github.com/julianstephens/jrnl/internal/jrnl"
	"github.com/julianstephens/jrnl/internal/jrnl/journal"
	"github.com/julianstephens/jrnl/internal/jrnl/reclaim"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
	"github.com/julianstephens/jrnl/internal/testutil"
)

func fileExists(t *testing.T, dir string, id uint64) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, testutil.JournalFileName("jrnl", "jrn", id)))
	return err == nil
}

func TestReclaim_RequiresLoad(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.New(jrnl.DefaultOptions(dir), newFactory(t, dir, sequential.BackendSync), nil)
	tst.RequireNoError(t, err)

	_, err = j.Reclaim()
	tst.AssertTrue(t, errors.Is(err, journal.ErrNotLoaded), "expected ErrNotLoaded")
}

func TestReclaim_DeletedRecordsFreeTheirFile(t *testing.T) {
	dir := t.TempDir()
	j, _, _ := openJournal(t, dir, sequential.BackendSync, smallFiles)

	payload := bytes.Repeat([]byte{1}, 100)
	for id := uint64(1); id <= 9; id++ {
		tst.RequireNoError(t, j.AppendAddRecord(id, 0, payload, false))
	}
	tst.AssertDeepEqual(t, j.FileIDs(), []uint64{1, 2})

	removed, err := j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(removed), 0, "live records pin file 1")

	for id := uint64(1); id <= 8; id++ {
		tst.RequireNoError(t, j.AppendDeleteRecord(id, false))
	}

	removed, err = j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertDeepEqual(t, removed, []uint64{1})
	tst.AssertDeepEqual(t, j.FileIDs(), []uint64{2})
	tst.AssertFalse(t, fileExists(t, dir, 1), "file 1 removed")
	tst.RequireNoError(t, j.Stop())

	cb, res := reload(t, dir, sequential.BackendSync, smallFiles)
	tst.AssertEqual(t, cb.Count("add"), 1, "adds")
	tst.AssertEqual(t, cb.Count("delete"), 8, "orphan deletes are still reported")
	tst.AssertEqual(t, res.Files[0].FileID, uint64(2), "first file")
}

func TestReclaim_CommitKeepsOperationFiles(t *testing.T) {
	dir := t.TempDir()
	j, _, _ := openJournal(t, dir, sequential.BackendSync, smallFiles)

	small := bytes.Repeat([]byte{2}, 100)
	big := bytes.Repeat([]byte{3}, 600)

	for id := uint64(1); id <= 3; id++ {
		tst.RequireNoError(t, j.AppendAddRecordTransactional(5, id, 0, small))
	}
	// Pushes the commit into file 2.
	tst.RequireNoError(t, j.AppendAddRecord(100, 0, big, false))
	tst.RequireNoError(t, j.AppendCommitRecord(5, true))
	tst.AssertDeepEqual(t, j.FileIDs(), []uint64{1, 2})

	for _, id := range []uint64{1, 2, 3, 100} {
		tst.RequireNoError(t, j.AppendDeleteRecord(id, false))
	}

	usage := j.Usage()
	tst.AssertEqual(t, usage[0].Pins, 0, "file 1 unpinned")
	tst.AssertEqual(t, usage[0].RequiredBy, uint64(2), "file 1 required by commit")

	removed, err := j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(removed), 0, "commit file still present")

	tst.RequireNoError(t, j.AppendAddRecord(200, 0, big, true))
	tst.AssertDeepEqual(t, j.FileIDs(), []uint64{1, 2, 3})

	removed, err = j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertDeepEqual(t, removed, []uint64{1, 2})
	tst.RequireNoError(t, j.Stop())

	cb, res := reload(t, dir, sequential.BackendSync, smallFiles)
	tst.AssertDeepEqual(t, cb.Trace(), []string{"add:200"})
	tst.AssertEqual(t, res.Failed, 0, "no failed transactions")
}

func TestReclaim_OpenTransactionPins(t *testing.T) {
	dir := t.TempDir()
	j, _, _ := openJournal(t, dir, sequential.BackendSync, smallFiles)
	defer func() { _ = j.Stop() }()

	big := bytes.Repeat([]byte{4}, 600)
	tst.RequireNoError(t, j.AppendAddRecordTransactional(9, 1, 0, nil))
	tst.RequireNoError(t, j.AppendAddRecord(2, 0, big, false))
	tst.RequireNoError(t, j.AppendDeleteRecord(2, false))
	tst.RequireNoError(t, j.AppendAddRecord(3, 0, big, false))
	tst.RequireNoError(t, j.AppendDeleteRecord(3, false))
	tst.RequireNoError(t, j.AppendAddRecord(4, 0, big, false))
	tst.AssertDeepEqual(t, j.FileIDs(), []uint64{1, 2, 3})

	removed, err := j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(removed), 0, "open transaction pins file 1")

	tst.RequireNoError(t, j.AppendRollbackRecord(9, false))
	removed, err = j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertDeepEqual(t, removed, []uint64{1, 2})
}

func TestReclaim_PinsRebuiltByLoad(t *testing.T) {
	dir := t.TempDir()
	j, _, _ := openJournal(t, dir, sequential.BackendSync, smallFiles)
	tst.RequireNoError(t, j.AppendAddRecord(1, 0, nil, true))
	tst.RequireNoError(t, j.AppendAddRecord(2, 0, nil, true))
	tst.RequireNoError(t, j.Stop())

	j, _, _ = openJournal(t, dir, sequential.BackendSync, smallFiles)
	removed, err := j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(removed), 0, "reloaded records pin file 1")

	tst.RequireNoError(t, j.AppendDeleteRecord(1, false))
	tst.RequireNoError(t, j.AppendDeleteRecord(2, true))
	removed, err = j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertDeepEqual(t, removed, []uint64{1})
	tst.RequireNoError(t, j.Stop())
}

type everything struct{}

func (everything) Reclaimable(files []reclaim.FileUsage) int { return len(files) }

func TestReclaim_NeverRemovesActiveFile(t *testing.T) {
	dir := t.TempDir()
	j, _, _ := openJournal(t, dir, sequential.BackendSync, smallFiles)
	defer func() { _ = j.Stop() }()
	j.SetReclaimer(everything{})

	removed, err := j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(removed), 0, "removed")
	tst.AssertTrue(t, fileExists(t, dir, 1), "active file kept")
}

func TestReclaim_SkipsPinnedFilesEvenWhenAsked(t *testing.T) {
	dir := t.TempDir()
	j, _, _ := openJournal(t, dir, sequential.BackendSync, smallFiles)
	defer func() { _ = j.Stop() }()
	j.SetReclaimer(everything{})

	tst.RequireNoError(t, j.AppendAddRecord(1, 0, bytes.Repeat([]byte{5}, 982), false))
	tst.RequireNoError(t, j.AppendAddRecord(2, 0, nil, false))
	tst.AssertDeepEqual(t, j.FileIDs(), []uint64{1, 2})

	removed, err := j.Reclaim()
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(removed), 0, "removed")
}
