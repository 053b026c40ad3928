package journal_test

import (
	"encoding/binary"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
	"github.com/julianstephens/jrnl/internal/jrnl"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

func idPayload(id uint64) []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint64(buf, id)
	return buf
}

func TestConcurrentTransactions(t *testing.T) {
	const (
		workers = 8
		txs     = 40
		txSize  = 3
	)
	withRotation := func(o *jrnl.Options) { o.FileSize = 16 * 1024 }

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			dir := t.TempDir()
			j, _, _ := openJournal(t, dir, backend, withRotation)

			ids := atomic.NewUint64(0)
			var g errgroup.Group
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					for i := 0; i < txs; i++ {
						txID := ids.Inc()
						for k := 0; k < txSize; k++ {
							id := ids.Inc()
							if err := j.AppendAddRecordTransactional(txID, id, 1, idPayload(id)); err != nil {
								return err
							}
						}
						if err := j.AppendCommitRecord(txID, true); err != nil {
							return err
						}
					}
					return nil
				})
			}
			tst.RequireNoError(t, g.Wait())
			tst.AssertTrue(t, j.Stats().Rotations > 0, "expected rotations")
			tst.RequireNoError(t, j.Stop())

			cb, res := reload(t, dir, backend, withRotation)
			tst.AssertEqual(t, cb.Count("add"), workers*txs*txSize, "adds")
			tst.AssertEqual(t, res.Committed, workers*txs, "committed")
			tst.AssertEqual(t, res.Prepared, 0, "prepared")
			tst.AssertEqual(t, res.Failed, 0, "failed")

			for _, ev := range cb.Events {
				tst.AssertEqual(t, binary.LittleEndian.Uint64(ev.Info.Data), ev.ID, "payload carries its id")
			}
		})
	}
}

func TestConcurrentNonTransactional_DebugWait(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			dir := t.TempDir()
			j, _, _ := openJournal(t, dir, backend, nil)

			ids := atomic.NewUint64(0)
			var g errgroup.Group
			for w := 0; w < 4; w++ {
				g.Go(func() error {
					for i := 0; i < 100; i++ {
						id := ids.Inc()
						if err := j.AppendAddRecord(id, 0, idPayload(id), false); err != nil {
							return err
						}
					}
					return nil
				})
			}
			tst.RequireNoError(t, g.Wait())
			tst.RequireNoError(t, j.DebugWait())

			stats := j.Stats()
			tst.AssertEqual(t, stats.Appends, uint64(400), "appends")
			tst.AssertEqual(t, stats.FailedWrites, uint64(0), "failed writes")
			tst.AssertEqual(t, stats.LiveRecords, 400, "live records")
			tst.RequireNoError(t, j.Stop())

			cb, _ := reload(t, dir, backend, nil)
			tst.AssertEqual(t, cb.Count("add"), 400, "adds")
		})
	}
}
