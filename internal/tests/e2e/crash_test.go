package e2e_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
	"github.com/julianstephens/jrnl/internal/jrnl/journal"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
	"github.com/julianstephens/jrnl/internal/testutil"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	crashDirEnv     = "JRNL_E2E_CRASH_DIR"
	crashBackendEnv = "JRNL_E2E_CRASH_BACKEND"
	crashShapeEnv   = "JRNL_E2E_CRASH_SHAPE"
	crashPayload    = 100
	crashFileSize   = 64 * 1024
	// crashOpenTxOps is the size of the transaction the helper leaves without
	// a commit before it exits.
	crashOpenTxOps = 20
	// crashExitCode is how the helper ends; os.Exit(0) is rejected inside a
	// test binary.
	crashExitCode = 42
)

// crashShape is the workload the helper runs: workers goroutines each add
// records records, txSize per transaction. txSize 0 appends without
// transactions.
type crashShape struct {
	name    string
	workers int
	records int
	txSize  int
}

func (s crashShape) env() string {
	return fmt.Sprintf("%d,%d,%d", s.workers, s.records, s.txSize)
}

func parseCrashShape(v string) (crashShape, error) {
	var s crashShape
	if _, err := fmt.Sscanf(v, "%d,%d,%d", &s.workers, &s.records, &s.txSize); err != nil {
		return s, fmt.Errorf("crash shape %q: %w", v, err)
	}
	return s, nil
}

var crashShapes = []crashShape{
	{name: "NonTransactional", workers: 10, records: 100, txSize: 0},
	// 100 is not a multiple of 7, so every worker commits a short last group
	{name: "Grouped", workers: 10, records: 100, txSize: 7},
	// about 500 entries fit in a file, so each transaction spans rotations
	{name: "SpansFiles", workers: 2, records: 1200, txSize: 1000},
}

// crashWorker adds shape.records records. Record and transaction ids come
// from the same counter, and a partial last group is committed.
func crashWorker(j *journal.Journal, next *atomic.Uint64, shape crashShape) error {
	var txID uint64
	pending := 0
	for i := 0; i < shape.records; i++ {
		id := next.Inc()
		if shape.txSize == 0 {
			if err := j.AppendAddRecord(id, 1, payloadFor(id, crashPayload), false); err != nil {
				return err
			}
			continue
		}

		if txID == 0 {
			txID = next.Inc()
		}
		if err := j.AppendAddRecordTransactional(txID, id, 1, payloadFor(id, crashPayload)); err != nil {
			return err
		}
		pending++
		if pending == shape.txSize {
			if err := j.AppendCommitRecord(txID, true); err != nil {
				return err
			}
			txID, pending = 0, 0
		}
	}
	if txID != 0 {
		return j.AppendCommitRecord(txID, true)
	}
	return nil
}

func helperFail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}

// TestCrashHelper runs only inside the child process started by
// TestCrash_CommittedTransactionsSurvive. It appends from several goroutines
// and exits without stopping the journal.
func TestCrashHelper(t *testing.T) {
	dir := os.Getenv(crashDirEnv)
	if dir == "" {
		t.Skip("helper process only")
	}
	backend, err := sequential.ParseBackend(os.Getenv(crashBackendEnv))
	if err != nil {
		helperFail(err)
	}
	shape, err := parseCrashShape(os.Getenv(crashShapeEnv))
	if err != nil {
		helperFail(err)
	}

	j, _ := openJournal(t, dir, factoryConfig(backend), crashFileSize, recovery.NopLoader{})

	var next atomic.Uint64
	var g errgroup.Group
	for w := 0; w < shape.workers; w++ {
		g.Go(func() error { return crashWorker(j, &next, shape) })
	}
	if err := g.Wait(); err != nil {
		helperFail(err)
	}

	if shape.txSize > 0 {
		// a transaction cut off by the exit; none of it may survive
		txID := next.Inc()
		for i := 0; i < crashOpenTxOps; i++ {
			id := next.Inc()
			if err := j.AppendAddRecordTransactional(txID, id, 1, payloadFor(id, crashPayload)); err != nil {
				helperFail(err)
			}
		}
	}
	// Plain appends are not synced; DebugWait hands them to the OS so they
	// outlive the process.
	if err := j.DebugWait(); err != nil {
		helperFail(err)
	}
	os.Exit(crashExitCode)
}

func TestCrash_CommittedTransactionsSurvive(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a child process")
	}
	for _, shape := range crashShapes {
		for _, backend := range backends {
			t.Run(shape.name+"/"+string(backend), func(t *testing.T) {
				dir := t.TempDir()

				cmd := exec.Command(os.Args[0], "-test.run=^TestCrashHelper$", "-test.count=1") //nolint:gosec
				cmd.Env = append(os.Environ(),
					crashDirEnv+"="+dir,
					crashBackendEnv+"="+string(backend),
					crashShapeEnv+"="+shape.env(),
				)
				out, err := cmd.CombinedOutput()
				var exitErr *exec.ExitError
				if !errors.As(err, &exitErr) || exitErr.ExitCode() != crashExitCode {
					t.Fatalf("helper process failed: %v\n%s", err, out)
				}

				cb := testutil.NewRecordingLoader()
				j, res := openJournal(t, dir, factoryConfig(backend), crashFileSize, cb)
				defer func() { _ = j.Stop() }()

				want := shape.workers * shape.records
				tst.AssertEqual(t, cb.Count("add"), want, "adds")
				tst.AssertEqual(t, cb.Count("update"), 0, "updates")
				tst.AssertEqual(t, cb.Count("delete"), 0, "deletes")
				tst.AssertEqual(t, cb.Count("prepared"), 0, "prepared")
				tst.AssertEqual(t, cb.Count("failed"), 0, "failed")
				tst.AssertTrue(t, len(res.Files) > 1, "workload should rotate, got "+strconv.Itoa(len(res.Files))+" files")

				if shape.txSize > 0 {
					groups := (shape.records + shape.txSize - 1) / shape.txSize
					tst.AssertEqual(t, res.Committed, shape.workers*groups, "committed")
					tst.AssertEqual(t, res.Discarded, 1, "open transaction discarded")
				} else {
					tst.AssertEqual(t, res.Committed, 0, "committed")
					tst.AssertEqual(t, res.Discarded, 0, "discarded")
				}

				seen := make(map[uint64]bool)
				for _, ev := range cb.Events {
					tst.AssertTrue(t, payloadMatches(ev.ID, ev.Info.Data), "payload of record "+strconv.FormatUint(ev.ID, 10))
					seen[ev.ID] = true
				}
				tst.AssertEqual(t, len(seen), want, "distinct records")
			})
		}
	}
}
