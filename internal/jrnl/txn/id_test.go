package txn_test

import (
	"errors"
	"sync"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
	"github.com/julianstephens/jrnl/internal/jrnl/recovery"
	"github.com/julianstephens/jrnl/internal/jrnl/txn"
)

func TestCounterAllocatorInit_TableDriven(t *testing.T) {
	testCases := []struct {
		name        string
		initial     uint64
		expectError bool
	}{
		{name: "ValidInitialValue", initial: 1},
		{name: "ZeroValue", initial: 0, expectError: true},
		{name: "LargeValue", initial: 9999999999},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := txn.NewCounterAllocator(tc.initial)
			if tc.expectError {
				tst.AssertTrue(t, errors.Is(err, txn.ErrInvalidID), "expected ErrInvalidID")
				return
			}
			tst.RequireNoError(t, err)
			tst.AssertEqual(t, a.Next(), tc.initial, "first id")
			tst.AssertEqual(t, a.Peek(), tc.initial+1, "peek after next")
		})
	}
}

func TestCounterAllocatorSetNext(t *testing.T) {
	a, err := txn.NewCounterAllocator(10)
	tst.RequireNoError(t, err)

	tst.RequireNoError(t, a.SetNext(10))
	tst.RequireNoError(t, a.SetNext(50))
	tst.AssertEqual(t, a.Next(), uint64(50), "next after SetNext")

	err = a.SetNext(20)
	tst.AssertTrue(t, errors.Is(err, txn.ErrIDRegression), "expected regression")

	var idErr *txn.IDError
	tst.AssertTrue(t, errors.As(err, &idErr), "expected *IDError")
	tst.AssertEqual(t, idErr.Want, uint64(51), "want")

	tst.AssertTrue(t, errors.Is(a.SetNext(0), txn.ErrInvalidID), "zero rejected")
}

func TestCounterAllocatorConcurrentUnique(t *testing.T) {
	a, err := txn.NewCounterAllocator(1)
	tst.RequireNoError(t, err)

	const goroutines, perGoroutine = 16, 500
	var (
		mu   sync.Mutex
		seen = make(map[uint64]bool)
		wg   sync.WaitGroup
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				local = append(local, a.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	tst.AssertEqual(t, len(seen), goroutines*perGoroutine, "unique ids")
	tst.AssertEqual(t, a.Peek(), uint64(goroutines*perGoroutine+1), "peek")
}

func TestAllocatorAfterLoad(t *testing.T) {
	tst.AssertEqual(t, txn.AllocatorAfterLoad(nil).Peek(), uint64(1), "nil result")
	tst.AssertEqual(t, txn.AllocatorAfterLoad(&recovery.Result{}).Peek(), uint64(1), "empty journal")
	tst.AssertEqual(t, txn.AllocatorAfterLoad(&recovery.Result{MaxRecordID: 7, MaxTxID: 12}).Peek(), uint64(13), "tx ids higher")
	tst.AssertEqual(t, txn.AllocatorAfterLoad(&recovery.Result{MaxRecordID: 40, MaxTxID: 3}).Peek(), uint64(41), "record ids higher")
}
