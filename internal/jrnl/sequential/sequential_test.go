package sequential

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferSize = 64
	cfg.FlushTimeout = time.Millisecond
	cfg.MaxIO = 4
	return cfg
}

func factories(t *testing.T) map[string]Factory {
	t.Helper()
	out := map[string]Factory{
		"sync": NewSyncFactory(t.TempDir(), testConfig(), nil),
	}
	if AsyncSupported() {
		af, err := NewAsyncFactory(t.TempDir(), testConfig(), nil)
		assert.NoError(t, err)
		out["async"] = af
	}
	return out
}

func readAll(t *testing.T, f Factory, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.Dir(), name))
	assert.NoError(t, err)
	return data
}

func TestFile_WritesInOrder(t *testing.T) {
	for name, fac := range factories(t) {
		t.Run(name, func(t *testing.T) {
			f := fac.NewFile("a.jrn")
			assert.NoError(t, f.Open())

			var want bytes.Buffer
			for i := 0; i < 50; i++ {
				chunk := bytes.Repeat([]byte{byte(i)}, 1+i%20)
				want.Write(chunk)
				assert.NoError(t, f.Write(chunk, false, nil))
			}
			assert.Equal(t, int64(want.Len()), f.Position())

			assert.NoError(t, f.WaitPending())
			assert.Equal(t, want.Bytes(), readAll(t, fac, "a.jrn"))
			assert.NoError(t, f.Close())
		})
	}
}

func TestFile_CallbacksCompleteInSubmissionOrder(t *testing.T) {
	for name, fac := range factories(t) {
		t.Run(name, func(t *testing.T) {
			f := fac.NewFile("order.jrn")
			assert.NoError(t, f.Open())

			var mu sync.Mutex
			var order []int
			const n = 40
			counter := NewCountingCallback(n)
			for i := 0; i < n; i++ {
				i := i
				cb := FuncCallback(func(err error) {
					mu.Lock()
					order = append(order, i)
					mu.Unlock()
					if err != nil {
						counter.OnError(err)
						return
					}
					counter.Done()
				})
				// Every fifth write is large enough to bypass the buffer.
				size := 8
				if i%5 == 0 {
					size = 100
				}
				assert.NoError(t, f.Write(make([]byte, size), i%7 == 0, cb))
			}

			assert.NoError(t, counter.Wait())
			for i, got := range order {
				assert.Equal(t, i, got)
			}
			assert.NoError(t, f.Close())
		})
	}
}

func TestFile_SyncWriteWaits(t *testing.T) {
	for name, fac := range factories(t) {
		t.Run(name, func(t *testing.T) {
			f := fac.NewFile("sync.jrn")
			assert.NoError(t, f.Open())

			cb := NewWaitCallback()
			assert.NoError(t, f.Write([]byte("durable"), true, cb))
			assert.NoError(t, cb.Wait())
			assert.Equal(t, []byte("durable"), readAll(t, fac, "sync.jrn"))

			assert.NoError(t, f.Sync())
			assert.NoError(t, f.Close())
		})
	}
}

func TestFile_WriteAfterClose(t *testing.T) {
	for name, fac := range factories(t) {
		t.Run(name, func(t *testing.T) {
			f := fac.NewFile("closed.jrn")
			assert.NoError(t, f.Open())
			assert.NoError(t, f.Close())
			assert.NoError(t, f.Close())

			cb := NewWaitCallback()
			err := f.Write([]byte("x"), false, cb)
			assert.IsError(t, err, ErrFileClosed)
			assert.IsError(t, cb.Wait(), ErrFileClosed)
			assert.True(t, IsIOError(err))
		})
	}
}

func TestFile_WriteBeforeOpen(t *testing.T) {
	for name, fac := range factories(t) {
		t.Run(name, func(t *testing.T) {
			err := fac.NewFile("never.jrn").Write([]byte("x"), false, nil)
			assert.IsError(t, err, ErrFileNotOpen)
		})
	}
}

func TestFile_ReopenContinuesAtEnd(t *testing.T) {
	for name, fac := range factories(t) {
		t.Run(name, func(t *testing.T) {
			f := fac.NewFile("reopen.jrn")
			assert.NoError(t, f.Open())
			assert.NoError(t, f.Write([]byte("abc"), true, nil))
			assert.NoError(t, f.Close())

			g := fac.NewFile("reopen.jrn")
			assert.NoError(t, g.Open())
			assert.Equal(t, int64(3), g.Position())
			assert.NoError(t, g.Write([]byte("def"), true, nil))
			assert.NoError(t, g.Close())

			assert.Equal(t, []byte("abcdef"), readAll(t, fac, "reopen.jrn"))
		})
	}
}

func TestAsyncFile_TimeoutFlushes(t *testing.T) {
	if !AsyncSupported() {
		t.Skip("async backend unsupported")
	}
	cfg := testConfig()
	cfg.BufferSize = 1 << 20
	cfg.FlushTimeout = 5 * time.Millisecond
	fac, err := NewAsyncFactory(t.TempDir(), cfg, nil)
	assert.NoError(t, err)

	f := fac.NewFile("timeout.jrn")
	assert.NoError(t, f.Open())
	defer f.Close() //nolint:errcheck

	cb := NewWaitCallback()
	assert.NoError(t, f.Write([]byte("lazy"), false, cb))

	// Nobody cuts the buffer; only the timer can complete this write.
	select {
	case <-cb.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed buffer never flushed")
	}
	assert.NoError(t, cb.Wait())
	assert.NoError(t, f.WaitPending())
	completed, inflight := f.(BatchCounter).BatchStats()
	assert.Equal(t, uint64(1), completed)
	assert.Equal(t, int64(0), inflight)
}

func TestAsyncFile_CoalescesSmallWrites(t *testing.T) {
	if !AsyncSupported() {
		t.Skip("async backend unsupported")
	}
	cfg := testConfig()
	cfg.BufferSize = 1 << 16
	cfg.FlushTimeout = time.Hour
	cfg.FlushOnSync = false
	fac, err := NewAsyncFactory(t.TempDir(), cfg, nil)
	assert.NoError(t, err)

	f := fac.NewFile("batch.jrn")
	assert.NoError(t, f.Open())
	for i := 0; i < 100; i++ {
		assert.NoError(t, f.Write([]byte("0123456789"), false, nil))
	}
	assert.NoError(t, f.WaitPending())
	completed, _ := f.(BatchCounter).BatchStats()
	assert.Equal(t, uint64(1), completed)
	assert.Equal(t, 1000, len(readAll(t, fac, "batch.jrn")))
	assert.NoError(t, f.Close())
}

func TestAsyncFile_WaitPendingAlongsideWrites(t *testing.T) {
	if !AsyncSupported() {
		t.Skip("async backend unsupported")
	}
	cfg := testConfig()
	cfg.BufferSize = 4096
	cfg.FlushTimeout = 50 * time.Microsecond
	cfg.FlushOnSync = false
	fac, err := NewAsyncFactory(t.TempDir(), cfg, nil)
	assert.NoError(t, err)

	f := fac.NewFile("busy.jrn")
	assert.NoError(t, f.Open())

	const (
		writers = 4
		waiters = 4
		writes  = 5000
	)
	payload := []byte("0123456789abcdef")

	var writersWG sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < writers; w++ {
		writersWG.Add(1)
		go func() {
			defer writersWG.Done()
			for i := 0; i < writes; i++ {
				if err := f.Write(payload, false, nil); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	var waitersWG sync.WaitGroup
	for w := 0; w < waiters; w++ {
		waitersWG.Add(1)
		go func() {
			defer waitersWG.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// Each call returns even though writers never pause.
				if err := f.WaitPending(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	writersWG.Wait()
	close(stop)
	waitersWG.Wait()

	assert.NoError(t, f.WaitPending())
	_, inflight := f.(BatchCounter).BatchStats()
	assert.Equal(t, int64(0), inflight)
	assert.NoError(t, f.Close())
	assert.Equal(t, writers*writes*len(payload), len(readAll(t, fac, "busy.jrn")))
}

func TestAsyncFile_StickyError(t *testing.T) {
	if !AsyncSupported() {
		t.Skip("async backend unsupported")
	}
	fac, err := NewAsyncFactory(t.TempDir(), testConfig(), nil)
	assert.NoError(t, err)

	f := fac.NewFile("broken.jrn")
	assert.NoError(t, f.Open())
	af := f.(*asyncFile)

	boom := errors.New("injected")
	af.setStickyErr(boom)

	cb := NewWaitCallback()
	err = f.Write([]byte("lost?"), true, cb)
	assert.IsError(t, err, boom)
	assert.IsError(t, cb.Wait(), boom)
	assert.IsError(t, f.WaitPending(), boom)
	assert.IsError(t, f.Close(), boom)
}

func TestFactory_ListAndRemove(t *testing.T) {
	fac := NewSyncFactory(t.TempDir(), testConfig(), nil)
	for _, name := range []string{"j-2.jrn", "j-1.jrn", "j-1.tmp", "k-1.jrn", "j-.jrn"} {
		assert.NoError(t, os.WriteFile(filepath.Join(fac.Dir(), name), nil, 0o600))
	}
	assert.NoError(t, os.Mkdir(filepath.Join(fac.Dir(), "j-3.jrn"), 0o700))

	names, err := fac.ListFiles("j", "jrn")
	assert.NoError(t, err)
	assert.Equal(t, []string{"j-.jrn", "j-1.jrn", "j-2.jrn"}, names)

	assert.NoError(t, fac.Remove("j-1.jrn"))
	names, err = fac.ListFiles("j", "jrn")
	assert.NoError(t, err)
	assert.Equal(t, []string{"j-.jrn", "j-2.jrn"}, names)

	assert.IsError(t, fac.Remove("missing.jrn"), ErrRemove)

	rc, err := fac.OpenReader("j-2.jrn")
	assert.NoError(t, err)
	assert.NoError(t, rc.Close())

	_, err = fac.OpenReader("nope")
	assert.IsError(t, err, ErrOpen)
}

func TestNewFactory_FallsBackWhenUnsupported(t *testing.T) {
	orig := probeAsync
	probeAsync = func() bool { return false }
	defer func() { probeAsync = orig }()

	_, err := NewAsyncFactory(t.TempDir(), testConfig(), nil)
	assert.IsError(t, err, ErrUnsupportedBackend)

	fac, err := NewFactory(t.TempDir(), testConfig(), nil)
	assert.NoError(t, err)
	assert.Equal(t, BackendSync, fac.Backend())
}

func TestNewFactory_HonoursBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = BackendSync
	fac, err := NewFactory(t.TempDir(), cfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, BackendSync, fac.Backend())

	if AsyncSupported() {
		cfg.Backend = BackendAsync
		fac, err = NewFactory(t.TempDir(), cfg, nil)
		assert.NoError(t, err)
		assert.Equal(t, BackendAsync, fac.Backend())
		assert.Equal(t, 64, fac.BufferSize())
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.BufferSize = 0
	assert.IsError(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.Backend = "io_uring"
	assert.IsError(t, bad.Validate(), ErrInvalidConfig)

	syncOnly := Config{Backend: BackendSync}
	assert.NoError(t, syncOnly.Validate())

	b, err := ParseBackend(" AIO ")
	assert.NoError(t, err)
	assert.Equal(t, BackendAsync, b)
}
