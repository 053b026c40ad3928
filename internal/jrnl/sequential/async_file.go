package sequential

import (
	"os"
	"sync"
	"time"

	"github.com/julianstephens/jrnl/internal/logger"
	"go.uber.org/atomic"
)

// batch is one coalesced run of contiguous writes.
type batch struct {
	data   []byte
	offset int64
	sync   bool
	cbs    []IOCallback
}

// asyncFile buffers writes in a timed buffer and hands cut batches to a
// single flusher goroutine, so completions arrive in submission order.
type asyncFile struct {
	path string
	name string
	cfg  Config
	lg   logger.Logger

	// mu guards the buffer, the logical position and the queue send.
	mu        sync.Mutex
	f         *os.File
	pos       int64
	buf       []byte
	bufOffset int64
	bufSync   bool
	bufCbs    []IOCallback
	timer     *time.Timer
	timerGen  uint64
	open      bool
	closed    bool

	queue chan *batch
	done  chan struct{}

	// submitted only grows under mu; the flusher bumps batches and
	// broadcasts under pendMu.
	pendMu    sync.Mutex
	pendCond  *sync.Cond
	submitted uint64

	errMu sync.Mutex
	err   error

	batches  atomic.Uint64
	inflight atomic.Int64
}

func newAsyncFile(path, name string, cfg Config, lg logger.Logger) *asyncFile {
	a := &asyncFile{path: path, name: name, cfg: cfg, lg: lg}
	a.pendCond = sync.NewCond(&a.pendMu)
	return a
}

func (a *asyncFile) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open {
		return nil
	}
	f, size, err := openForAppend(a.path)
	if err != nil {
		return wrapIOErr("open", a.name, ErrOpen, err)
	}

	a.f = f
	a.pos = size
	a.buf = make([]byte, 0, a.cfg.BufferSize)
	a.queue = make(chan *batch, a.cfg.MaxIO)
	a.done = make(chan struct{})
	a.open = true
	a.closed = false

	go a.flusher()
	return nil
}

func (a *asyncFile) Name() string { return a.name }

func (a *asyncFile) Position() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *asyncFile) Write(data []byte, sync bool, cb IOCallback) error {
	a.mu.Lock()
	if err := a.usableLocked("write"); err != nil {
		a.mu.Unlock()
		notify(cb, err)
		return err
	}

	if len(a.buf) > 0 && len(a.buf)+len(data) > a.cfg.BufferSize {
		a.cutLocked()
	}

	if len(data) >= a.cfg.BufferSize {
		// Too big to coalesce; goes out as its own batch.
		b := &batch{
			data:   append([]byte(nil), data...),
			offset: a.pos,
			sync:   sync || a.cfg.SyncEveryWrite,
			cbs:    []IOCallback{cb},
		}
		a.pos += int64(len(data))
		a.submitLocked(b)
		a.mu.Unlock()
		return nil
	}

	if len(a.buf) == 0 {
		a.bufOffset = a.pos
		a.armTimerLocked()
	}
	a.buf = append(a.buf, data...)
	a.bufCbs = append(a.bufCbs, cb)
	a.bufSync = a.bufSync || sync
	a.pos += int64(len(data))

	if sync && a.cfg.FlushOnSync {
		a.cutLocked()
	}
	a.mu.Unlock()
	return nil
}

func (a *asyncFile) usableLocked(op string) error {
	if a.closed {
		return wrapIOErr(op, a.name, ErrFileClosed, nil)
	}
	if !a.open {
		return wrapIOErr(op, a.name, ErrFileNotOpen, nil)
	}
	if err := a.stickyErr(); err != nil {
		return err
	}
	return nil
}

func (a *asyncFile) armTimerLocked() {
	a.timerGen++
	gen := a.timerGen
	a.timer = time.AfterFunc(a.cfg.FlushTimeout, func() { a.onTimeout(gen) })
}

func (a *asyncFile) onTimeout(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || gen != a.timerGen || len(a.buf) == 0 {
		return
	}
	a.cutLocked()
}

// cutLocked turns the timed buffer into a batch and queues it.
func (a *asyncFile) cutLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.timerGen++

	if len(a.buf) == 0 {
		return
	}
	b := &batch{
		data:   a.buf,
		offset: a.bufOffset,
		sync:   a.bufSync || a.cfg.SyncEveryWrite,
		cbs:    a.bufCbs,
	}
	a.buf = make([]byte, 0, a.cfg.BufferSize)
	a.bufCbs = nil
	a.bufSync = false
	a.submitLocked(b)
}

// submitLocked may block when MaxIO batches are already queued.
func (a *asyncFile) submitLocked(b *batch) {
	a.pendMu.Lock()
	a.submitted++
	a.pendMu.Unlock()
	a.inflight.Inc()
	a.queue <- b
}

// submittedLocked is the number of batches handed to the flusher so far.
func (a *asyncFile) submittedLocked() uint64 {
	a.pendMu.Lock()
	defer a.pendMu.Unlock()
	return a.submitted
}

// waitCompleted blocks until the flusher has finished target batches.
// Batches submitted after target was taken are not waited for.
func (a *asyncFile) waitCompleted(target uint64) {
	a.pendMu.Lock()
	for a.batches.Load() < target {
		a.pendCond.Wait()
	}
	a.pendMu.Unlock()
}

func (a *asyncFile) flusher() {
	defer close(a.done)
	for b := range a.queue {
		err := a.stickyErr()
		if err == nil {
			if err = a.writeBatch(b); err != nil {
				a.setStickyErr(err)
				a.lg.Error("async journal write failed", err, "file", a.name, "offset", b.offset, "bytes", len(b.data))
			}
		}
		a.inflight.Dec()
		for _, cb := range b.cbs {
			notify(cb, err)
		}
		a.pendMu.Lock()
		a.batches.Inc()
		a.pendCond.Broadcast()
		a.pendMu.Unlock()
	}
}

func (a *asyncFile) writeBatch(b *batch) error {
	off := b.offset
	data := b.data
	for len(data) > 0 {
		n, err := pwrite(a.f, data, off)
		if err != nil {
			return wrapIOErr("write", a.name, ErrWrite, err)
		}
		data = data[n:]
		off += int64(n)
	}
	if b.sync {
		if err := fdatasync(a.f); err != nil {
			return wrapIOErr("sync", a.name, ErrSync, err)
		}
	}
	return nil
}

func (a *asyncFile) stickyErr() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.err
}

func (a *asyncFile) setStickyErr(err error) {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	if a.err == nil {
		a.err = err
	}
}

// Sync flushes the timed buffer and waits for it to reach the disk.
func (a *asyncFile) Sync() error {
	a.mu.Lock()
	if err := a.usableLocked("sync"); err != nil {
		a.mu.Unlock()
		return err
	}
	if len(a.buf) > 0 {
		a.bufSync = true
		a.cutLocked()
	} else {
		a.submitLocked(&batch{offset: a.pos, sync: true})
	}
	target := a.submittedLocked()
	a.mu.Unlock()

	a.waitCompleted(target)
	return a.stickyErr()
}

// WaitPending waits for the writes submitted before the call; writes that
// arrive while it waits do not extend the wait.
func (a *asyncFile) WaitPending() error {
	a.mu.Lock()
	if a.open && !a.closed {
		a.cutLocked()
	}
	target := a.submittedLocked()
	a.mu.Unlock()

	a.waitCompleted(target)
	return a.stickyErr()
}

func (a *asyncFile) Close() error {
	a.mu.Lock()
	if a.closed || !a.open {
		a.closed = true
		a.mu.Unlock()
		return nil
	}
	a.cutLocked()
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done

	err := a.stickyErr()
	if err == nil {
		if serr := fdatasync(a.f); serr != nil {
			err = wrapIOErr("close", a.name, ErrSync, serr)
		}
	}
	if cerr := a.f.Close(); cerr != nil && err == nil {
		err = wrapIOErr("close", a.name, ErrClose, cerr)
	}
	return err
}

func (a *asyncFile) BatchStats() (completed uint64, inflight int64) {
	return a.batches.Load(), a.inflight.Load()
}

var _ BatchCounter = (*asyncFile)(nil)
