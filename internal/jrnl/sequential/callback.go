package sequential

import "sync"

// IOCallback is notified exactly once when a write completes: Done on
// success, OnError on failure.
type IOCallback interface {
	Done()
	OnError(err error)
}

func notify(cb IOCallback, err error) {
	if cb == nil {
		return
	}
	if err != nil {
		cb.OnError(err)
		return
	}
	cb.Done()
}

// WaitCallback lets a goroutine block until a single write completes.
type WaitCallback struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewWaitCallback() *WaitCallback {
	return &WaitCallback{done: make(chan struct{})}
}

func (c *WaitCallback) Done() {
	c.once.Do(func() { close(c.done) })
}

func (c *WaitCallback) OnError(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Wait blocks until the write completes and returns its error.
func (c *WaitCallback) Wait() error {
	<-c.done
	return c.err
}

// CountingCallback waits for a fixed number of completions and keeps the
// first error reported.
type CountingCallback struct {
	wg  sync.WaitGroup
	mu  sync.Mutex
	err error
}

func NewCountingCallback(n int) *CountingCallback {
	c := &CountingCallback{}
	c.wg.Add(n)
	return c
}

func (c *CountingCallback) Done() {
	c.wg.Done()
}

func (c *CountingCallback) OnError(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.wg.Done()
}

func (c *CountingCallback) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// FuncCallback adapts a function to IOCallback; fn receives nil on success.
type FuncCallback func(err error)

func (f FuncCallback) Done()             { f(nil) }
func (f FuncCallback) OnError(err error) { f(err) }
