// Package sequential provides append-only files with synchronous or
// asynchronous write completion, and the factories that create them.
package sequential

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/julianstephens/jrnl/internal/jrnl"
)

// File is one append-only journal file. Writes are applied in submission
// order; Position counts every byte submitted, flushed or not.
type File interface {
	Open() error
	Name() string
	Position() int64
	// Write appends data. cb, when non-nil, is notified once the write is on
	// the OS (or on disk when sync is set). An error returned here has
	// already been reported to cb.
	Write(data []byte, sync bool, cb IOCallback) error
	Sync() error
	// WaitPending blocks until every write submitted so far has completed.
	WaitPending() error
	Close() error
}

// BatchCounter is implemented by Files that coalesce writes into batches.
type BatchCounter interface {
	// BatchStats returns the batches the file has finished writing and the
	// batches still queued or being written.
	BatchStats() (completed uint64, inflight int64)
}

// Factory creates Files of one backend kind inside one directory.
type Factory interface {
	Backend() Backend
	Dir() string
	BufferSize() int
	NewFile(name string) File
	OpenReader(name string) (io.ReadCloser, error)
	// ListFiles returns the names matching <prefix>-*.<ext>, sorted.
	ListFiles(prefix, ext string) ([]string, error)
	Remove(name string) error
}

type Backend string

const (
	BackendSync  Backend = "sync"
	BackendAsync Backend = "async"
)

func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendSync:
		return BackendSync, nil
	case BackendAsync, "aio":
		return BackendAsync, nil
	default:
		return "", fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, s)
	}
}

// Config is the write coalescing policy of a factory.
type Config struct {
	Backend Backend `json:"backend"`
	// BufferSize is the async timed buffer capacity in bytes.
	BufferSize int `json:"buffer_size"`
	// FlushTimeout bounds how long a byte may sit in the timed buffer.
	FlushTimeout time.Duration `json:"flush_timeout"`
	// SyncEveryWrite fsyncs every write (sync) or batch (async).
	SyncEveryWrite bool `json:"sync_every_write"`
	// FlushOnSync cuts the timed buffer as soon as a sync write arrives
	// instead of waiting for the timeout.
	FlushOnSync bool `json:"flush_on_sync"`
	// MaxIO is the number of batches that may queue for the flusher.
	MaxIO int `json:"max_io"`
}

func DefaultConfig() Config {
	return Config{
		Backend:      BackendAsync,
		BufferSize:   jrnl.DefaultBufferSize,
		FlushTimeout: jrnl.DefaultFlushTimeout,
		FlushOnSync:  true,
		MaxIO:        jrnl.DefaultMaxIO,
	}
}

func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.Backend == BackendAsync {
		if c.BufferSize <= 0 {
			return fmt.Errorf("%w: buffer size %d", ErrInvalidConfig, c.BufferSize)
		}
		if c.FlushTimeout <= 0 {
			return fmt.Errorf("%w: flush timeout %s", ErrInvalidConfig, c.FlushTimeout)
		}
		if c.MaxIO <= 0 {
			return fmt.Errorf("%w: max io %d", ErrInvalidConfig, c.MaxIO)
		}
	}
	return nil
}
