package sequential

import (
	"os"
	"sync"

	"github.com/julianstephens/jrnl/internal/logger"
)

// syncFile performs every write inline on the caller's goroutine.
type syncFile struct {
	mu sync.Mutex

	path string
	name string
	cfg  Config
	lg   logger.Logger

	f      *os.File
	pos    int64
	closed bool
}

func newSyncFile(path, name string, cfg Config, lg logger.Logger) *syncFile {
	return &syncFile{path: path, name: name, cfg: cfg, lg: lg}
}

func (s *syncFile) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, size, err := openForAppend(s.path)
	if err != nil {
		return wrapIOErr("open", s.name, ErrOpen, err)
	}
	s.f = f
	s.pos = size
	s.closed = false
	return nil
}

func (s *syncFile) Name() string { return s.name }

func (s *syncFile) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *syncFile) Write(data []byte, sync bool, cb IOCallback) error {
	err := s.write(data, sync)
	notify(cb, err)
	return err
}

func (s *syncFile) write(data []byte, sync bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}

	n, err := s.f.WriteAt(data, s.pos)
	s.pos += int64(n)
	if err != nil {
		s.lg.Error("journal write failed", err, "file", s.name, "offset", s.pos)
		return wrapIOErr("write", s.name, ErrWrite, err)
	}

	if sync || s.cfg.SyncEveryWrite {
		if err := s.f.Sync(); err != nil {
			return wrapIOErr("sync", s.name, ErrSync, err)
		}
	}
	return nil
}

func (s *syncFile) usableLocked() error {
	if s.closed {
		return wrapIOErr("write", s.name, ErrFileClosed, nil)
	}
	if s.f == nil {
		return wrapIOErr("write", s.name, ErrFileNotOpen, nil)
	}
	return nil
}

func (s *syncFile) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if err := s.f.Sync(); err != nil {
		return wrapIOErr("sync", s.name, ErrSync, err)
	}
	return nil
}

// WaitPending has nothing to wait for: writes finish inside Write.
func (s *syncFile) WaitPending() error {
	return nil
}

func (s *syncFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.f == nil {
		s.closed = true
		return nil
	}
	s.closed = true

	if err := s.f.Sync(); err != nil {
		_ = s.f.Close()
		return wrapIOErr("close", s.name, ErrSync, err)
	}
	if err := s.f.Close(); err != nil {
		return wrapIOErr("close", s.name, ErrClose, err)
	}
	return nil
}

func openForAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
