package sequential

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/julianstephens/jrnl/internal/logger"
)

// dirFactory holds what both backends share: a directory and its listing.
type dirFactory struct {
	dir string
	cfg Config
	lg  logger.Logger
}

func (f *dirFactory) Backend() Backend { return f.cfg.Backend }
func (f *dirFactory) Dir() string      { return f.dir }
func (f *dirFactory) BufferSize() int  { return f.cfg.BufferSize }
func (f *dirFactory) Config() Config   { return f.cfg }

func (f *dirFactory) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *dirFactory) OpenReader(name string) (io.ReadCloser, error) {
	rc, err := os.Open(f.path(name)) //nolint:gosec
	if err != nil {
		return nil, wrapIOErr("open", name, ErrOpen, err)
	}
	return rc, nil
}

func (f *dirFactory) ListFiles(prefix, ext string) ([]string, error) {
	g, err := glob.Compile(glob.QuoteMeta(prefix) + "-*." + glob.QuoteMeta(ext))
	if err != nil {
		return nil, wrapIOErr("list", f.dir, ErrOpen, err)
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, wrapIOErr("list", f.dir, ErrOpen, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !g.Match(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (f *dirFactory) Remove(name string) error {
	if err := os.Remove(f.path(name)); err != nil {
		return wrapIOErr("remove", name, ErrRemove, err)
	}
	f.lg.Debug("removed journal file", "file", name)
	return nil
}

// SyncFactory creates files whose writes complete before Write returns.
type SyncFactory struct {
	dirFactory
}

func NewSyncFactory(dir string, cfg Config, lg logger.Logger) *SyncFactory {
	cfg.Backend = BackendSync
	return &SyncFactory{dirFactory{dir: dir, cfg: cfg, lg: logger.OrNoOp(lg)}}
}

func (f *SyncFactory) NewFile(name string) File {
	return newSyncFile(f.path(name), name, f.cfg, f.lg)
}

// AsyncFactory creates files backed by a timed buffer and a flusher
// goroutine issuing positional writes.
type AsyncFactory struct {
	dirFactory
}

// NewAsyncFactory fails with ErrUnsupportedBackend when AsyncSupported is
// false.
func NewAsyncFactory(dir string, cfg Config, lg logger.Logger) (*AsyncFactory, error) {
	if !AsyncSupported() {
		return nil, wrapIOErr("open", dir, ErrUnsupportedBackend, nil)
	}
	cfg.Backend = BackendAsync
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AsyncFactory{dirFactory{dir: dir, cfg: cfg, lg: logger.OrNoOp(lg)}}, nil
}

func (f *AsyncFactory) NewFile(name string) File {
	return newAsyncFile(f.path(name), name, f.cfg, f.lg)
}

// NewFactory builds the factory cfg asks for. When the async backend is
// requested but unavailable it logs a warning and returns a SyncFactory.
func NewFactory(dir string, cfg Config, lg logger.Logger) (Factory, error) {
	lg = logger.OrNoOp(lg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == BackendAsync {
		if !AsyncSupported() {
			lg.Warn("async backend unsupported, falling back to sync", "dir", dir)
			return NewSyncFactory(dir, cfg, lg), nil
		}
		return NewAsyncFactory(dir, cfg, lg)
	}
	return NewSyncFactory(dir, cfg, lg), nil
}
