// Package manifest stores the layout a journal directory was created with so
// the CLI can reopen it without repeating flags. Load never reads it.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/julianstephens/go-utils/helpers"
	"github.com/julianstephens/go-utils/jsonutil"
	"github.com/julianstephens/jrnl/internal/jrnl"
	"github.com/julianstephens/jrnl/internal/jrnl/config"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
)

// Manifest is the MANIFEST.json structure.
type Manifest struct {
	Version        int    `json:"version"`
	Backend        string `json:"backend"`
	FilePrefix     string `json:"file_prefix"`
	FileExtension  string `json:"file_extension"`
	FileSize       int64  `json:"file_size"`
	MinFiles       int    `json:"min_files"`
	BufferSize     int    `json:"buffer_size"`
	FlushTimeoutUS int64  `json:"flush_timeout_us"`
	SyncEveryWrite bool   `json:"sync_every_write"`
	FlushOnSync    bool   `json:"flush_on_sync"`
	MaxIO          int    `json:"max_io"`
}

// FromConfig captures c as a manifest.
func FromConfig(c config.Config) *Manifest {
	return &Manifest{
		Version:        jrnl.ManifestVersion,
		Backend:        string(c.Factory.Backend),
		FilePrefix:     c.Journal.Prefix,
		FileExtension:  c.Journal.Extension,
		FileSize:       c.Journal.FileSize,
		MinFiles:       c.Journal.MinFiles,
		BufferSize:     c.Factory.BufferSize,
		FlushTimeoutUS: c.Factory.FlushTimeout.Microseconds(),
		SyncEveryWrite: c.Factory.SyncEveryWrite,
		FlushOnSync:    c.Factory.FlushOnSync,
		MaxIO:          c.Factory.MaxIO,
	}
}

// Config converts m back into a config, validating it.
func (m *Manifest) Config() (config.Config, error) {
	backend, err := sequential.ParseBackend(m.Backend)
	if err != nil {
		return config.Config{}, &ManifestError{Kind: ManifestErrorKindInvalid, Err: err}
	}
	c := config.Config{
		Journal: jrnl.Options{
			Prefix:    m.FilePrefix,
			Extension: m.FileExtension,
			FileSize:  m.FileSize,
			MinFiles:  m.MinFiles,
		},
		Factory: sequential.Config{
			Backend:        backend,
			BufferSize:     m.BufferSize,
			FlushTimeout:   time.Duration(m.FlushTimeoutUS) * time.Microsecond,
			SyncEveryWrite: m.SyncEveryWrite,
			FlushOnSync:    m.FlushOnSync,
			MaxIO:          m.MaxIO,
		},
	}
	if err := c.Factory.Validate(); err != nil {
		return config.Config{}, &ManifestError{Kind: ManifestErrorKindInvalid, Err: err}
	}
	if err := c.Options(".").Validate(); err != nil {
		return config.Config{}, &ManifestError{Kind: ManifestErrorKindInvalid, Err: err}
	}
	return c, nil
}

func Path(dir string) string {
	return filepath.Join(dir, jrnl.ManifestFileName)
}

// Create writes m into dir, failing if a manifest is already there.
func Create(dir string, m *Manifest) error {
	p := Path(dir)
	if helpers.Exists(p) {
		return &ManifestError{
			Kind: ManifestErrorKindAlreadyExists,
			Path: p,
			Err:  fmt.Errorf("manifest already exists at %s", p),
		}
	}
	return write(p, m)
}

// Open reads the manifest in dir.
func Open(dir string) (*Manifest, error) {
	p := Path(dir)
	if !helpers.Exists(p) {
		return nil, &ManifestError{Kind: ManifestErrorKindNotFound, Path: p, Err: fs.ErrNotExist}
	}

	m := &Manifest{}
	if err := jsonutil.ReadFileStrict(p, m); err != nil {
		return nil, &ManifestError{Kind: ManifestErrorKindDecode, Path: p, Err: err}
	}
	if m.Version < 1 || m.Version > jrnl.ManifestVersion {
		return nil, &ManifestError{
			Kind: ManifestErrorKindUnsupportedVersion,
			Path: p,
			Err:  fmt.Errorf("manifest version %d is not supported", m.Version),
		}
	}
	return m, nil
}

// Save overwrites the existing manifest in dir.
func (m *Manifest) Save(dir string) error {
	p := Path(dir)
	if !helpers.Exists(p) {
		return &ManifestError{Kind: ManifestErrorKindNotFound, Path: p, Err: fs.ErrNotExist}
	}
	return write(p, m)
}

func write(p string, m *Manifest) error {
	data, err := jsonutil.Marshal(m)
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindEncode, Path: p, Err: err}
	}
	if err := helpers.AtomicFileWrite(p, data); err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Path: p, Err: err}
	}

	d, err := os.Open(filepath.Dir(p)) //nolint:gosec
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Path: p, Err: err}
	}
	defer func() { _ = d.Close() }()
	if err := d.Sync(); err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Path: p, Err: err}
	}
	return nil
}
