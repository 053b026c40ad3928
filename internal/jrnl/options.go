package jrnl

import (
	"errors"
	"fmt"
)

var ErrInvalidOptions = errors.New("jrnl: invalid options")

// Options describes the layout of one journal directory.
type Options struct {
	Dir       string // directory holding the journal files
	Prefix    string // file base name, e.g. "jrnl" in jrnl-00000000000000000001.jrn
	Extension string // file extension without the dot

	// FileSize is the capacity of a journal file in bytes, header included.
	// An entry that would cross it starts a new file.
	FileSize int64

	// MinFiles is the number of files Reclaim always keeps on disk.
	MinFiles int
}

// DefaultOptions returns Options for dir populated with the package defaults.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:       dir,
		Prefix:    DefaultFilePrefix,
		Extension: DefaultFileExtension,
		FileSize:  DefaultFileSize,
		MinFiles:  DefaultMinFiles,
	}
}

// WithDefaults fills zero-valued fields from the package defaults.
func (o Options) WithDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = DefaultFilePrefix
	}
	if o.Extension == "" {
		o.Extension = DefaultFileExtension
	}
	if o.FileSize == 0 {
		o.FileSize = DefaultFileSize
	}
	if o.MinFiles == 0 {
		o.MinFiles = DefaultMinFiles
	}
	return o
}

// Validate reports the first problem with o.
func (o Options) Validate() error {
	switch {
	case o.Dir == "":
		return fmt.Errorf("%w: empty directory", ErrInvalidOptions)
	case o.Prefix == "":
		return fmt.Errorf("%w: empty file prefix", ErrInvalidOptions)
	case o.Extension == "":
		return fmt.Errorf("%w: empty file extension", ErrInvalidOptions)
	case o.FileSize < 1024:
		return fmt.Errorf("%w: file size %d below 1KiB", ErrInvalidOptions, o.FileSize)
	case o.MinFiles < 1:
		return fmt.Errorf("%w: min files %d", ErrInvalidOptions, o.MinFiles)
	}
	return nil
}

// FileName returns the on-disk name of journal file id.
func (o Options) FileName(id uint64) string {
	return fmt.Sprintf("%s-%020d.%s", o.Prefix, id, o.Extension)
}
