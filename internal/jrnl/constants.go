package jrnl

import "time"

// Journal layout defaults
const (
	DefaultFilePrefix    = "jrnl"
	DefaultFileExtension = "jrn"
	DefaultFileSize      = 10 * 1024 * 1024
	DefaultMinFiles      = 2
	DefaultMaxIO         = 500
)

// Async backend defaults
const (
	DefaultBufferSize   = 490 * 1024
	DefaultFlushTimeout = 4 * time.Millisecond
)

// Log file defaults
const (
	DefaultAppDir        = ".jrnl"
	DefaultLogDir        = "logs"
	DefaultLogFileName   = "jrnl.log"
	DefaultLogMaxSize    = 100
	DefaultLogMaxBackups = 3
	DefaultLogLevel      = "info"
)

// Manifest defaults
const (
	ManifestFileName = "MANIFEST.json"
	ManifestVersion  = 1
)
