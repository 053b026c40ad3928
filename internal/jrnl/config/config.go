// Package config loads journal layout and factory settings from a config
// file and JRNL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/julianstephens/jrnl/internal/jrnl"
	"github.com/julianstephens/jrnl/internal/jrnl/sequential"
	"github.com/spf13/viper"
)

const EnvPrefix = "JRNL"

// Keys understood in config files. The matching environment variable is
// EnvPrefix + "_" + upper-cased key.
const (
	KeyBackend        = "backend"
	KeyBufferSize     = "buffer_size"
	KeyFlushTimeout   = "flush_timeout"
	KeySyncEveryWrite = "sync_every_write"
	KeyFlushOnSync    = "flush_on_sync"
	KeyMaxIO          = "max_io"
	KeyFilePrefix     = "file_prefix"
	KeyFileExtension  = "file_extension"
	KeyFileSize       = "file_size"
	KeyMinFiles       = "min_files"
)

var (
	ErrReadConfig   = errors.New("config: failed to read config file")
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config is everything needed to open a journal except its directory.
type Config struct {
	Journal jrnl.Options
	Factory sequential.Config
}

// Default returns the package defaults for both halves of Config.
func Default() Config {
	return Config{
		Journal: jrnl.DefaultOptions(""),
		Factory: sequential.DefaultConfig(),
	}
}

// Options returns the journal options rooted at dir.
func (c Config) Options(dir string) jrnl.Options {
	o := c.Journal
	o.Dir = dir
	return o
}

func newViper() *viper.Viper {
	def := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBackend, string(def.Factory.Backend))
	v.SetDefault(KeyBufferSize, bytefmt.ByteSize(uint64(def.Factory.BufferSize))) //nolint:gosec
	v.SetDefault(KeyFlushTimeout, def.Factory.FlushTimeout)
	v.SetDefault(KeySyncEveryWrite, def.Factory.SyncEveryWrite)
	v.SetDefault(KeyFlushOnSync, def.Factory.FlushOnSync)
	v.SetDefault(KeyMaxIO, def.Factory.MaxIO)
	v.SetDefault(KeyFilePrefix, def.Journal.Prefix)
	v.SetDefault(KeyFileExtension, def.Journal.Extension)
	v.SetDefault(KeyFileSize, bytefmt.ByteSize(uint64(def.Journal.FileSize))) //nolint:gosec
	v.SetDefault(KeyMinFiles, def.Journal.MinFiles)
	return v
}

// Load reads path (YAML, JSON or TOML by extension) and applies JRNL_*
// environment overrides. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrReadConfig, path, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var c Config

	backend, err := sequential.ParseBackend(v.GetString(KeyBackend))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, KeyBackend, err)
	}
	bufSize, err := sizeValue(v, KeyBufferSize)
	if err != nil {
		return Config{}, err
	}
	fileSize, err := sizeValue(v, KeyFileSize)
	if err != nil {
		return Config{}, err
	}

	c.Factory = sequential.Config{
		Backend:        backend,
		BufferSize:     int(bufSize), //nolint:gosec
		FlushTimeout:   v.GetDuration(KeyFlushTimeout),
		SyncEveryWrite: v.GetBool(KeySyncEveryWrite),
		FlushOnSync:    v.GetBool(KeyFlushOnSync),
		MaxIO:          v.GetInt(KeyMaxIO),
	}
	c.Journal = jrnl.Options{
		Prefix:    v.GetString(KeyFilePrefix),
		Extension: v.GetString(KeyFileExtension),
		FileSize:  int64(fileSize), //nolint:gosec
		MinFiles:  v.GetInt(KeyMinFiles),
	}

	if err := c.Factory.Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return c, nil
}

func sizeValue(v *viper.Viper, key string) (uint64, error) {
	n, err := ParseSize(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	return n, nil
}

// ParseSize accepts a plain byte count or a human size such as "10M",
// "490KB". Units are powers of 1024.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	return bytefmt.ToBytes(strings.ToUpper(s))
}

// FormatSize renders n the way ParseSize reads it back.
func FormatSize(n uint64) string {
	return bytefmt.ByteSize(n)
}
