package cli

import (
	"os"
	"path/filepath"

	"github.com/julianstephens/jrnl/internal/jrnl"
	"github.com/julianstephens/jrnl/internal/logger"
)

type LogOpts struct {
	Level  string `help:"Logging level (debug, info, warn, error)"          default:"info"    envvar:"JRNL_LOG_LEVEL"`
	Debug  bool   `help:"Enable debug logging (overrides --level)"                            envvar:"JRNL_DEBUG"`
	Stream bool   `help:"Log to stderr only, without a log file"                              envvar:"JRNL_LOG_STREAM"`
	Format string `help:"Stream log format"                                 default:"console" envvar:"JRNL_LOG_FORMAT" enum:"console,json"`
	Dir    string `help:"Log file directory (default ~/.jrnl/logs)"         type:"path"       envvar:"JRNL_LOG_DIR"`
}

// NewLogger builds the logger the CLI hands to every command: a stream
// logger, plus a rotating file logger unless Stream is set.
func NewLogger(opts LogOpts) (logger.Logger, error) {
	level := opts.Level
	if opts.Debug {
		level = "debug"
	}

	var stream logger.Logger
	if opts.Format == "json" {
		zl, err := logger.NewZapLogger(level)
		if err != nil {
			return nil, err
		}
		stream = zl
	} else {
		stream = logger.NewConsoleLogger(level)
	}
	if opts.Stream {
		return stream, nil
	}

	logDir := opts.Dir
	if logDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir = filepath.Join(home, jrnl.DefaultAppDir, jrnl.DefaultLogDir)
	}
	fileLogger, err := logger.NewFileLogger(logDir, jrnl.DefaultLogFileName, jrnl.DefaultLogMaxSize, jrnl.DefaultLogMaxBackups)
	if err != nil {
		return nil, err
	}
	return logger.NewMultiLogger(fileLogger, stream), nil
}
