package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/go-utils/helpers"
	goulog "github.com/julianstephens/go-utils/logger"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ConsoleLogger writes one line per message to stdout, and errors to stderr.
type ConsoleLogger struct {
	mu       sync.Mutex
	minLevel Level
	out      io.Writer
	err      io.Writer
}

// NewConsoleLogger creates a logger that writes to console (stdout/stderr).
// level is parsed with ParseLevel.
func NewConsoleLogger(level string) Logger {
	return &ConsoleLogger{
		minLevel: ParseLevel(level),
		out:      os.Stdout,
		err:      os.Stderr,
	}
}

func (cl *ConsoleLogger) Debug(msg string, fields ...interface{}) {
	cl.log(LevelDebug, msg, fields...)
}

func (cl *ConsoleLogger) Info(msg string, fields ...interface{}) {
	cl.log(LevelInfo, msg, fields...)
}

func (cl *ConsoleLogger) Warn(msg string, fields ...interface{}) {
	cl.log(LevelWarn, msg, fields...)
}

func (cl *ConsoleLogger) Error(msg string, err error, fields ...interface{}) {
	cl.log(LevelError, msg, append([]interface{}{"error", err}, fields...)...)
}

func (cl *ConsoleLogger) log(level Level, msg string, fields ...interface{}) {
	if !enabled(cl.minLevel, level) {
		return
	}

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(time.Now().Format(consoleTimeFormat))
	sb.WriteString("] ")
	sb.WriteString(strings.ToUpper(level.String()))
	sb.WriteString(": ")
	sb.WriteString(msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
	}
	sb.WriteString("\n")

	cl.mu.Lock()
	defer cl.mu.Unlock()
	w := cl.out
	if level == LevelError {
		w = cl.err
	}
	_, _ = io.WriteString(w, sb.String())
}

// FileLogger writes JSON lines to a rotating file through go-utils/logger.
type FileLogger struct {
	underlying *goulog.Logger
	filePath   string
}

// NewFileLogger creates a logger writing to logDir/logFileName, rotating at
// maxFileSizeMB and keeping maxBackups compressed backups.
func NewFileLogger(logDir string, logFileName string, maxFileSizeMB int, maxBackups int) (Logger, error) {
	if err := helpers.Ensure(logDir, true); err != nil {
		return nil, wrapLoggerErr("create file logger", ErrLogCreate, err, logDir)
	}

	logPath := filepath.Join(logDir, logFileName)
	underlying := goulog.New()
	maxAge := 28
	if err := underlying.SetFileOutputWithConfig(goulog.FileRotationConfig{
		Filename:   logPath,
		MaxSize:    maxFileSizeMB,
		MaxBackups: &maxBackups,
		MaxAge:     &maxAge,
		Compress:   true,
	}); err != nil {
		return nil, wrapLoggerErr("create file logger", ErrLogCreate, err, logPath)
	}

	return &FileLogger{
		underlying: underlying,
		filePath:   logPath,
	}, nil
}

func (fl *FileLogger) Debug(msg string, fields ...interface{}) {
	if len(fields) == 0 {
		fl.underlying.Debug(msg)
		return
	}
	fl.underlying.WithFields(fieldsToMap(fields)).Debug(msg)
}

func (fl *FileLogger) Info(msg string, fields ...interface{}) {
	if len(fields) == 0 {
		fl.underlying.Info(msg)
		return
	}
	fl.underlying.WithFields(fieldsToMap(fields)).Info(msg)
}

func (fl *FileLogger) Warn(msg string, fields ...interface{}) {
	if len(fields) == 0 {
		fl.underlying.Warn(msg)
		return
	}
	fl.underlying.WithFields(fieldsToMap(fields)).Warn(msg)
}

func (fl *FileLogger) Error(msg string, err error, fields ...interface{}) {
	errText := "<nil>"
	if err != nil {
		errText = err.Error()
	}
	fl.underlying.WithFields(fieldsToMap(append([]interface{}{"error", errText}, fields...))).Error(msg)
}

// Close is a no-op; go-utils/logger writes through on every entry.
func (fl *FileLogger) Close() error {
	return nil
}

// Path returns the active log file path.
func (fl *FileLogger) Path() string {
	return fl.filePath
}

func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		result[fmt.Sprintf("%v", fields[i])] = fields[i+1]
	}
	return result
}

// MultiLogger fans every call out to several loggers.
type MultiLogger struct {
	loggers []Logger
}

func NewMultiLogger(loggers ...Logger) Logger {
	return &MultiLogger{loggers: loggers}
}

func (ml *MultiLogger) Debug(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Debug(msg, fields...)
	}
}

func (ml *MultiLogger) Info(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Info(msg, fields...)
	}
}

func (ml *MultiLogger) Warn(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Warn(msg, fields...)
	}
}

func (ml *MultiLogger) Error(msg string, err error, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Error(msg, err, fields...)
	}
}

// Close closes every Closeable child, attempting all of them, and reports
// the last failure.
func (ml *MultiLogger) Close() error {
	var lastErr error
	for _, lg := range ml.loggers {
		if c, ok := lg.(Closeable); ok {
			if err := c.Close(); err != nil {
				lastErr = err
			}
		}
	}
	if lastErr != nil {
		return wrapLoggerErr("close multi logger", ErrLogClose, lastErr, "")
	}
	return nil
}
