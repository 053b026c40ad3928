package logger

// Logger defines the interface for logging operations across jrnl.
// Fields are passed as alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})

	// Error logs an error-level message with the error and optional structured fields.
	Error(msg string, err error, fields ...interface{})
}

// Closeable is implemented by loggers that hold resources (files, sinks)
// which must be flushed on shutdown.
type Closeable interface {
	Close() error
}

// NoOpLogger discards all messages. Every constructor in jrnl falls back to
// it when handed a nil logger.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{})        {}
func (NoOpLogger) Info(string, ...interface{})         {}
func (NoOpLogger) Warn(string, ...interface{})         {}
func (NoOpLogger) Error(string, error, ...interface{}) {}

var _ Logger = NoOpLogger{}

// OrNoOp returns lg, or a NoOpLogger when lg is nil.
func OrNoOp(lg Logger) Logger {
	if lg == nil {
		return NoOpLogger{}
	}
	return lg
}
