package logger

import "errors"

var (
	ErrLogCreate = errors.New("logger: create error")
	ErrLogClose  = errors.New("logger: close error")
)

type LoggerError struct {
	Op    string // e.g. "create file logger"
	Err   error
	Cause error
	Path  string
}

func (e *LoggerError) Error() string {
	msg := e.Op + " error"
	if e.Path != "" {
		msg += " on " + e.Path
	}
	msg += ": " + e.Err.Error()
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *LoggerError) Unwrap() error {
	return e.Err
}

func wrapLoggerErr(op string, err, cause error, path string) error {
	return &LoggerError{
		Op:    op,
		Err:   err,
		Cause: cause,
		Path:  path,
	}
}
