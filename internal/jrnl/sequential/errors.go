package sequential

import (
	"errors"
	"fmt"
)

var (
	ErrOpen               = errors.New("sequential: open failed")
	ErrWrite              = errors.New("sequential: write failed")
	ErrSync               = errors.New("sequential: sync failed")
	ErrClose              = errors.New("sequential: close failed")
	ErrRemove             = errors.New("sequential: remove failed")
	ErrFileClosed         = errors.New("sequential: file closed")
	ErrFileNotOpen        = errors.New("sequential: file not open")
	ErrUnsupportedBackend = errors.New("sequential: backend not supported on this platform")
	ErrInvalidConfig      = errors.New("sequential: invalid config")
)

// IOError is returned by every File operation that touches the OS, and is
// handed to IOCallback.OnError for asynchronous failures.
type IOError struct {
	Op   string // "open", "write", "sync", "close", "list", "remove"
	Name string
	Err  error // one of the sentinels above
	// Cause is the underlying OS error, if any.
	Cause error
}

func (e *IOError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err carries an *IOError.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}

func wrapIOErr(op, name string, sentinel, cause error) error {
	return &IOError{Op: op, Name: name, Err: sentinel, Cause: cause}
}
