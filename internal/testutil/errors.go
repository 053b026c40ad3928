package testutil

// Error is a named error for fault injection.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(msg string) *Error {
	return &Error{Message: msg}
}
