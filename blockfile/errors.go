package blockfile

import "errors"

// Error wraps a blockfile operation failure with the offending path.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return "blockfile: " + e.Op + ": " + e.Path + ": " + e.Err.Error()
	}
	return "blockfile: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinel causes wrapped by Error.
var (
	ErrBlockTooSmall = errors.New("block length too small for header")
	ErrBadAddress    = errors.New("block address out of range")
)
