package detect

import (
	"errors"
	"fmt"
)

// ErrNoPath is returned when an empty path is handed to the estimator.
var ErrNoPath = errors.New("no path provided")

// ErrNotRegularFile is returned when sampling is attempted on a device, socket, fifo or directory.
type ErrNotRegularFile struct {
	Path string
}

func (e *ErrNotRegularFile) Error() string {
	return fmt.Sprintf("file '%s' is not a regular file", e.Path)
}

func NewErrNotRegularFile(path string) *ErrNotRegularFile {
	return &ErrNotRegularFile{Path: path}
}

// ErrBadPattern reports an extension pattern that does not compile.
type ErrBadPattern struct {
	Index   int
	Pattern string
	Err     error
}

func (e *ErrBadPattern) Error() string {
	return fmt.Sprintf("extension pattern #%d (%q) is invalid: %v", e.Index, e.Pattern, e.Err)
}

func (e *ErrBadPattern) Unwrap() error {
	return e.Err
}
