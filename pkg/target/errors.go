package target

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported means the capability is intentionally not implemented
	// on this backend.
	ErrUnsupported = errors.New("not supported by this backend")

	// ErrAlreadyExists guards idempotent re-initialization, e.g. calling
	// UpdateInfo twice for the same pid.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNativeBackendUnavailable is returned by Create and Attach on hosts
	// where no native debugging backend is compiled in.
	ErrNativeBackendUnavailable = errors.New("native backend not available on this system")

	// Translations of native OS error codes, produced by Platform.TranslateError.
	ErrProcessNotFound  = errors.New("process not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidHandle    = errors.New("invalid handle")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoMemory         = errors.New("out of memory")
)

// ErrProcessExited indicates that the process being controlled has exited.
type ErrProcessExited struct {
	Pid    int
	Status int
}

func (pe ErrProcessExited) Error() string {
	return fmt.Sprintf("process %d has exited with status %d", pe.Pid, pe.Status)
}
