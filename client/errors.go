package client

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned by MakeDir when the directory is already there
	ErrAlreadyExists = errors.New("remote entry already exists")
	// ErrNotFound is returned when a remote file or directory does not exist
	ErrNotFound = errors.New("remote entry not found")
	// ErrNotConnected is returned when an operation is attempted before Connect
	ErrNotConnected = errors.New("not connected to remote store")
)

// RemoteError represents a failed remote store operation
type RemoteError struct {
	Op          string
	Path        string
	Recoverable bool
	Err         error
}

func (e *RemoteError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRecoverableRemoteError creates a RemoteError worth retrying later
func NewRecoverableRemoteError(op, path string, inner error) *RemoteError {
	return &RemoteError{Op: op, Path: path, Recoverable: true, Err: inner}
}

// NewNonRecoverableRemoteError creates a RemoteError that will fail again on retry
func NewNonRecoverableRemoteError(op, path string, inner error) *RemoteError {
	return &RemoteError{Op: op, Path: path, Recoverable: false, Err: inner}
}

// IsRemoteError checks if the error is or wraps a RemoteError
func IsRemoteError(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}

// IsRecoverable returns true if the error wraps a recoverable RemoteError
func IsRecoverable(err error) bool {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Recoverable
	}
	return false
}
