// Package vfs implements the in-memory POSIX-shaped virtual filesystem:
// inode table, directory entries, symlink resolution, hard links and the
// permission/time bits described by the service's data model.
package vfs

import "fmt"

// Errno is the POSIX-flavoured error taxonomy the core propagates to
// clients unchanged. It is a small closed set, not the full errno space.
type Errno string

// The symbolic error codes the service propagates to clients unchanged.
const (
	ENOENT    Errno = "ENOENT"
	EEXIST    Errno = "EEXIST"
	EISDIR    Errno = "EISDIR"
	ENOTDIR   Errno = "ENOTDIR"
	ENOTEMPTY Errno = "ENOTEMPTY"
	EINVAL    Errno = "EINVAL"
	EPERM     Errno = "EPERM"
	EACCES    Errno = "EACCES"
	ELOOP     Errno = "ELOOP"
)

var messages = map[Errno]string{
	ENOENT:    "no such file or directory",
	EEXIST:    "file already exists",
	EISDIR:    "is a directory",
	ENOTDIR:   "not a directory",
	ENOTEMPTY: "directory not empty",
	EINVAL:    "invalid argument",
	EPERM:     "operation not permitted",
	EACCES:    "permission denied",
	ELOOP:     "too many levels of symbolic links",
}

// Error is a VFS-level error carrying a symbolic code, a human message and
// (when applicable) the path that triggered it. The RPC layer maps Code to
// an HTTP status; tool handlers convert it to a text content block.
type Error struct {
	Code    Errno
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an *Error for code at path, using the taxonomy's default
// message.
func NewError(code Errno, path string) *Error {
	return &Error{Code: code, Message: messages[code], Path: path}
}

// NewErrorf builds an *Error for code at path with a custom message.
func NewErrorf(code Errno, path string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// Is reports whether err is a *Error with the given code, so callers can
// write `errors.Is`-style checks without importing this package's internals.
func Is(err error, code Errno) bool {
	ve, ok := err.(*Error)
	return ok && ve.Code == code
}
