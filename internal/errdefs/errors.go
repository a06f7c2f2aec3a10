package errdefs

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAuthentication   = errors.New("authentication error")
	ErrBadRequest       = errors.New("bad request")
	ErrAlreadyExists    = errors.New("already exists")
	ErrProtocol         = errors.New("git protocol failure")
	ErrStorage          = errors.New("repository storage failure")
	// ErrPathEscape is reported to clients as ErrNotFound.
	ErrPathEscape = errors.New("path escapes repository root")
)

var ErrConflict = errors.New("conflicting concurrent update")
