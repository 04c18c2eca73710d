package domain

import "errors"

// Failure classes of a backup run. Adapters wrap their errors with one of
// these so the caller can map them to an exit code with errors.Is.
var (
	ErrConfig  = errors.New("config error")
	ErrDump    = errors.New("dump error")
	ErrStorage = errors.New("storage error")
	ErrUpload  = errors.New("upload error")
)
