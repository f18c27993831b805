// Package iconerr defines the failure kinds shared by the icon extraction packages.
// Components wrap one of these sentinels so callers can classify a failure with errors.Is.
package iconerr

import "errors"

var (
	// ErrIO reports a missing or unreadable file or a failed read.
	ErrIO = errors.New("i/o error")
	// ErrFormat reports a broken container signature, a header field outside the file
	// or a resource directory entry escaping the resource section.
	ErrFormat = errors.New("format error")
	// ErrResourceNotFound reports a missing resource section, icon group or icon image.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrDecode reports an unsupported or corrupt icon payload.
	ErrDecode = errors.New("decode error")
)
