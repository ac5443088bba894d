//go:build !unix

package fsops

import (
	"errors"
	"syscall"
)

// ERROR_DIR_NOT_EMPTY on Windows
const errDirNotEmpty = syscall.Errno(145)

func isNotEmpty(err error) bool {
	return errors.Is(err, errDirNotEmpty)
}

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
