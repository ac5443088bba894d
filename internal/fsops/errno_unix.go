//go:build unix

package fsops

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isNotEmpty(err error) bool {
	// some systems report EEXIST for rmdir on a non-empty directory
	return errors.Is(err, unix.ENOTEMPTY) || errors.Is(err, unix.EEXIST)
}

func isNotDir(err error) bool {
	return errors.Is(err, unix.ENOTDIR)
}
