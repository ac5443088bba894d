//go:build unix

package fsops

import (
	"os"

	"golang.org/x/sys/unix"
)

func rmdir(path string) error {
	for {
		err := unix.Rmdir(path)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return &os.PathError{Op: "rmdir", Path: path, Err: err}
		}
		return nil
	}
}
