package fsops

import (
	"errors"
	"io/fs"

	"dirsweep/internal/model"
)

// ErrChanged is returned when the directory opened for enumeration is not
// the one examined a moment earlier.
var ErrChanged = errors.New("directory changed between probes")

// IsNotExist reports a missing path, including a non-directory component in
// its parent chain.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || isNotDir(err)
}

// IsPermission reports an access denial.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// IsNotEmpty reports that a removal failed because the directory has entries.
func IsNotEmpty(err error) bool {
	return isNotEmpty(err)
}

// IsNotDir reports that an operation expected a directory but found something else.
func IsNotDir(err error) bool {
	return isNotDir(err)
}

// RemovalReason maps a failed removal to a result reason.
func RemovalReason(err error) model.Reason {
	switch {
	case IsNotEmpty(err):
		return model.ReasonNotEmpty
	case errors.Is(err, fs.ErrNotExist):
		return model.ReasonNotExists
	case IsPermission(err):
		return model.ReasonPermissionDenied
	default:
		return model.ReasonIOError
	}
}
