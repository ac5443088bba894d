package fsops

// OSDeleter implements Deleter with the platform's non-recursive rmdir.
// The kernel refuses non-empty directories atomically, which is the last
// line of defence against races with other writers.
type OSDeleter struct{}

func (OSDeleter) Rmdir(path string) error {
	return rmdir(path)
}
