package fsops

// Deleter abstracts the directory removal primitive.
// Implementations must never remove anything but an empty directory;
// there is deliberately no recursive variant.
type Deleter interface {
	Rmdir(path string) error
}
