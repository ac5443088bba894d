package fsops

import "sync"

// FakeDeleter implements Deleter for testing.
// Records every call; Hook, when set, decides the outcome instead of
// returning nil.
type FakeDeleter struct {
	mu    sync.Mutex
	Calls []string
	Hook  func(path string) error
}

func (f *FakeDeleter) Rmdir(path string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, "rmdir:"+path)
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		return hook(path)
	}
	return nil
}

// CallCount returns the number of recorded calls.
func (f *FakeDeleter) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
