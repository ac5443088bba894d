package probe

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirsweep/internal/model"
)

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

func TestProbeEmptyDirectory(t *testing.T) {
	dir := mkdir(t, t.TempDir(), "empty")

	out := (&Verifier{}).Probe(dir)

	assert.False(t, out.Terminal())
	assert.True(t, out.EmptyVerified)
	assert.Equal(t, model.Probe{Exists: true, IsDir: true, EntriesCount: 0}, out.Probe)
	assert.Equal(t, dir, out.Target)
}

func TestProbeCountsAnyEntry(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{"dotfile", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, ".keep"), nil, 0o644))
		}},
		{"subdirectory", func(t *testing.T, dir string) {
			mkdir(t, dir, "child")
		}},
		{"dangling symlink", func(t *testing.T, dir string) {
			if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "link")); err != nil {
				t.Skipf("symlinks unsupported: %v", err)
			}
		}},
		{"many files", func(t *testing.T, dir string) {
			for i := 0; i < 50; i++ {
				require.NoError(t, os.WriteFile(filepath.Join(dir, string(rune('a'+i%26))+string(rune('0'+i/26))), nil, 0o644))
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := mkdir(t, t.TempDir(), "d")
			tt.setup(t, dir)

			out := (&Verifier{}).Probe(dir)

			assert.Equal(t, model.ReasonNotEmpty, out.Reason)
			assert.Equal(t, model.StatusSkipped, out.Status)
			assert.Equal(t, 1, out.Probe.EntriesCount, "enumeration stops at the first entry")
			assert.False(t, out.EmptyVerified)
		})
	}
}

func TestProbeNotExists(t *testing.T) {
	out := (&Verifier{}).Probe(filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, model.ReasonNotExists, out.Reason)
	assert.Equal(t, model.StatusSkipped, out.Status)
	assert.False(t, out.Probe.Exists)
	assert.Equal(t, model.EntryCountUnknown, out.Probe.EntriesCount)
}

func TestProbeFileInParentChain(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	out := (&Verifier{}).Probe(filepath.Join(file, "child"))

	assert.Equal(t, model.ReasonNotExists, out.Reason)
}

func TestProbeNotDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	out := (&Verifier{}).Probe(file)

	assert.Equal(t, model.ReasonNotDir, out.Reason)
	assert.True(t, out.Probe.Exists)
	assert.False(t, out.Probe.IsDir)
}

func TestProbeSymlinks(t *testing.T) {
	base := t.TempDir()
	target := mkdir(t, base, "target")
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	dangling := filepath.Join(base, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(base, "gone"), dangling))
	fileLink := filepath.Join(base, "filelink")
	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	require.NoError(t, os.Symlink(file, fileLink))

	t.Run("refused by default", func(t *testing.T) {
		out := (&Verifier{}).Probe(link)
		assert.Equal(t, model.ReasonSymlinkDirRefused, out.Reason)
		assert.True(t, out.Probe.IsSymlink)
		assert.True(t, out.Probe.IsDir)
		assert.Equal(t, model.EntryCountUnknown, out.Probe.EntriesCount, "no enumeration")
	})

	t.Run("followed", func(t *testing.T) {
		out := (&Verifier{FollowSymlinks: true}).Probe(link)
		require.False(t, out.Terminal(), out.Message)
		assert.True(t, out.EmptyVerified)
		assert.True(t, out.Probe.IsSymlink)
		resolved, err := filepath.EvalSymlinks(target)
		require.NoError(t, err)
		assert.Equal(t, resolved, out.Target)
	})

	t.Run("followed target vetted", func(t *testing.T) {
		var checked string
		v := &Verifier{
			FollowSymlinks: true,
			TargetCheck: func(p string) model.Reason {
				checked = p
				return model.ReasonProtectedRoot
			},
		}
		out := v.Probe(link)
		assert.Equal(t, model.ReasonProtectedRoot, out.Reason)
		assert.NotEmpty(t, checked)
		assert.Contains(t, out.Message, "not permitted")
	})

	t.Run("dangling", func(t *testing.T) {
		out := (&Verifier{FollowSymlinks: true}).Probe(dangling)
		assert.Equal(t, model.ReasonNotDir, out.Reason)
		assert.True(t, out.Probe.IsSymlink)
		assert.Contains(t, out.Message, "symlink target unavailable")
	})

	t.Run("link to file", func(t *testing.T) {
		out := (&Verifier{FollowSymlinks: true}).Probe(fileLink)
		assert.Equal(t, model.ReasonNotDir, out.Reason)
	})
}

func TestProbePermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	dir := mkdir(t, t.TempDir(), "locked")
	require.NoError(t, os.Chmod(dir, 0o000))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	out := (&Verifier{}).Probe(dir)

	assert.Equal(t, model.ReasonPermissionDenied, out.Reason)
	assert.Equal(t, model.StatusSkipped, out.Status)
	assert.Equal(t, model.EntryCountUnknown, out.Probe.EntriesCount)
	assert.NotEmpty(t, out.Message)
}

func TestFirstEntryDetectsReplacement(t *testing.T) {
	base := t.TempDir()
	dir := mkdir(t, base, "d")
	info, err := os.Lstat(dir)
	require.NoError(t, err)

	// replace the directory with a different one of the same name; both
	// exist at once so they cannot share an inode
	other := mkdir(t, base, "other")
	require.NoError(t, os.Remove(dir))
	require.NoError(t, os.Rename(other, dir))

	n, err := firstEntry(dir, info)
	require.Error(t, err)
	assert.Equal(t, model.EntryCountUnknown, n)
	assert.Contains(t, err.Error(), "changed")

	out := Outcome{Probe: model.UnknownProbe()}.enumFailure(err)
	assert.Equal(t, model.ReasonIOError, out.Reason)
	assert.Equal(t, model.StatusError, out.Status)
}
