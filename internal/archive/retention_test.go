package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agedVersion(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()

	mtime := time.Now().Add(-age)
	path := filepath.Join(root, VersionName(name, mtime))
	writeFile(t, path, "v", mtime)
	return path
}

func TestPruneByAge(t *testing.T) {
	root := t.TempDir()

	fresh := agedVersion(t, root, "a.txt", 10*24*time.Hour)
	old := agedVersion(t, root, "b.txt", 40*24*time.Hour)
	ancient := agedVersion(t, root, "c.txt", 400*24*time.Hour)

	NewRetention().Prune(root, model.Settings{RetentionDays: 30})

	assert.FileExists(t, fresh)
	assert.NoFileExists(t, old)
	assert.NoFileExists(t, ancient)
}

func TestRetentionZeroKeepsForever(t *testing.T) {
	root := t.TempDir()

	ancient := agedVersion(t, root, "c.txt", 400*24*time.Hour)

	NewRetention().Prune(root, model.Settings{RetentionDays: 0})

	assert.FileExists(t, ancient)
}

func TestPruneByCountKeepsNewest(t *testing.T) {
	root := t.TempDir()

	var paths []string
	for i := 0; i < 5; i++ {
		paths = append(paths, agedVersion(t, root, "report.txt", time.Duration(i+1)*24*time.Hour))
	}

	NewRetention().Prune(root, model.Settings{MaxVersions: 2})

	// The two newest survive, the three oldest go.
	assert.FileExists(t, paths[0])
	assert.FileExists(t, paths[1])
	for _, path := range paths[2:] {
		assert.NoFileExists(t, path)
	}
}

func TestPruneByCountGroupsByDirectory(t *testing.T) {
	root := t.TempDir()

	// Same original name in two directories: separate identities.
	a := agedVersion(t, filepath.Join(root, "x"), "f.txt", 24*time.Hour)
	b := agedVersion(t, filepath.Join(root, "y"), "f.txt", 48*time.Hour)

	NewRetention().Prune(root, model.Settings{MaxVersions: 1})

	assert.FileExists(t, a)
	assert.FileExists(t, b)
}

func TestPruneRemovesEmptyDirs(t *testing.T) {
	root := t.TempDir()

	doomed := agedVersion(t, filepath.Join(root, "sub", "deep"), "old.txt", 400*24*time.Hour)
	kept := agedVersion(t, filepath.Join(root, "live"), "new.txt", time.Hour)

	NewRetention().Prune(root, model.Settings{RetentionDays: 30})

	assert.NoFileExists(t, doomed)
	assert.NoDirExists(t, filepath.Join(root, "sub"))
	assert.FileExists(t, kept)
	assert.DirExists(t, root)
}

func TestPruneIsIdempotent(t *testing.T) {
	root := t.TempDir()

	agedVersion(t, root, "a.txt", 10*24*time.Hour)
	agedVersion(t, root, "a.txt", 40*24*time.Hour)
	agedVersion(t, root, "b.txt", 5*24*time.Hour)

	settings := model.Settings{RetentionDays: 30, MaxVersions: 2}
	retention := NewRetention()

	retention.Prune(root, settings)
	after := listFiles(t, root)

	retention.Prune(root, settings)
	assert.Equal(t, after, listFiles(t, root))
	assert.Len(t, after, 2)
}

func TestPruneMissingStoreIsNoop(t *testing.T) {
	NewRetention().Prune(filepath.Join(t.TempDir(), "nope"), model.Settings{RetentionDays: 1})
}

func TestBaseIdentityStripsStamp(t *testing.T) {
	assert.Equal(t,
		filepath.Join("dir", "report.txt"),
		baseIdentity(filepath.Join("dir", "report_2026-05-01_12-30-45.txt")))
	assert.Equal(t,
		filepath.Join("dir", "noext"),
		baseIdentity(filepath.Join("dir", "noext_2026-05-01_12-30-45")))
}

func TestPruneSurvivesUndeletableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions do not bind for root")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	doomed := agedVersion(t, locked, "a.txt", 400*24*time.Hour)
	other := agedVersion(t, root, "b.txt", 400*24*time.Hour)

	require.NoError(t, os.Chmod(locked, 0555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	NewRetention().Prune(root, model.Settings{RetentionDays: 30})

	// The undeletable file is logged and skipped; the rest is still pruned.
	assert.FileExists(t, doomed)
	assert.NoFileExists(t, other)
}
