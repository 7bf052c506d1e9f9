package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/logger"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"go.uber.org/zap"
)

// stampRe matches the timestamp segment VersionName embeds before the extension.
var stampRe = regexp.MustCompile(`_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}`)

type versionFile struct {
	path    string
	modTime time.Time
}

type Retention struct {
	now func() time.Time
}

func NewRetention() *Retention {
	return &Retention{now: time.Now}
}

// Prune bounds the version store by age and by count per original file, then
// sweeps out directories left empty. Every deletion is best-effort: one
// failure is logged and the rest of the candidates are still processed.
func (r *Retention) Prune(versionRoot string, settings model.Settings) {
	if _, err := os.Stat(versionRoot); os.IsNotExist(err) {
		return
	}

	files := collectVersions(versionRoot)

	if settings.RetentionDays > 0 {
		files = r.pruneByAge(files, settings.RetentionDays)
	}

	if settings.MaxVersions > 0 {
		r.pruneByCount(files, settings.MaxVersions)
	}

	removeEmptyDirs(versionRoot)
}

// pruneByAge deletes versions older than the cutoff and returns the survivors.
func (r *Retention) pruneByAge(files []versionFile, days int) []versionFile {
	cutoff := r.now().AddDate(0, 0, -days)

	kept := files[:0]
	for _, f := range files {
		if f.modTime.After(cutoff) {
			kept = append(kept, f)
			continue
		}

		if err := os.Remove(f.path); err != nil {
			logger.Log.Warn("failed to delete expired version",
				zap.String("path", f.path),
				zap.Error(err))
			kept = append(kept, f)
		}
	}

	return kept
}

// pruneByCount groups versions by their original identity (directory plus
// name with the timestamp segment stripped) and keeps only the newest max.
func (r *Retention) pruneByCount(files []versionFile, max int) {
	groups := make(map[string][]versionFile)
	for _, f := range files {
		groups[baseIdentity(f.path)] = append(groups[baseIdentity(f.path)], f)
	}

	for _, group := range groups {
		if len(group) <= max {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			return group[i].modTime.After(group[j].modTime)
		})

		for _, f := range group[max:] {
			if err := os.Remove(f.path); err != nil {
				logger.Log.Warn("failed to delete surplus version",
					zap.String("path", f.path),
					zap.Error(err))
			}
		}
	}
}

// baseIdentity recovers the original file identity from a version path.
func baseIdentity(path string) string {
	dir := filepath.Dir(path)
	name := stampRe.ReplaceAllString(filepath.Base(path), "")
	return filepath.Join(dir, name)
}

func collectVersions(root string) []versionFile {
	var files []versionFile

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Log.Warn("retention walk error",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, versionFile{path: path, modTime: info.ModTime()})
		return nil
	})

	return files
}

// removeEmptyDirs deletes directories under root that no longer hold
// anything, deepest first. The root itself stays.
func removeEmptyDirs(root string) {
	var dirs []string

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i]) > len(dirs[j])
	})

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}

		if err := os.Remove(dir); err != nil {
			logger.Log.Warn("failed to remove empty dir",
				zap.String("path", dir),
				zap.Error(err))
		}
	}
}
