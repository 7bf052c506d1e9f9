// Package archive preserves destination files that a copy run is about to
// overwrite or delete, and bounds the resulting version store.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benjamin-macmichael/RobocopyManager/internal/logger"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"go.uber.org/zap"
)

// timestampTolerance absorbs timestamp-resolution differences between source
// and destination volumes. The copy tool uses the same slack when deciding
// what to overwrite, so tightening it would make the two disagree.
const timestampTolerance = 2 * time.Second

const stampLayout = "2006-01-02_15-04-05"

// SystemExclusions are folder names never worth walking into or copying;
// the coordinator also passes them to the copy tool's exclusion flags.
var SystemExclusions = []string{"$RECYCLE.BIN", "System Volume Information"}

// artifactNames are incidental OS files never worth preserving.
var artifactNames = []string{".ds_store", "thumbs.db", "desktop.ini"}

type Engine struct {
	retention *Retention
}

func NewEngine() *Engine {
	return &Engine{retention: NewRetention()}
}

// Run walks the job's destination, preserves every file the upcoming copy
// would overwrite or delete, then prunes the version store. Per-file failures
// are logged and skipped; only a broken walk is an error.
func (e *Engine) Run(job model.Job, settings model.Settings) error {
	if _, err := os.Stat(job.DstPath); os.IsNotExist(err) {
		return nil
	}

	versionRoot := filepath.Join(job.DstPath, model.VersionFolder)
	excluded := append(append([]string{model.VersionFolder}, SystemExclusions...), job.ExcludeList()...)

	preserved := 0
	err := filepath.WalkDir(job.DstPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Log.Warn("archive walk error",
				zap.String("path", path),
				zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != job.DstPath && isExcludedDir(d.Name(), excluded) {
				return fs.SkipDir
			}
			return nil
		}

		if isArtifact(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(job.DstPath, path)
		if err != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Log.Warn("archive stat failed",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}

		if !e.atRisk(job.SrcPath, rel, info, settings) {
			return nil
		}

		if err := preserve(path, versionRoot, rel, info); err != nil {
			logger.Log.Warn("failed to preserve version",
				zap.String("path", path),
				zap.Error(err))
			return nil
		}

		preserved++
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive walk failed: %w", err)
	}

	if preserved > 0 {
		logger.Log.Info("versions preserved",
			zap.Uint("job", job.ID),
			zap.Int("files", preserved))
	}

	e.retention.Prune(versionRoot, settings)
	return nil
}

// atRisk classifies one destination file using the copy tool's own
// change-detection semantics: a file is about to be overwritten iff the
// source counterpart exists and differs in size or by more than the
// timestamp tolerance; a destination-only file is about to be deleted iff
// the run deletes from the destination at all.
func (e *Engine) atRisk(srcRoot, rel string, dstInfo fs.FileInfo, settings model.Settings) bool {
	srcInfo, err := os.Stat(filepath.Join(srcRoot, rel))
	if os.IsNotExist(err) {
		return settings.DeletesFromDst()
	}
	if err != nil {
		logger.Log.Warn("archive source stat failed",
			zap.String("rel", rel),
			zap.Error(err))
		return false
	}

	if srcInfo.Size() != dstInfo.Size() {
		return true
	}

	delta := srcInfo.ModTime().Sub(dstInfo.ModTime())
	if delta < 0 {
		delta = -delta
	}
	return delta > timestampTolerance
}

// preserve copies one destination file into the version store as
// <version-folder>/<rel-dir>/<base>_<mtime>.<ext>, keeping the file's own
// modification time so retention ages the content, not the copy.
func preserve(srcFile, versionRoot, rel string, info fs.FileInfo) error {
	dst := filepath.Join(versionRoot, filepath.Dir(rel), VersionName(info.Name(), info.ModTime()))

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create version dir: %w", err)
	}

	if err := copyFile(srcFile, dst); err != nil {
		return err
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		logger.Log.Warn("failed to set version mtime",
			zap.String("path", dst),
			zap.Error(err))
	}

	return nil
}

// VersionName builds the stored name for a preserved file: the base name,
// the file's last-modified time at second precision, then the extension.
func VersionName(name string, mtime time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "_" + mtime.Format(stampLayout) + ext
}

func isExcludedDir(name string, excluded []string) bool {
	for _, ex := range excluded {
		if strings.EqualFold(name, ex) {
			return true
		}
	}
	return false
}

func isArtifact(name string) bool {
	lower := strings.ToLower(name)
	for _, a := range artifactNames {
		if lower == a {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(in)

	tmp := dst + ".robosync.tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}
