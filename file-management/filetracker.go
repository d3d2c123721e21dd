package filemanagement

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yeti47/mocap/common"
)

// FileTracker manages local clip files
type FileTracker interface {
	// DeleteFile removes a file from disk
	DeleteFile(filePath string)

	// EnsureOutputDirectory creates the output directory if it doesn't exist
	EnsureOutputDirectory() error

	// CleanupStaleFiles removes leftovers of interrupted assemblies and returns how many were removed
	CleanupStaleFiles() int
}

// LocalFileTracker implements FileTracker for local filesystem
type LocalFileTracker struct {
	outputDir string
	logger    common.Logger
	mu        sync.Mutex
}

// NewLocalFileTracker creates a new local file tracker
func NewLocalFileTracker(outputDir string, logger common.Logger) *LocalFileTracker {
	if logger == nil {
		logger = common.NopLogger
	}
	return &LocalFileTracker{
		outputDir: outputDir,
		logger:    logger,
	}
}

// DeleteFile removes a file from disk and prunes directories it leaves empty below the output directory
func (t *LocalFileTracker) DeleteFile(filePath string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		t.logger.Error("Failed to remove file", "path", filePath, "error", err)
		return
	}
	t.logger.Debug("Deleted file", "path", filePath)

	root := filepath.Clean(t.outputDir)
	for dir := filepath.Dir(filePath); isBelow(root, dir); dir = filepath.Dir(dir) {
		// fails for non-empty directories
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

func (t *LocalFileTracker) EnsureOutputDirectory() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.outputDir, 0755); err != nil {
		return err
	}
	t.logger.Info("Output directory ready", "path", t.outputDir)
	return nil
}

// CleanupStaleFiles removes hidden raw encodings and empty reserved clip files below the output directory
func (t *LocalFileTracker) CleanupStaleFiles() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	err := filepath.WalkDir(t.outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == t.outputDir {
				return err
			}
			t.logger.Warn("Failed to read directory entry", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !isStale(d) {
			return nil
		}

		t.logger.Info("Cleaning up stale file", "path", path)
		if err := os.Remove(path); err != nil {
			t.logger.Error("Failed to remove stale file", "path", path, "error", err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.logger.Error("Failed to scan output directory", "path", t.outputDir, "error", err)
	}
	return removed
}

func isStale(d fs.DirEntry) bool {
	name := d.Name()
	if strings.HasPrefix(name, ".") && strings.Contains(name, ".raw") {
		return true
	}
	if !strings.HasPrefix(name, "output.") {
		return false
	}
	info, err := d.Info()
	return err == nil && info.Size() == 0
}

func isBelow(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
