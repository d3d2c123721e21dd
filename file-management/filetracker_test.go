package filemanagement

import (
	"os"
	"path/filepath"
	"testing"
)

func setupFileTrackerTest(t *testing.T) (*LocalFileTracker, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	tracker := NewLocalFileTracker(dir, nil)
	if err := tracker.EnsureOutputDirectory(); err != nil {
		t.Fatalf("EnsureOutputDirectory failed: %v", err)
	}
	return tracker, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestDeleteFile_PrunesEmptyDirectories(t *testing.T) {
	tracker, dir := setupFileTrackerTest(t)

	clip := filepath.Join(dir, "2024", "06", "output.mp4")
	sibling := filepath.Join(dir, "2024", "keep.mp4")
	writeFile(t, clip, "x")
	writeFile(t, sibling, "x")

	tracker.DeleteFile(clip)

	if exists(clip) {
		t.Error("Expected clip to be deleted")
	}
	if exists(filepath.Join(dir, "2024", "06")) {
		t.Error("Expected empty directory to be pruned")
	}
	if !exists(sibling) {
		t.Error("Expected sibling to remain")
	}
	if !exists(dir) {
		t.Error("Output directory itself must never be removed")
	}
}

func TestDeleteFile_MissingFileIsIgnored(t *testing.T) {
	tracker, dir := setupFileTrackerTest(t)
	tracker.DeleteFile(filepath.Join(dir, "missing.mp4"))
	if !exists(dir) {
		t.Error("Output directory must survive")
	}
}

func TestCleanupStaleFiles(t *testing.T) {
	tracker, dir := setupFileTrackerTest(t)

	raw := filepath.Join(dir, ".output.2024.06.15.12.00.00.raw.avi")
	reserved := filepath.Join(dir, "sub", "output.2024.06.15.12.00.01.mp4")
	finished := filepath.Join(dir, "output.2024.06.15.12.00.02.mp4")
	other := filepath.Join(dir, "notes.txt")
	writeFile(t, raw, "partial")
	writeFile(t, reserved, "")
	writeFile(t, finished, "video")
	writeFile(t, other, "")

	if removed := tracker.CleanupStaleFiles(); removed != 2 {
		t.Errorf("Expected 2 stale files removed, got %d", removed)
	}
	if exists(raw) || exists(reserved) {
		t.Error("Expected stale files to be removed")
	}
	if !exists(finished) || !exists(other) {
		t.Error("Expected other files to remain")
	}
}

func TestCleanupStaleFiles_MissingDirectory(t *testing.T) {
	tracker := NewLocalFileTracker(filepath.Join(t.TempDir(), "none"), nil)
	if removed := tracker.CleanupStaleFiles(); removed != 0 {
		t.Errorf("Expected nothing removed, got %d", removed)
	}
}
