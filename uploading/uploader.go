package uploading

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yeti47/mocap/client"
	"github.com/yeti47/mocap/common"
)

// Uploader stores local files on a remote store under the same relative path they have locally.
type Uploader struct {
	localRoot string
	logger    common.Logger
}

// NewUploader creates an Uploader mirroring paths relative to localRoot
func NewUploader(localRoot string, logger common.Logger) *Uploader {
	if logger == nil {
		logger = common.NopLogger
	}
	if localRoot == "" {
		localRoot = "."
	}
	return &Uploader{localRoot: localRoot, logger: logger}
}

// RemotePath returns the slash-separated path localPath is mirrored to
func (u *Uploader) RemotePath(localPath string) (string, error) {
	rel, err := filepath.Rel(u.localRoot, localPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s against %s: %w", localPath, u.localRoot, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the local root %s", localPath, u.localRoot)
	}
	return rel, nil
}

// Upload creates every missing directory of the file's relative path on the store, stores the
// file under its base name and moves the store back to the directory it started in.
func (u *Uploader) Upload(ctx context.Context, store client.RemoteStore, localPath string) error {
	remotePath, err := u.RemotePath(localPath)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	original, err := store.CurrentDir()
	if err != nil {
		return fmt.Errorf("failed to read remote working directory: %w", err)
	}
	defer func() {
		if err := store.ChangeDir(original); err != nil {
			u.logger.Warn("Failed to return to original remote directory", "dir", original, "error", err)
		}
	}()

	dir, name := path.Split(remotePath)
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		if segment == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.ensureAndEnter(store, segment); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.Store(name, file); err != nil {
		return fmt.Errorf("failed to store %s: %w", remotePath, err)
	}

	u.logger.Info("Uploaded clip", "path", remotePath)
	return nil
}

// ensureAndEnter changes into dir, creating it first if that fails.
// A directory created concurrently by another writer counts as success.
func (u *Uploader) ensureAndEnter(store client.RemoteStore, dir string) error {
	err := store.ChangeDir(dir)
	if err == nil {
		return nil
	}
	if client.IsRecoverable(err) {
		return fmt.Errorf("failed to enter remote directory %s: %w", dir, err)
	}

	if err := store.MakeDir(dir); err != nil && !errors.Is(err, client.ErrAlreadyExists) {
		return fmt.Errorf("failed to create remote directory %s: %w", dir, err)
	}
	u.logger.Debug("Created remote directory", "dir", dir)

	if err := store.ChangeDir(dir); err != nil {
		return fmt.Errorf("failed to enter remote directory %s: %w", dir, err)
	}
	return nil
}
