package retention

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/yeti47/mocap/client"
	"github.com/yeti47/mocap/common"
)

// RemoteFile is a file discovered during a retention pass
type RemoteFile struct {
	Path       string
	ModifiedAt time.Time
}

// OlderThan orders remote files oldest first, breaking ties by path
func OlderThan(a, b RemoteFile) bool {
	if !a.ModifiedAt.Equal(b.ModifiedAt) {
		return a.ModifiedAt.Before(b.ModifiedAt)
	}
	return a.Path < b.Path
}

// PurgeResult summarises one retention pass
type PurgeResult struct {
	Root       string
	AgeLimit   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int      // files enumerated
	Deleted    []string // files removed, or that would be removed in a dry run
	Kept       int      // files younger than the age limit
	Missing    int      // files already gone when deleted
	Failed     int      // deletions that failed
	ListErrors int      // subdirectories that could not be listed
	DryRun     bool
}

// RetentionManager enumerates a remote tree and deletes files older than an age limit
type RetentionManager interface {
	Purge(ctx context.Context, root string, ageLimit time.Duration) (*PurgeResult, error)
	ListFiles(ctx context.Context, dir string) ([]client.Entry, error)
}

type ManagerOption func(*manager)

// WithDryRun reports deletion candidates without deleting them
func WithDryRun(dryRun bool) ManagerOption {
	return func(m *manager) {
		m.dryRun = dryRun
	}
}

// WithClock replaces the clock ages are measured against
func WithClock(now func() time.Time) ManagerOption {
	return func(m *manager) {
		m.now = now
	}
}

type manager struct {
	store  client.RemoteStore
	logger common.Logger
	now    func() time.Time
	dryRun bool
}

// NewManager creates a manager operating on a connected store
func NewManager(store client.RemoteStore, logger common.Logger, opts ...ManagerOption) RetentionManager {
	if logger == nil {
		logger = common.NopLogger
	}
	m := &manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ListFiles lists dir without dot-prefixed entries
func (m *manager) ListFiles(ctx context.Context, dir string) ([]client.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := m.store.List(dir)
	if err != nil {
		return nil, err
	}
	return client.VisibleEntries(entries), nil
}

// Purge walks root, queues every file oldest first and deletes those older than ageLimit.
// Only a failure to list root itself fails the pass.
func (m *manager) Purge(ctx context.Context, root string, ageLimit time.Duration) (*PurgeResult, error) {
	result := &PurgeResult{
		Root:      root,
		AgeLimit:  ageLimit,
		StartedAt: m.now(),
		DryRun:    m.dryRun,
	}

	m.logger.Info("Retention pass started", "root", root, "ageLimit", ageLimit, "dryRun", m.dryRun)

	queue, err := m.collect(ctx, root, result)
	if err != nil {
		return nil, err
	}
	result.Scanned = queue.Len()

	// ages are measured against the start of the drain so a long pass does not shift them
	now := m.now()
	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			result.FinishedAt = m.now()
			return result, err
		}

		file, _ := queue.Pop()
		age := now.Sub(file.ModifiedAt)
		if age <= ageLimit {
			// everything left is younger still
			result.Kept = queue.Len() + 1
			m.logger.Debug("Keeping remaining files", "oldestKept", file.Path, "age", age, "count", result.Kept)
			break
		}

		if m.dryRun {
			m.logger.Info("Would delete expired file", "path", file.Path, "age", age)
			result.Deleted = append(result.Deleted, file.Path)
			continue
		}

		if err := m.store.Delete(file.Path); err != nil {
			if errors.Is(err, client.ErrNotFound) {
				m.logger.Debug("Expired file already gone", "path", file.Path)
				result.Missing++
				continue
			}
			m.logger.Error("Failed to delete expired file", "path", file.Path, "error", err)
			result.Failed++
			continue
		}
		m.logger.Info("Deleted expired file", "path", file.Path, "age", age)
		result.Deleted = append(result.Deleted, file.Path)
	}

	result.FinishedAt = m.now()
	m.logger.Info("Retention pass finished",
		"root", root,
		"scanned", result.Scanned,
		"deleted", len(result.Deleted),
		"kept", result.Kept,
		"failed", result.Failed,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)
	return result, nil
}

// collect enumerates the tree below root with an explicit stack of directories
func (m *manager) collect(ctx context.Context, root string, result *PurgeResult) (*PriorityQueue[RemoteFile], error) {
	queue := NewPriorityQueue(OlderThan)
	pending := []string{root}
	visited := make(map[string]bool)

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		key := path.Clean(dir)
		if visited[key] {
			continue
		}
		visited[key] = true

		entries, err := m.store.List(dir)
		if err != nil {
			if dir == root {
				return nil, fmt.Errorf("failed to list retention root %q: %w", root, err)
			}
			m.logger.Warn("Failed to list directory, skipping", "dir", dir, "error", err)
			result.ListErrors++
			continue
		}

		for _, entry := range client.VisibleEntries(entries) {
			// MLSD cdir/pdir facts may carry a path instead of a plain name
			if strings.Contains(entry.Name, "/") {
				m.logger.Debug("Skipping entry with a path name", "dir", dir, "name", entry.Name)
				continue
			}
			entryPath := joinRemote(dir, entry.Name)
			switch entry.Kind {
			case client.EntryDir:
				pending = append(pending, entryPath)
			case client.EntryFile:
				queue.Push(RemoteFile{Path: entryPath, ModifiedAt: entry.ModifiedAt})
			}
		}
	}

	return queue, nil
}

func joinRemote(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}
