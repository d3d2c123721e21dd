package client

import (
	"context"
	"io"
	"time"
)

// EntryKind classifies a remote directory entry
type EntryKind int

const (
	EntryOther EntryKind = iota
	EntryFile
	EntryDir
)

func (k EntryKind) String() string {
	switch k {
	case EntryFile:
		return "file"
	case EntryDir:
		return "dir"
	default:
		return "other"
	}
}

// Entry is one item of a remote directory listing
type Entry struct {
	Name       string
	Kind       EntryKind
	ModifiedAt time.Time
	Size       uint64
}

// IsHidden reports whether the entry is a dot-prefixed name, including "." and ".."
func (e Entry) IsHidden() bool {
	return len(e.Name) > 0 && e.Name[0] == '.'
}

// RemoteStore is the narrow file store contract the pipeline and retention manager depend on.
// Relative paths resolve against the current directory.
type RemoteStore interface {
	Connect(ctx context.Context) error
	Quit() error
	CurrentDir() (string, error)
	// ChangeDir fails with ErrNotFound when the directory does not exist.
	ChangeDir(path string) error
	// MakeDir fails with ErrAlreadyExists when the directory exists.
	MakeDir(path string) error
	List(path string) ([]Entry, error)
	Store(name string, r io.Reader) error
	Retrieve(path string, w io.Writer) error
	// Delete fails with ErrNotFound when the file does not exist.
	Delete(path string) error
}

// StoreFactory creates an unconnected store. Each worker pass gets its own connection.
type StoreFactory func() RemoteStore

// VisibleEntries filters dot-prefixed entries out of a listing
func VisibleEntries(entries []Entry) []Entry {
	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.IsHidden() {
			visible = append(visible, e)
		}
	}
	return visible
}
