package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryNode struct {
	isDir   bool
	data    []byte
	modTime time.Time
}

// memoryTree is the file system shared by all sessions of a MemoryRemoteStore
type memoryTree struct {
	mu       sync.Mutex
	nodes    map[string]*memoryNode
	failures map[string]error // keyed by "op path"
	connects int
	now      func() time.Time
}

// MemoryRemoteStore is an in-memory RemoteStore used by test mode and tests.
// Sessions created with NewSession share the tree but each has its own working directory.
type MemoryRemoteStore struct {
	tree      *memoryTree
	workDir   string
	cwd       string
	connected bool
}

// NewMemoryRemoteStore creates an empty store whose sessions start in workDir.
func NewMemoryRemoteStore(workDir string) *MemoryRemoteStore {
	tree := &memoryTree{
		nodes:    map[string]*memoryNode{"/": {isDir: true}},
		failures: make(map[string]error),
		now:      time.Now,
	}
	if workDir == "" {
		workDir = "/"
	}
	return &MemoryRemoteStore{tree: tree, workDir: cleanAbs("/", workDir), cwd: "/"}
}

// NewSession returns an unconnected store sharing this store's tree
func (m *MemoryRemoteStore) NewSession() *MemoryRemoteStore {
	return &MemoryRemoteStore{tree: m.tree, workDir: m.workDir, cwd: "/"}
}

// Factory returns a StoreFactory handing out new sessions
func (m *MemoryRemoteStore) Factory() StoreFactory {
	return func() RemoteStore {
		return m.NewSession()
	}
}

// SetClock replaces the clock used for modification times of stored files
func (m *MemoryRemoteStore) SetClock(now func() time.Time) {
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()
	m.tree.now = now
}

// FailOn makes the next matching operation ("connect", "cwd", "mkd", "list", "stor", "retr", "dele")
// on the given absolute path fail with err. A nil err clears the failure.
func (m *MemoryRemoteStore) FailOn(op, p string, err error) {
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()
	key := op + " " + cleanAbs("/", p)
	if err == nil {
		delete(m.tree.failures, key)
		return
	}
	m.tree.failures[key] = err
}

// Connects returns how many sessions connected so far
func (m *MemoryRemoteStore) Connects() int {
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()
	return m.tree.connects
}

// PutFile creates a file and any missing parent directories with the given modification time
func (m *MemoryRemoteStore) PutFile(p string, data []byte, modTime time.Time) {
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()
	abs := cleanAbs("/", p)
	m.tree.mkdirAll(path.Dir(abs))
	m.tree.nodes[abs] = &memoryNode{data: append([]byte(nil), data...), modTime: modTime}
}

// Exists reports whether a file or directory exists at the absolute path
func (m *MemoryRemoteStore) Exists(p string) bool {
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()
	_, ok := m.tree.nodes[cleanAbs("/", p)]
	return ok
}

// ReadFile returns the contents of a stored file
func (m *MemoryRemoteStore) ReadFile(p string) ([]byte, bool) {
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()
	node, ok := m.tree.nodes[cleanAbs("/", p)]
	if !ok || node.isDir {
		return nil, false
	}
	return append([]byte(nil), node.data...), true
}

// Files returns the absolute paths of all files, sorted
func (m *MemoryRemoteStore) Files() []string {
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()
	var files []string
	for p, node := range m.tree.nodes {
		if !node.isDir {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files
}

func (m *MemoryRemoteStore) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return NewRecoverableRemoteError("connect", "", err)
	}

	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()

	if err := m.tree.takeFailure("connect", "/"); err != nil {
		return err
	}
	m.tree.connects++
	m.tree.mkdirAll(m.workDir)
	m.cwd = m.workDir
	m.connected = true
	return nil
}

func (m *MemoryRemoteStore) Quit() error {
	m.connected = false
	return nil
}

func (m *MemoryRemoteStore) CurrentDir() (string, error) {
	if !m.connected {
		return "", ErrNotConnected
	}
	return m.cwd, nil
}

func (m *MemoryRemoteStore) ChangeDir(p string) error {
	if !m.connected {
		return ErrNotConnected
	}
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()

	abs := cleanAbs(m.cwd, p)
	if err := m.tree.takeFailure("cwd", abs); err != nil {
		return err
	}
	node, ok := m.tree.nodes[abs]
	if !ok || !node.isDir {
		return NewNonRecoverableRemoteError("cwd", p, ErrNotFound)
	}
	m.cwd = abs
	return nil
}

func (m *MemoryRemoteStore) MakeDir(p string) error {
	if !m.connected {
		return ErrNotConnected
	}
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()

	abs := cleanAbs(m.cwd, p)
	if err := m.tree.takeFailure("mkd", abs); err != nil {
		return err
	}
	if _, ok := m.tree.nodes[abs]; ok {
		return NewNonRecoverableRemoteError("mkd", p, ErrAlreadyExists)
	}
	parent, ok := m.tree.nodes[path.Dir(abs)]
	if !ok || !parent.isDir {
		return NewNonRecoverableRemoteError("mkd", p, ErrNotFound)
	}
	m.tree.nodes[abs] = &memoryNode{isDir: true, modTime: m.tree.now()}
	return nil
}

func (m *MemoryRemoteStore) List(p string) ([]Entry, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()

	abs := cleanAbs(m.cwd, p)
	if err := m.tree.takeFailure("list", abs); err != nil {
		return nil, err
	}
	dir, ok := m.tree.nodes[abs]
	if !ok || !dir.isDir {
		return nil, NewNonRecoverableRemoteError("list", p, ErrNotFound)
	}

	// MLSD style listings include the directory itself and its parent
	entries := []Entry{{Name: ".", Kind: EntryOther}, {Name: "..", Kind: EntryOther}}
	prefix := strings.TrimSuffix(abs, "/") + "/"
	for childPath, node := range m.tree.nodes {
		if childPath == abs || !strings.HasPrefix(childPath, prefix) {
			continue
		}
		name := strings.TrimPrefix(childPath, prefix)
		if strings.Contains(name, "/") {
			continue
		}
		kind := EntryFile
		if node.isDir {
			kind = EntryDir
		}
		entries = append(entries, Entry{Name: name, Kind: kind, ModifiedAt: node.modTime, Size: uint64(len(node.data))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *MemoryRemoteStore) Store(name string, r io.Reader) error {
	if !m.connected {
		return ErrNotConnected
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return NewRecoverableRemoteError("stor", name, err)
	}

	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()

	abs := cleanAbs(m.cwd, name)
	if err := m.tree.takeFailure("stor", abs); err != nil {
		return err
	}
	parent, ok := m.tree.nodes[path.Dir(abs)]
	if !ok || !parent.isDir {
		return NewNonRecoverableRemoteError("stor", name, ErrNotFound)
	}
	if node, ok := m.tree.nodes[abs]; ok && node.isDir {
		return NewNonRecoverableRemoteError("stor", name, fmt.Errorf("is a directory"))
	}
	m.tree.nodes[abs] = &memoryNode{data: data, modTime: m.tree.now()}
	return nil
}

func (m *MemoryRemoteStore) Retrieve(p string, w io.Writer) error {
	if !m.connected {
		return ErrNotConnected
	}
	m.tree.mu.Lock()
	abs := cleanAbs(m.cwd, p)
	if err := m.tree.takeFailure("retr", abs); err != nil {
		m.tree.mu.Unlock()
		return err
	}
	node, ok := m.tree.nodes[abs]
	if !ok || node.isDir {
		m.tree.mu.Unlock()
		return NewNonRecoverableRemoteError("retr", p, ErrNotFound)
	}
	data := append([]byte(nil), node.data...)
	m.tree.mu.Unlock()

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return NewRecoverableRemoteError("retr", p, err)
	}
	return nil
}

func (m *MemoryRemoteStore) Delete(p string) error {
	if !m.connected {
		return ErrNotConnected
	}
	m.tree.mu.Lock()
	defer m.tree.mu.Unlock()

	abs := cleanAbs(m.cwd, p)
	if err := m.tree.takeFailure("dele", abs); err != nil {
		return err
	}
	node, ok := m.tree.nodes[abs]
	if !ok || node.isDir {
		return NewNonRecoverableRemoteError("dele", p, ErrNotFound)
	}
	delete(m.tree.nodes, abs)
	return nil
}

// mkdirAll must be called with the lock held
func (t *memoryTree) mkdirAll(abs string) {
	for p := abs; ; p = path.Dir(p) {
		if _, ok := t.nodes[p]; !ok {
			t.nodes[p] = &memoryNode{isDir: true, modTime: t.now()}
		}
		if p == "/" {
			return
		}
	}
}

// takeFailure must be called with the lock held
func (t *memoryTree) takeFailure(op, abs string) error {
	key := op + " " + abs
	if err, ok := t.failures[key]; ok {
		delete(t.failures, key)
		return err
	}
	return nil
}

func cleanAbs(cwd, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Clean(path.Join(cwd, p))
}
