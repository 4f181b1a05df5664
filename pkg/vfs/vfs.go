// Package vfs holds a shader project's source files in memory. A Tree
// serves #include lookups for the compiler, travels inside program bundles
// and mirrors a host directory.
package vfs

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

// MaxTreeBytes caps the total size of the sources in one tree.
const MaxTreeBytes = 256 * 1024

// validPath accepts slash-separated relative paths of at most eight
// directories ending in a shader source or header file.
var validPath = regexp.MustCompile(`^([a-zA-Z0-9_][a-zA-Z0-9_-]{0,31}/){0,8}[a-zA-Z0-9_][a-zA-Z0-9_.-]{0,31}\.(glsl|frag|inc|h)$`)

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrInvalidPath   = errors.New("invalid source path")
	ErrQuotaExceeded = errors.New("source tree quota exceeded")
)

// ValidPath reports whether name may be stored in a Tree.
func ValidPath(name string) bool {
	return validPath.MatchString(name) && path.Clean(name) == name
}

type FileEntry struct {
	Data     []byte
	Modified time.Time
}

// Tree is an in-memory source tree. Files and DirtyFiles are guarded by Mu.
type Tree struct {
	Mu         sync.RWMutex
	Files      map[string]*FileEntry
	DirtyFiles map[string]bool
	UsedBytes  int
	Dirty      bool
}

func NewTree() *Tree {
	return &Tree{
		Files:      make(map[string]*FileEntry),
		DirtyFiles: make(map[string]bool),
	}
}

// Write stores a copy of data under name, replacing any previous content.
// The quota counts the new size against everything else in the tree.
func (t *Tree) Write(name string, data []byte) error {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	return t.writeLocked(name, data, time.Now())
}

func (t *Tree) writeLocked(name string, data []byte, mod time.Time) error {
	if !ValidPath(name) {
		return ErrInvalidPath
	}

	oldSize := 0
	if existing, ok := t.Files[name]; ok {
		oldSize = len(existing.Data)
	}
	if t.UsedBytes-oldSize+len(data) > MaxTreeBytes {
		return ErrQuotaExceeded
	}

	t.Files[name] = &FileEntry{
		Data:     bytes.Clone(data),
		Modified: mod,
	}
	t.DirtyFiles[name] = true
	t.UsedBytes += len(data) - oldSize
	t.Dirty = true
	return nil
}

// ReadFile returns a copy of the named file.
func (t *Tree) ReadFile(name string) ([]byte, error) {
	t.Mu.RLock()
	defer t.Mu.RUnlock()

	if !ValidPath(name) {
		return nil, ErrInvalidPath
	}
	entry, ok := t.Files[name]
	if !ok {
		return nil, ErrFileNotFound
	}
	return bytes.Clone(entry.Data), nil
}

func (t *Tree) Size(name string) (int, error) {
	t.Mu.RLock()
	defer t.Mu.RUnlock()

	if !ValidPath(name) {
		return 0, ErrInvalidPath
	}
	entry, ok := t.Files[name]
	if !ok {
		return 0, ErrFileNotFound
	}
	return len(entry.Data), nil
}

// ModTime returns when name last changed.
func (t *Tree) ModTime(name string) (time.Time, error) {
	t.Mu.RLock()
	defer t.Mu.RUnlock()

	if !ValidPath(name) {
		return time.Time{}, ErrInvalidPath
	}
	entry, ok := t.Files[name]
	if !ok {
		return time.Time{}, ErrFileNotFound
	}
	return entry.Modified, nil
}

// Delete removes name. The removal reaches the host on the next PersistTo.
func (t *Tree) Delete(name string) error {
	t.Mu.Lock()
	defer t.Mu.Unlock()

	if !ValidPath(name) {
		return ErrInvalidPath
	}
	entry, ok := t.Files[name]
	if !ok {
		return ErrFileNotFound
	}

	t.UsedBytes -= len(entry.Data)
	delete(t.Files, name)
	t.DirtyFiles[name] = true
	t.Dirty = true
	return nil
}

func (t *Tree) FreeSpace() int {
	t.Mu.RLock()
	defer t.Mu.RUnlock()
	return MaxTreeBytes - t.UsedBytes
}

// List returns every path in the tree, sorted.
func (t *Tree) List() []string {
	t.Mu.RLock()
	defer t.Mu.RUnlock()

	names := make([]string, 0, len(t.Files))
	for name := range t.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFrom reads every source file under dir into the tree, keyed by its
// slash path relative to dir. Other files are skipped. A missing dir loads
// nothing. Loaded files start clean.
func (t *Tree) LoadFrom(dir string) error {
	files, err := scan(dir)
	if err != nil {
		return err
	}

	t.Mu.Lock()
	defer t.Mu.Unlock()

	for name, entry := range files {
		if err := t.writeLocked(name, entry.Data, entry.Modified); err != nil {
			return err
		}
		delete(t.DirtyFiles, name)
	}
	t.Dirty = len(t.DirtyFiles) > 0
	return nil
}

// Sync makes the tree match dir: changed and new files are replaced, files
// gone from dir are dropped. It reports whether anything differed. Sync
// leaves the dirty set alone, since the host already has the content.
func (t *Tree) Sync(dir string) (bool, error) {
	files, err := scan(dir)
	if err != nil {
		return false, err
	}

	t.Mu.Lock()
	defer t.Mu.Unlock()

	changed := false
	for name, entry := range t.Files {
		if _, ok := files[name]; !ok {
			t.UsedBytes -= len(entry.Data)
			delete(t.Files, name)
			changed = true
		}
	}
	for name, entry := range files {
		if old, ok := t.Files[name]; ok && bytes.Equal(old.Data, entry.Data) {
			continue
		}
		wasDirty := t.DirtyFiles[name]
		if err := t.writeLocked(name, entry.Data, entry.Modified); err != nil {
			return changed, err
		}
		if !wasDirty {
			delete(t.DirtyFiles, name)
		}
		changed = true
	}
	t.Dirty = len(t.DirtyFiles) > 0
	return changed, nil
}

func scan(dir string) (map[string]*FileEntry, error) {
	files := make(map[string]*FileEntry)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !ValidPath(name) {
			return nil
		}

		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		entry := &FileEntry{Data: raw, Modified: time.Now()}
		if info, err := d.Info(); err == nil {
			entry.Modified = info.ModTime()
		}
		files[name] = entry
		return nil
	})
	return files, err
}

// PersistTo writes the dirty files to dir and removes the ones deleted
// since the last persist. Failed writes stay dirty. It returns the first
// error encountered.
func (t *Tree) PersistTo(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	t.Mu.Lock()
	snapshot := make(map[string]*FileEntry)
	var deleted []string
	for name := range t.DirtyFiles {
		if entry, ok := t.Files[name]; ok {
			snapshot[name] = &FileEntry{Data: bytes.Clone(entry.Data), Modified: entry.Modified}
		} else {
			deleted = append(deleted, name)
		}
		delete(t.DirtyFiles, name)
	}
	t.Dirty = false
	t.Mu.Unlock()

	var firstErr error
	fail := func(name string, err error) {
		t.Mu.Lock()
		t.DirtyFiles[name] = true
		t.Dirty = true
		t.Mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, name := range deleted {
		err := os.Remove(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil && !os.IsNotExist(err) {
			fail(name, err)
		}
	}

	for name, entry := range snapshot {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			fail(name, err)
			continue
		}
		if err := os.WriteFile(full, entry.Data, 0644); err != nil {
			fail(name, err)
			continue
		}
		_ = os.Chtimes(full, time.Now(), entry.Modified)
	}

	return firstErr
}
