package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

var (
	// ErrNoSpace is returned by writes past the configured limit.
	ErrNoSpace = errors.New("no space left on device (injected)")
	// ErrInjected is the default error of a Fault.
	ErrInjected = errors.New("injected fault")
)

// Fault describes how operations on matching files fail.
type Fault struct {
	FailAfterBytes int64 // per file; -1 disables
	FailOnSync     bool
	FailOnRename   bool
	Err            error
}

// FaultyFS wraps a FileSystem and injects failures.
type FaultyFS struct {
	FS FileSystem

	mu      sync.Mutex
	rules   map[string]Fault
	limit   int64
	written int64
}

// NewFaultyFS wraps fsys, or Default when nil.
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{FS: fsys, rules: make(map[string]Fault), limit: -1}
}

// SetLimit fails every write once limit bytes have been written in total.
// A negative limit disables it.
func (f *FaultyFS) SetLimit(limit int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
}

// Written returns the bytes written through f.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// AddRule applies fault to files whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.rules[pattern] = fault
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{FailAfterBytes: -1}, false
}

func (f *FaultyFS) CreateTemp(dir, pattern string) (File, error) {
	file, err := f.FS.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	fault, _ := f.match(pattern)
	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error { return f.FS.Remove(name) }

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault, ok := f.match(newpath); ok && fault.FailOnRename {
		return fault.Err
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailAfterBytes >= 0 && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		return 0, ff.fault.Err
	}

	ff.fs.mu.Lock()
	if ff.fs.limit >= 0 && ff.fs.written+int64(len(p)) > ff.fs.limit {
		ff.fs.mu.Unlock()
		return 0, ErrNoSpace
	}
	ff.fs.written += int64(len(p))
	ff.fs.mu.Unlock()

	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}
	return ff.File.Sync()
}
