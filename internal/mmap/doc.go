// Package mmap maps dump files read-only into memory.
//
//	m, err := mmap.Open("index.kwbs")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2); Windows uses MapViewOfFile and ignores
// access hints. A Mapping is safe for concurrent reads, but no goroutine may
// touch Bytes() after Close returns.
package mmap
