package mmap

import "errors"

// AccessPattern is a hint about how mapped data will be read.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	AccessSequential
	AccessRandom
	AccessWillNeed
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrInvalidSize   = errors.New("mmap: invalid file size")
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
