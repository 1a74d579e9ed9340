package knowhere

import (
	"errors"

	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/resource"
)

// Errors returned by the lifecycle manager. They are the index package
// sentinels, so errors.Is works on either name.
var (
	ErrUnknownIndexType         = index.ErrUnknownIndexType
	ErrInsufficientTrainingData = index.ErrInsufficientTrainingData
	ErrAlreadyBuilt             = index.ErrAlreadyBuilt
	ErrNotBuilt                 = index.ErrNotBuilt
	ErrVersionMismatch          = index.ErrVersionMismatch
	ErrDimensionMismatch        = index.ErrDimension
	ErrConfigParse              = index.ErrConfigParse
	ErrDiagnosticsUnavailable   = index.ErrDiagnosticsUnavailable
	ErrSerializationCorrupt     = index.ErrSerializationCorrupt
	ErrDuplicateID              = index.ErrDuplicateID
	ErrInvalidID                = index.ErrInvalidID
	ErrEmptyDataset             = index.ErrEmptyDataset
)

var (
	// ErrIncrementalUnsupported is returned by Add on a family that cannot grow after Build.
	ErrIncrementalUnsupported = errors.New("index type does not support incremental builds")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("index closed")

	// ErrMemoryLimit is returned when a build needs more memory than the
	// resource controller allows in total.
	ErrMemoryLimit = resource.ErrMemoryLimit
)
