package index

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownIndexType is returned when no family is registered under a name.
	ErrUnknownIndexType = errors.New("unknown index type")
	// ErrInsufficientTrainingData is returned when there are fewer rows than nlist.
	ErrInsufficientTrainingData = errors.New("insufficient training data")
	// ErrAlreadyBuilt is returned by Build on a built index that cannot grow.
	ErrAlreadyBuilt = errors.New("index already built")
	// ErrNotBuilt is returned by operations that need a built index.
	ErrNotBuilt = errors.New("index not built")
	// ErrVersionMismatch is returned for versions outside the supported range.
	ErrVersionMismatch = errors.New("version mismatch")
	// ErrConfigParse is returned for malformed or invalid configuration.
	ErrConfigParse = errors.New("config parse error")
	// ErrDiagnosticsUnavailable is returned when visited buckets were not recorded.
	ErrDiagnosticsUnavailable = errors.New("bucket diagnostics unavailable")
	// ErrSerializationCorrupt is returned for truncated or inconsistent binaries.
	ErrSerializationCorrupt = errors.New("serialization corrupt")
	// ErrDimension matches every *ErrDimensionMismatch through errors.Is.
	ErrDimension = errors.New("dimension mismatch")

	ErrDuplicateID  = errors.New("duplicate vector id")
	ErrInvalidID    = errors.New("invalid vector id")
	ErrEmptyDataset = errors.New("empty dataset")
)

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Is(target error) bool { return target == ErrDimension }

// ConfigError describes one rejected configuration key.
type ConfigError struct {
	Key    string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfigParse }

func (e *ConfigError) Unwrap() error { return e.cause }

// VersionError reports a version outside [Min, Max].
type VersionError struct {
	Version Version
	Min     Version
	Max     Version
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version %d not in supported range [%d, %d]", e.Version, e.Min, e.Max)
}

func (e *VersionError) Is(target error) bool { return target == ErrVersionMismatch }

// CorruptError reports an unreadable section of a BinarySet or dump file.
type CorruptError struct {
	Section string
	Reason  string
	cause   error
}

// Corrupt returns a *CorruptError for section.
func Corrupt(section, format string, args ...any) *CorruptError {
	return &CorruptError{Section: section, Reason: fmt.Sprintf(format, args...)}
}

// CorruptWrap returns a *CorruptError for section caused by err.
func CorruptWrap(section string, err error) *CorruptError {
	return &CorruptError{Section: section, Reason: err.Error(), cause: err}
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt section %q: %s", e.Section, e.Reason)
}

func (e *CorruptError) Is(target error) bool { return target == ErrSerializationCorrupt }

func (e *CorruptError) Unwrap() error { return e.cause }
