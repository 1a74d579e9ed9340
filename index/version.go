package index

// Version identifies the on-disk layout an index writes and accepts.
type Version int32

const (
	// MinimalVersion is the oldest layout that can still be deserialized.
	MinimalVersion Version = 1
	// CurrentVersion is the layout written by this build.
	CurrentVersion Version = 2
)

// Valid reports whether v is within [MinimalVersion, CurrentVersion].
func (v Version) Valid() bool {
	return v >= MinimalVersion && v <= CurrentVersion
}

// CheckVersion returns a *VersionError unless v is supported.
func CheckVersion(v Version) error {
	if !v.Valid() {
		return &VersionError{Version: v, Min: MinimalVersion, Max: CurrentVersion}
	}
	return nil
}

// CheckLoadable reports whether data written with stored can be read by an
// index created with version running.
func CheckLoadable(stored, running Version) error {
	if stored < MinimalVersion || stored > running {
		return &VersionError{Version: stored, Min: MinimalVersion, Max: running}
	}
	return nil
}
