package index

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Well-known family names.
const (
	TypeFlat      = "FLAT"
	TypeIVFFlat   = "IVF_FLAT"
	TypeIVFFlatCC = "IVF_FLAT_CC"
)

// Factory creates an empty index of one family.
type Factory func(version Version, env Env) (Index, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
	aliases    = map[string]string{}
)

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Register registers a factory under name and any aliases.
//
// Index implementations should typically call this from an init() function.
func Register(name string, f Factory, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name = normalize(name)
	factories[name] = f
	for _, a := range alias {
		aliases[normalize(a)] = name
	}
}

// Canonical resolves aliases to the registered family name.
func Canonical(name string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	name = normalize(name)
	if target, ok := aliases[name]; ok {
		name = target
	}
	_, ok := factories[name]
	return name, ok
}

// New creates an empty index of the named family.
func New(name string, version Version, env Env) (Index, error) {
	canonical, ok := Canonical(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndexType, name)
	}
	if err := CheckVersion(version); err != nil {
		return nil, err
	}

	registryMu.RLock()
	f := factories[canonical]
	registryMu.RUnlock()

	return f(version, env.WithDefaults())
}

// Types returns the registered family names, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
