// Package index defines the contract shared by every index family: the Index
// interface, datasets, typed configuration, search results, serialized
// BinarySets, versions and the type registry.
//
// Index families live in subpackages and register themselves from init:
//
//	import _ "github.com/alwayslove2013/knowhere/index/ivf"
//
//	idx, err := index.New("IVF_FLAT", index.CurrentVersion, index.Env{})
//
// Scores inside an index are always lower-is-closer. The distances stored in
// a Result are already converted back with distance.Metric.Report.
package index
