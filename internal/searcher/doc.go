// Package searcher provides the bounded heaps used to keep the best k
// candidates of a scan, and a pool of reusable per-query scratch state.
//
// Items are ordered by (Distance, ID) so that equal distances resolve to the
// lower id, which makes every top-k selection deterministic.
package searcher
