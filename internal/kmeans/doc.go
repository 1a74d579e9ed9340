// Package kmeans implements the Lloyd-style clustering used to train the
// coarse quantizer of the IVF indexes.
//
// Training is deterministic for a fixed seed and input: the initial centroids
// are drawn from a seeded generator and every reduction runs in row order.
package kmeans
