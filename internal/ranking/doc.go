// Package ranking scores candidate pools and selects the best few.
//
// A candidate carries named component scores in [0,1]. Rank combines them
// as a weighted sum, orders candidates by that sum with ties resolved by
// generation order, and returns the top k. The same inputs always produce
// the same ordering.
//
// The package also owns pattern assignment for candidate generation, which
// guarantees every pattern is used once before any repeats.
package ranking
