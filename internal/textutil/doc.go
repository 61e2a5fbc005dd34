// Package textutil provides text normalization and sanitization helpers.
//
// The primary use cases are:
//   - Normalizing document text before it is fingerprinted for the cache, so
//     that Unicode composition and whitespace differences do not invalidate
//     cached business context
//   - Turning arbitrary names into filesystem and cache-key safe tokens
//   - Rendering snake_case identifiers as human-readable labels
package textutil
