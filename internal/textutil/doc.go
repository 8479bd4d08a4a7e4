// Package textutil provides text processing utilities for comparing ASR
// transcriptions and sanitizing output filenames.
//
// The primary use cases are:
//   - Normalizing Japanese text before comparison (width folding, punctuation
//     and whitespace stripping)
//   - Computing Ratcliff/Obershelp sequence similarity between two texts
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Similarity is computed over runes rather than words because Japanese ASR
// output carries no reliable word boundaries.
package textutil
