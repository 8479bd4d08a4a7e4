package textutil

// Similarity computes the sequence similarity of two texts in [0,1] after
// stripping whitespace and sentence punctuation. It implements the
// Ratcliff/Obershelp ratio (2*matches / total length), which tolerates the
// insertions, deletions and reorderings typical of repeated ASR passes over
// the same audio.
//
// Identical non-empty texts score 1.0; if either side is empty after
// normalization the score is 0.0.
func Similarity(a, b string) float64 {
	ca := []rune(StripForComparison(a))
	cb := []rune(StripForComparison(b))
	return RuneSimilarity(ca, cb)
}

// RuneSimilarity computes the Ratcliff/Obershelp ratio over already-normalized
// rune slices.
func RuneSimilarity(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchingRunes(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchingRunes returns the total length of matched blocks between a and b:
// the longest common substring plus, recursively, the matches to its left and
// right.
func matchingRunes(a, b []rune) int {
	ai, bi, size := longestCommonBlock(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingRunes(a[:ai], b[:bi])
	total += matchingRunes(a[ai+size:], b[bi+size:])
	return total
}

// longestCommonBlock finds the longest common substring of a and b, returning
// its start offsets and length. Earlier blocks win ties.
func longestCommonBlock(a, b []rune) (int, int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	bestA, bestB, bestSize := 0, 0, 0
	// lengths[j+1] is the length of the common suffix ending at a[i], b[j].
	lengths := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		prev := 0
		for j := 0; j < len(b); j++ {
			cur := lengths[j+1]
			if a[i] == b[j] {
				lengths[j+1] = prev + 1
				if lengths[j+1] > bestSize {
					bestSize = lengths[j+1]
					bestA = i - bestSize + 1
					bestB = j - bestSize + 1
				}
			} else {
				lengths[j+1] = 0
			}
			prev = cur
		}
	}
	return bestA, bestB, bestSize
}
