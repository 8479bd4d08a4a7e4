package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// comparisonPunct is the punctuation stripped before similarity comparison.
// Kept deliberately small: only sentence punctuation that ASR output inserts
// inconsistently between runs.
const comparisonPunct = "、。！？!?"

// matchingPunct additionally strips ellipses, brackets and quote marks. Used
// when mapping LLM-returned substrings back onto word timestamps, where the
// model is prone to inventing punctuation.
const matchingPunct = "、。？！!?.,…「」『』【】（）()[]"

// StripForComparison removes whitespace and sentence punctuation, folding
// half/full-width variants so that ASR output from different passes compares
// equal.
func StripForComparison(text string) string {
	return strip(text, comparisonPunct)
}

// StripForMatching removes whitespace and all decorative punctuation, keeping
// only content characters.
func StripForMatching(text string) string {
	return strip(text, matchingPunct)
}

func strip(text, punct string) string {
	folded := width.Fold.String(text)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(punct, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
