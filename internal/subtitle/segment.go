package subtitle

import "strings"

// Word is a single recognized word with its time span. Word spans are only
// meaningful while the parent segment keeps the timing it was transcribed
// with; stages that recompute segment boundaries drop the word list.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Segment is a timestamped span of recognized speech. Segments are value
// types: every pipeline stage receives a slice and returns a new one.
type Segment struct {
	Start float64
	End   float64
	Text  string
	Words []Word
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// RuneCount returns the number of runes in the trimmed text.
func (s Segment) RuneCount() int {
	return len([]rune(strings.TrimSpace(s.Text)))
}

// HasWords reports whether word-level timestamps are present.
func (s Segment) HasWords() bool {
	return len(s.Words) > 0
}

// CharsPerSecond returns the reading-speed ratio of the segment, or 0 when
// the duration is not positive.
func (s Segment) CharsPerSecond() float64 {
	d := s.Duration()
	if d <= 0 {
		return 0
	}
	return float64(s.RuneCount()) / d
}

// JoinWordText concatenates the text of the supplied words with no separator.
func JoinWordText(words []Word) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(strings.TrimSpace(w.Text))
	}
	return b.String()
}

// CloneWords returns a copy of the word slice so stages can hand out segments
// without sharing backing arrays.
func CloneWords(words []Word) []Word {
	if len(words) == 0 {
		return nil
	}
	out := make([]Word, len(words))
	copy(out, words)
	return out
}
