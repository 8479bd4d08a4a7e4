package cleanup

import (
	"sort"
	"strings"
	"unicode"

	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// clusterPrerequisiteCount is the minimum total occurrences before the
// cluster scan is worth running.
const clusterPrerequisiteCount = 5

// maxGlobalWordRunes caps which words the global detector considers; real
// dialogue words are longer than this.
const maxGlobalWordRunes = 3

func splitCommaWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '、' || unicode.IsSpace(r)
	})
}

// soleWord returns the single distinct token a segment consists of, or ""
// when the segment holds mixed content.
func soleWord(text string) string {
	words := splitCommaWords(strings.TrimSpace(text))
	if len(words) == 0 {
		return ""
	}
	for _, w := range words[1:] {
		if w != words[0] {
			return ""
		}
	}
	return words[0]
}

// detectGlobalWords finds short words whose segments repeat suspiciously
// often, either across the whole file or in a burst within a time window.
// Only segments consisting of nothing but that word (possibly comma-repeated)
// count as occurrences.
func (c *Cleaner) detectGlobalWords(segments []subtitle.Segment) map[string]bool {
	occurrences := make(map[string][]float64)
	for _, seg := range segments {
		word := soleWord(seg.Text)
		if word == "" || len([]rune(word)) > maxGlobalWordRunes {
			continue
		}
		occurrences[word] = append(occurrences[word], seg.Start)
	}

	detected := make(map[string]bool)
	for word, starts := range occurrences {
		if c.cfg.GlobalWords.Enable && len(starts) >= c.cfg.GlobalWords.MinOccurrences {
			detected[word] = true
			c.logger.Debug("word repeats across the whole file",
				logging.String("word", word),
				logging.Int("count", len(starts)))
			continue
		}
		if c.cfg.Cluster.Enable && len(starts) >= clusterPrerequisiteCount &&
			hasCluster(starts, c.cfg.Cluster.TimeWindowSeconds, c.cfg.Cluster.MinOccurrences) {
			detected[word] = true
			c.logger.Debug("word repeats in a burst",
				logging.String("word", word),
				logging.Int("count", len(starts)))
		}
	}
	return detected
}

// hasCluster reports whether at least minCount of the timestamps fall within
// any window seconds wide.
func hasCluster(starts []float64, window float64, minCount int) bool {
	sorted := append([]float64(nil), starts...)
	sort.Float64s(sorted)
	for i := range sorted {
		count := 0
		limit := sorted[i] + window
		for j := i; j < len(sorted) && sorted[j] <= limit; j++ {
			count++
		}
		if count >= minCount {
			return true
		}
	}
	return false
}

// replaceGlobalWords rewrites every segment consisting solely of a detected
// word as a duration-sized vocalization. Word timestamps are kept; the cue's
// span does not change.
func (c *Cleaner) replaceGlobalWords(segments []subtitle.Segment, detected map[string]bool) []subtitle.Segment {
	out := make([]subtitle.Segment, 0, len(segments))
	for _, seg := range segments {
		word := soleWord(seg.Text)
		if word == "" || !detected[word] {
			out = append(out, seg)
			continue
		}
		seg.Text = c.buildVocalization(c.detectVocalization(seg.Text), seg.Duration())
		out = append(out, seg)
	}
	return out
}

// detectVocalization picks the vocalization already present in the text, or
// the first configured option.
func (c *Cleaner) detectVocalization(text string) string {
	text = strings.TrimSpace(text)
	for _, voc := range c.cfg.Stammer.Vocalization.Options {
		if strings.Contains(text, voc) {
			return voc
		}
	}
	return c.cfg.Stammer.Vocalization.Options[0]
}

// buildVocalization repeats the vocalization according to the cue duration:
// one for a short cue, more for longer ones.
func (c *Cleaner) buildVocalization(voc string, duration float64) string {
	cfg := c.cfg.Stammer.Vocalization
	count := cfg.LongRepeatCount
	switch {
	case duration < cfg.ShortDurationThreshold:
		count = cfg.ShortRepeatCount
	case duration < cfg.MediumDurationThreshold:
		count = cfg.MediumRepeatCount
	}
	if count <= 0 {
		count = 1
	}
	parts := make([]string, count)
	for i := range parts {
		parts[i] = voc
	}
	return strings.Join(parts, "、")
}
