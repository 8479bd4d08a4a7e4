package cleanup

import (
	"strings"

	"jimaku/internal/subtitle"
)

// runawayRunLength is the same-character run length treated as a transcription
// artifact rather than speech.
const runawayRunLength = 20

// condense collapses repeated phrases to a short display form, longest unit
// first so a long repeating phrase is not eaten piecewise by its own
// substrings. The scan is explicit over runes; each unit length rewrites the
// text before the next, shorter length is tried.
func (c *Cleaner) condense(text string) string {
	cfg := c.cfg.Stammer.WordRepetition
	runes := []rune(text)
	for unit := cfg.MaxPatternLength; unit >= 1; unit-- {
		runes = condenseUnit(runes, unit, cfg.MinRepetitions, cfg.DisplayCount)
	}
	return string(runes)
}

// condenseUnit rewrites every run of at least minReps consecutive copies of a
// unit-length pattern as display copies joined by 、 plus a trailing ellipsis.
func condenseUnit(runes []rune, unit, minReps, display int) []rune {
	if unit <= 0 || len(runes) < unit*minReps {
		return runes
	}

	var out []rune
	for i := 0; i < len(runes); {
		count := repeatCount(runes, i, unit)
		if count < minReps {
			out = append(out, runes[i])
			i++
			continue
		}

		pattern := string(runes[i : i+unit])
		parts := make([]string, display)
		for k := range parts {
			parts[k] = pattern
		}
		out = append(out, []rune(strings.Join(parts, "、")+"...")...)
		i += count * unit
	}
	return out
}

// repeatCount counts how many consecutive copies of runes[i:i+unit] start at i.
func repeatCount(runes []rune, i, unit int) int {
	if i+unit > len(runes) {
		return 0
	}
	count := 1
	for {
		next := i + count*unit
		if next+unit > len(runes) {
			return count
		}
		for k := 0; k < unit; k++ {
			if runes[next+k] != runes[i+k] {
				return count
			}
		}
		count++
	}
}

type textPart struct {
	replace    bool
	start, end float64
	text       string
}

// splitRunawayRuns condenses the segment's repetitions and then carves out
// same-character runs of runawayRunLength or more, assigning each piece a
// proportional share of the segment's time. Without such runs the whole
// (condensed) text stays as one keep part.
func (c *Cleaner) splitRunawayRuns(seg subtitle.Segment) []textPart {
	text := c.condense(seg.Text)
	runes := []rune(text)
	total := len(runes)
	if total == 0 {
		return []textPart{{start: seg.Start, end: seg.End, text: text}}
	}
	duration := seg.Duration()
	at := func(offset int) float64 {
		return seg.Start + duration*float64(offset)/float64(total)
	}

	var parts []textPart
	lastEnd := 0
	for i := 0; i < total; {
		run := 1
		for i+run < total && runes[i+run] == runes[i] {
			run++
		}
		if run < runawayRunLength {
			i += run
			continue
		}

		if i > lastEnd {
			before := string(runes[lastEnd:i])
			if strings.TrimSpace(before) != "" {
				parts = append(parts, textPart{start: at(lastEnd), end: at(i), text: before})
			}
		}
		parts = append(parts, textPart{replace: true, start: at(i), end: at(i + run), text: string(runes[i : i+run])})
		lastEnd = i + run
		i += run
	}

	if len(parts) == 0 {
		return []textPart{{start: seg.Start, end: seg.End, text: text}}
	}
	if lastEnd < total {
		after := string(runes[lastEnd:])
		if strings.TrimSpace(after) != "" {
			parts = append(parts, textPart{start: at(lastEnd), end: seg.End, text: after})
		}
	}
	return parts
}
