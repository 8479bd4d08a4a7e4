package cleanup

import (
	"strings"
	"unicode"

	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// stammerPunct is the separator set ignored when judging stammer content.
const stammerPunct = "、。？！…"

func isStammerSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(stammerPunct, r)
}

func stripStammerPunct(text string) []rune {
	var out []rune
	for _, r := range text {
		if !isStammerSeparator(r) {
			out = append(out, r)
		}
	}
	return out
}

func splitStammerWords(text string) []string {
	return strings.FieldsFunc(text, isStammerSeparator)
}

// isPureStammer reports whether the text is nothing but a repetitive stammer
// or a single word repeated over and over, with no real dialogue around it.
func isPureStammer(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}

	clean := stripStammerPunct(text)
	if len(clean) == 0 {
		return true
	}

	distinct := make(map[rune]int, len(clean))
	for _, r := range clean {
		distinct[r]++
	}
	if len(distinct) <= 2 && len(clean) >= 8 {
		return true
	}

	// A single character dominating a long span, e.g. "くそ…ううううう...".
	maxRuneCount := 0
	for _, n := range distinct {
		if n > maxRuneCount {
			maxRuneCount = n
		}
	}
	if maxRuneCount >= 50 && float64(maxRuneCount)/float64(len(clean)) >= 0.8 {
		return true
	}

	words := splitStammerWords(text)
	if len(words) < 3 {
		return false
	}
	counts := make(map[string]int, len(words))
	maxWordCount := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > maxWordCount {
			maxWordCount = counts[w]
		}
	}
	return maxWordCount >= 5 && float64(maxWordCount)/float64(len(words)) >= 0.8
}

// filterStammer rewrites or condenses repetitive segments. Pure-stammer
// segments become a vocalization (when enabled) or a condensed repetition;
// mixed segments have their runaway character runs split out with
// proportional timing so the surrounding dialogue keeps its place.
func (c *Cleaner) filterStammer(segments []subtitle.Segment) []subtitle.Segment {
	vocalize := c.cfg.Stammer.Vocalization.Enable
	out := make([]subtitle.Segment, 0, len(segments))

	for _, seg := range segments {
		if isPureStammer(seg.Text) {
			if vocalize {
				replacement := c.buildVocalization(c.detectVocalization(seg.Text), seg.Duration())
				c.logger.Debug("replaced stammer segment with vocalization",
					logging.Float64("start", seg.Start),
					logging.String("replacement", replacement))
				out = append(out, subtitle.Segment{Start: seg.Start, End: seg.End, Text: replacement})
			} else {
				seg.Text = c.condense(seg.Text)
				out = append(out, seg)
			}
			continue
		}

		for _, part := range c.splitRunawayRuns(seg) {
			if !part.replace {
				kept := subtitle.Segment{Start: part.start, End: part.end, Text: part.text}
				if part.text == seg.Text {
					kept.Words = seg.Words
				}
				out = append(out, kept)
				continue
			}
			if vocalize {
				replacement := c.buildVocalization(c.detectVocalization(part.text), part.end-part.start)
				out = append(out, subtitle.Segment{Start: part.start, End: part.end, Text: replacement})
			} else {
				out = append(out, subtitle.Segment{Start: part.start, End: part.end, Text: c.condense(part.text)})
			}
		}
	}
	return out
}
