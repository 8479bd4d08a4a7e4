package hallucinate

import (
	"strings"

	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// collapseDuplicates merges runs of consecutive segments carrying identical
// trimmed text into one segment spanning the run. Every run of 2+ collapses;
// MinOccurrences only decides whether the run is reported as a likely
// hallucination.
func (f *Filter) collapseDuplicates(segments []subtitle.Segment) []subtitle.Segment {
	if len(segments) == 0 {
		return segments
	}
	minReport := f.cfg.ConsecutiveDuplicates.MinOccurrences
	if minReport <= 0 {
		minReport = 4
	}

	out := make([]subtitle.Segment, 0, len(segments))
	for i := 0; i < len(segments); {
		text := strings.TrimSpace(segments[i].Text)
		end := segments[i].End
		j := i + 1
		for j < len(segments) && strings.TrimSpace(segments[j].Text) == text {
			end = segments[j].End
			j++
		}

		run := j - i
		if run >= minReport {
			f.logger.Info("collapsed likely hallucination run",
				logging.Float64("start", segments[i].Start),
				logging.Int("repeats", run),
				logging.String("text", text))
		} else if run >= 2 {
			f.logger.Debug("merged duplicate segments",
				logging.Float64("start", segments[i].Start),
				logging.Int("repeats", run))
		}

		merged := segments[i]
		merged.Text = text
		merged.End = end
		out = append(out, merged)
		i = j
	}
	return out
}

// mergeSingleRuneRuns collapses consecutive one-character segments of the
// same character (stutter sounds split across cues) into one comma-joined
// segment.
func (f *Filter) mergeSingleRuneRuns(segments []subtitle.Segment) []subtitle.Segment {
	if len(segments) == 0 {
		return segments
	}

	out := make([]subtitle.Segment, 0, len(segments))
	for i := 0; i < len(segments); {
		text := strings.TrimSpace(segments[i].Text)
		if len([]rune(text)) != 1 {
			out = append(out, segments[i])
			i++
			continue
		}

		end := segments[i].End
		words := subtitle.CloneWords(segments[i].Words)
		count := 1
		j := i + 1
		for j < len(segments) {
			next := strings.TrimSpace(segments[j].Text)
			if len([]rune(next)) != 1 || next != text {
				break
			}
			end = segments[j].End
			words = append(words, segments[j].Words...)
			count++
			j++
		}

		if count > 1 {
			parts := make([]string, count)
			for k := range parts {
				parts[k] = text
			}
			out = append(out, subtitle.Segment{
				Start: segments[i].Start,
				End:   end,
				Text:  strings.Join(parts, "、"),
				Words: words,
			})
			f.logger.Debug("merged single-character run",
				logging.Float64("start", segments[i].Start),
				logging.Int("count", count),
				logging.String("char", text))
		} else {
			seg := segments[i]
			seg.Text = text
			out = append(out, seg)
		}
		i = j
	}
	return out
}
