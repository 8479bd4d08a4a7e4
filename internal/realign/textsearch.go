package realign

import (
	"context"
	"math"
	"strings"

	"jimaku/internal/asr"
	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
	"jimaku/internal/textutil"
)

const (
	// excellentMatch ends a substring search immediately.
	excellentMatch = 0.9
	// goodMatch ends the outer scan over starting positions.
	goodMatch = 0.85
	// acceptableMatch is the floor for using a located span at all.
	acceptableMatch = 0.6
	// maxSegmentsToCombine caps how many consecutive transcription segments
	// are joined when looking for the target text.
	maxSegmentsToCombine = 5
	// maxWordWindow caps the word-level fallback window.
	maxWordWindow = 15
	// lengthOvershoot stops extending a candidate once it is this much
	// longer than the target.
	lengthOvershoot = 1.5
)

// textSearch searches for each segment's text in expanding windows around its
// expected position and moves the segment to where the text was found.
// Segments are processed in order so each boundary check sees the already
// corrected predecessors.
type textSearch struct {
	r *Realigner
}

func (t *textSearch) name() string { return MethodTextSearch }

func (t *textSearch) realign(ctx context.Context, mediaPath string, segments []subtitle.Segment) ([]subtitle.Segment, []int) {
	out := make([]subtitle.Segment, 0, len(segments))
	var adjusted []int

	for i, seg := range segments {
		moved, ok := t.search(ctx, mediaPath, seg, out, segments[i:])
		if ok {
			adjusted = append(adjusted, i)
			t.r.logger.Debug("segment relocated",
				logging.Float64("old_start", seg.Start),
				logging.Float64("new_start", moved.Start))
		}
		out = append(out, moved)
	}
	return out, adjusted
}

// search looks for seg's text around its expected position. prior holds the
// already realigned predecessors and rest the unprocessed tail starting at
// seg itself; both are consulted when clamping against neighbors.
func (t *textSearch) search(ctx context.Context, mediaPath string, seg subtitle.Segment, prior, rest []subtitle.Segment) (subtitle.Segment, bool) {
	text := strings.TrimSpace(seg.Text)
	if len([]rune(text)) < 2 {
		return seg, false
	}

	cfg := t.r.cfg.TextSearch
	bestSim := 0.0
	var bestWindowStart, bestFoundStart, bestFoundEnd float64
	found := false

	for _, expansion := range expansionSchedule(cfg.Expansion, cfg.ExpansionAttempts) {
		if bestSim >= cfg.Similarity {
			break
		}
		windowStart := math.Max(0, seg.Start-expansion)
		windowEnd := seg.End + expansion

		result, err := t.r.engine.Transcribe(ctx, asr.Request{
			Path:           mediaPath,
			Start:          windowStart,
			Duration:       windowEnd - windowStart,
			WordTimestamps: true,
			Strict:         true,
		})
		if err != nil {
			continue
		}

		start, end, sim := locateText(text, result.Segments)
		if start >= 0 && sim > bestSim {
			bestSim = sim
			bestWindowStart = windowStart
			bestFoundStart = start
			bestFoundEnd = end
			found = true
		}
	}

	if !found || bestSim < acceptableMatch {
		return seg, false
	}

	newStart := bestWindowStart + bestFoundStart
	newEnd := bestWindowStart + bestFoundEnd

	// Ignore shifts too small to matter.
	if math.Abs(newStart-seg.Start) < cfg.AdjustmentThreshold &&
		math.Abs(newEnd-seg.End) < cfg.AdjustmentThreshold {
		return seg, false
	}

	// Clamp against the realigned predecessor and the upcoming successor.
	minGap := t.r.cfg.MinGap
	if len(prior) > 0 {
		if prevEnd := prior[len(prior)-1].End; newStart < prevEnd+minGap {
			newStart = prevEnd + minGap
		}
	}
	if len(rest) > 1 {
		if nextStart := rest[1].Start; newEnd > nextStart-minGap {
			newEnd = nextStart - minGap
		}
	}
	if newEnd <= newStart {
		return seg, false
	}

	seg.Start = newStart
	seg.End = newEnd
	seg.Words = nil
	return seg, true
}

// locateText finds the span of the re-transcription that best matches target.
// Returned times are relative to the transcribed clip; start is -1 when no
// acceptable span exists. Consecutive transcription segments are combined
// first; a word-level scan is the fallback for matches that straddle segment
// boundaries awkwardly.
func locateText(target string, segments []subtitle.Segment) (start, end, similarity float64) {
	if len(segments) == 0 || textutil.StripForComparison(target) == "" {
		return -1, 0, 0
	}
	targetRunes := len([]rune(target))

	bestSim := 0.0
	bestStart, bestEnd := -1.0, 0.0

	for i := range segments {
		var combined strings.Builder
		limit := i + maxSegmentsToCombine
		if limit > len(segments) {
			limit = len(segments)
		}
		for j := i; j < limit; j++ {
			combined.WriteString(strings.TrimSpace(segments[j].Text))
			candidate := combined.String()

			sim := textutil.Similarity(target, candidate)
			if sim > bestSim {
				bestSim = sim
				bestStart = segments[i].Start
				bestEnd = segments[j].End
			}
			if sim >= excellentMatch {
				return bestStart, bestEnd, bestSim
			}
			if float64(len([]rune(candidate))) > float64(targetRunes)*lengthOvershoot {
				break
			}
		}
		if bestSim >= goodMatch {
			break
		}
	}

	if bestStart >= 0 && bestSim >= acceptableMatch {
		return bestStart, bestEnd, bestSim
	}

	// Word-level fallback for matches the segment combinations missed.
	if words := flattenWords(segments); len(words) > 0 {
		ws, we, wsim := locateTextInWords(target, words)
		if wsim > bestSim {
			return ws, we, wsim
		}
	}
	return -1, 0, bestSim
}

// locateTextInWords scans word windows of up to maxWordWindow words for the
// best match against target. Returned times are clip-relative; start is -1
// when nothing reaches acceptableMatch.
func locateTextInWords(target string, words []subtitle.Word) (start, end, similarity float64) {
	targetClean := textutil.StripForComparison(target)
	if len(words) == 0 || targetClean == "" {
		return -1, 0, 0
	}
	targetRunes := len([]rune(targetClean))

	bestSim := 0.0
	bestStart, bestEnd := -1.0, 0.0

	for i := range words {
		var combined strings.Builder
		limit := i + maxWordWindow
		if limit > len(words) {
			limit = len(words)
		}
		for j := i; j < limit; j++ {
			combined.WriteString(strings.TrimSpace(words[j].Text))
			candidate := combined.String()

			sim := textutil.Similarity(target, candidate)
			if sim > bestSim {
				bestSim = sim
				bestStart = words[i].Start
				bestEnd = words[j].End
			}
			if sim >= excellentMatch && bestStart >= 0 {
				return bestStart, bestEnd, bestSim
			}
			if float64(len([]rune(candidate))) > float64(targetRunes)*lengthOvershoot {
				break
			}
		}
		if bestSim >= goodMatch {
			break
		}
	}

	if bestStart >= 0 && bestSim >= acceptableMatch {
		return bestStart, bestEnd, bestSim
	}
	return -1, 0, bestSim
}
