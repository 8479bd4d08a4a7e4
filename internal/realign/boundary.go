package realign

import (
	"context"
	"strings"

	"jimaku/internal/asr"
	"jimaku/internal/subtitle"
	"jimaku/internal/textutil"
)

// boundaryScoreFloor is the minimum averaged similarity for a detected
// boundary split to be trusted over the midpoint fallback.
const boundaryScoreFloor = 0.5

// findBoundary locates the point where prev's speech ends and curr's begins
// by re-transcribing the union of both spans and scanning every word-index
// split for the one whose halves best match the two texts.
func (r *Realigner) findBoundary(ctx context.Context, mediaPath string, prev, curr subtitle.Segment) (float64, bool) {
	searchStart := prev.Start
	searchEnd := curr.End
	if searchEnd <= searchStart {
		return 0, false
	}

	result, err := r.engine.Transcribe(ctx, asr.Request{
		Path:           mediaPath,
		Start:          searchStart,
		Duration:       searchEnd - searchStart,
		WordTimestamps: true,
		Strict:         true,
	})
	if err != nil {
		return 0, false
	}

	words := flattenWords(result.Segments)
	if len(words) == 0 {
		return 0, false
	}

	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = strings.TrimSpace(w.Text)
	}

	bestScore := 0.0
	bestBoundary := 0.0
	foundAny := false

	for i := range words {
		before := strings.Join(texts[:i], "")
		after := strings.Join(texts[i:], "")

		score := (textutil.Similarity(prev.Text, before) + textutil.Similarity(curr.Text, after)) / 2
		if score <= bestScore {
			continue
		}

		// The boundary sits at the end of the word before the split.
		var boundary float64
		if i > 0 {
			boundary = words[i-1].End
		} else {
			boundary = words[i].Start
		}
		bestScore = score
		bestBoundary = searchStart + boundary
		foundAny = true
	}

	if !foundAny || bestScore < boundaryScoreFloor {
		return 0, false
	}
	return bestBoundary, true
}
