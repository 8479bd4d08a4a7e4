package realign

import (
	"context"
	"errors"
	"math"
	"strings"

	"jimaku/internal/asr"
	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
	"jimaku/internal/textutil"
)

// readingRateCharsPerSecond is a conservative Japanese speech rate used to
// estimate how long a text should take. Segments whose recorded duration is
// shorter than the estimate get their verification window extended so the
// full text is covered.
const readingRateCharsPerSecond = 5.0

// timeBased verifies each segment at its expected position and, when the
// audio there does not match, slides a fixed-duration window backward and
// forward at exponentially growing offsets until the text is found.
type timeBased struct {
	r *Realigner
}

func (t *timeBased) name() string { return MethodTimeBased }

func (t *timeBased) realign(ctx context.Context, mediaPath string, segments []subtitle.Segment) ([]subtitle.Segment, []int) {
	out := make([]subtitle.Segment, 0, len(segments))
	var adjusted []int

	batchSize := t.r.cfg.BatchSize
	for i := 0; i < len(segments); i += batchSize {
		end := i + batchSize
		if end > len(segments) {
			end = len(segments)
		}
		t.r.logger.Debug("verifying segment batch",
			logging.Int("from", i+1),
			logging.Int("to", end))

		for _, seg := range segments[i:end] {
			verified, ok := t.verify(ctx, mediaPath, seg)
			if ok {
				adjusted = append(adjusted, len(out))
				t.r.logger.Debug("segment timing adjusted",
					logging.Float64("old_start", seg.Start),
					logging.Float64("old_end", seg.End),
					logging.Float64("new_start", verified.Start),
					logging.Float64("new_end", verified.End))
			}
			out = append(out, verified)
		}
	}
	return out, adjusted
}

// verify checks one segment against the audio. The returned bool reports
// whether the timing changed.
func (t *timeBased) verify(ctx context.Context, mediaPath string, seg subtitle.Segment) (subtitle.Segment, bool) {
	text := strings.TrimSpace(seg.Text)
	if len([]rune(text)) < 2 {
		return seg, false
	}

	cfg := t.r.cfg.TimeBased
	duration := seg.Duration()

	// Verify over the recorded span, extended if the text could not
	// plausibly fit in it.
	estimated := float64(len([]rune(text))) / readingRateCharsPerSecond
	verifyDuration := math.Max(duration, estimated)

	initialSim := 0.0
	result, err := t.r.engine.Transcribe(ctx, asr.Request{
		Path:     mediaPath,
		Start:    seg.Start,
		Duration: verifyDuration,
		Strict:   true,
	})
	switch {
	case errors.Is(err, asr.ErrClipTooShort):
		return seg, false
	case err == nil:
		initialSim = textutil.Similarity(text, strings.TrimSpace(result.Text))
		if initialSim >= cfg.Similarity {
			return seg, false
		}
	}

	// The expected position does not match. Slide the window backward and
	// forward at growing offsets; drifted segments are usually late, so
	// backward goes first.
	bestSim := initialSim
	bestStart := seg.Start
	var bestResult *asr.Result

	for _, offset := range expansionSchedule(cfg.Expansion, cfg.ExpansionAttempts) {
		if bestSim >= cfg.Similarity {
			break
		}
		shifted := math.Max(0, seg.Start-offset)
		if sim, res, ok := t.tryWindow(ctx, mediaPath, text, shifted, duration); ok && sim > bestSim {
			bestSim, bestStart, bestResult = sim, shifted, res
		}
		if bestSim >= cfg.Similarity {
			break
		}
		shifted = seg.Start + offset
		if sim, res, ok := t.tryWindow(ctx, mediaPath, text, shifted, duration); ok && sim > bestSim {
			bestSim, bestStart, bestResult = sim, shifted, res
		}
	}

	// Any improvement over the original position is worth taking, even when
	// it falls short of the threshold.
	if bestResult == nil || bestSim <= initialSim {
		return seg, false
	}

	newStart := bestStart
	newEnd := bestStart + duration
	if words := flattenWords(bestResult.Segments); len(words) > 0 {
		newStart = bestStart + words[0].Start
		newEnd = bestStart + words[len(words)-1].End
	}
	if newStart == seg.Start && newEnd == seg.End {
		return seg, false
	}

	seg.Start = newStart
	seg.End = newEnd
	seg.Words = nil
	return seg, true
}

func (t *timeBased) tryWindow(ctx context.Context, mediaPath, text string, start, duration float64) (float64, *asr.Result, bool) {
	result, err := t.r.engine.Transcribe(ctx, asr.Request{
		Path:           mediaPath,
		Start:          start,
		Duration:       duration,
		WordTimestamps: true,
		Strict:         true,
	})
	if err != nil {
		return 0, nil, false
	}
	sim := textutil.Similarity(text, strings.TrimSpace(result.Text))
	return sim, &result, true
}

// flattenWords collects the word timestamps of a transcription in order.
func flattenWords(segments []subtitle.Segment) []subtitle.Word {
	var out []subtitle.Word
	for _, s := range segments {
		out = append(out, s.Words...)
	}
	return out
}
