package hallucinate

import (
	"context"
	"errors"
	"strings"

	"jimaku/internal/asr"
	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// validateTiming drops or re-verifies segments whose reading speed is
// implausible. Timing itself is never corrected here; that is the
// realigner's job. The second return value reports whether any text was
// replaced by re-transcription.
func (f *Filter) validateTiming(ctx context.Context, mediaPath string, segments []subtitle.Segment) ([]subtitle.Segment, bool) {
	maxCPS := f.cfg.TimingValidation.MaxCharsPerSecond
	revalidate := f.cfg.TimingValidation.EnableRevalidate && f.engine != nil && mediaPath != ""

	out := make([]subtitle.Segment, 0, len(segments))
	suspicious := 0
	changed := false

	for _, seg := range segments {
		if seg.Duration() <= 0 {
			continue
		}
		cps := seg.CharsPerSecond()
		tooFast := cps > maxCPS
		tooSlow := cps < 1.0 && seg.RuneCount() > 5
		if !tooFast && !tooSlow {
			out = append(out, seg)
			continue
		}

		suspicious++
		reason := "too fast"
		if tooSlow {
			reason = "too slow"
		}

		if !revalidate {
			f.logger.Warn("dropped segment with implausible timing",
				logging.Float64("start", seg.Start),
				logging.String("reason", reason),
				logging.Float64("chars_per_second", cps))
			continue
		}

		replaced, keep := f.revalidateTiming(ctx, mediaPath, seg)
		if !keep {
			f.logger.Info("dropped segment, no speech on revalidation",
				logging.Float64("start", seg.Start),
				logging.String("reason", reason))
			continue
		}
		if replaced.Text != seg.Text {
			changed = true
		}
		out = append(out, replaced)
	}

	if suspicious > 0 {
		f.logger.Info("timing validation finished",
			logging.Int("suspicious", suspicious),
			logging.Int("kept", len(out)))
	}
	return out, changed
}

// revalidateTiming re-transcribes the segment's span with strict parameters.
// No speech means the segment is a confirmed hallucination; real speech
// replaces the text and words while the original span is preserved for the
// realigner.
func (f *Filter) revalidateTiming(ctx context.Context, mediaPath string, seg subtitle.Segment) (subtitle.Segment, bool) {
	result, err := f.engine.Transcribe(ctx, asr.Request{
		Path:           mediaPath,
		Start:          seg.Start,
		Duration:       seg.Duration(),
		WordTimestamps: true,
		Strict:         true,
	})
	if err != nil {
		if errors.Is(err, asr.ErrClipTooShort) {
			return seg, true
		}
		f.logger.Warn("timing revalidation failed, keeping segment",
			logging.Float64("start", seg.Start),
			logging.Error(err))
		return seg, true
	}

	newText := strings.TrimSpace(result.Text)
	if newText == "" {
		return subtitle.Segment{}, false
	}

	seg.Text = newText
	seg.Words = offsetWords(result.Segments, seg.Start)
	return seg, true
}
