package hallucinate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"jimaku/internal/asr"
	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
	"jimaku/internal/textutil"
)

// revalidateSimilarityFloor confirms a phrase match as a persistent
// hallucination: the strict re-transcription reproduced essentially the same
// text, so the audio really does not contain different speech.
const revalidateSimilarityFloor = 0.75

type compiledPattern struct {
	re     *regexp.Regexp
	source string
}

func compilePatterns(cfg PhraseConfig) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(cfg.Patterns)+len(cfg.Phrases))
	for _, raw := range cfg.Patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("hallucinate: compile pattern %q: %w", raw, err)
		}
		out = append(out, compiledPattern{re: re, source: raw})
	}
	// Exact phrases become anchored patterns over the normalized text.
	for _, phrase := range cfg.Phrases {
		normalized := textutil.StripForMatching(phrase)
		if normalized == "" {
			continue
		}
		re, err := regexp.Compile("^" + regexp.QuoteMeta(normalized) + "$")
		if err != nil {
			return nil, fmt.Errorf("hallucinate: compile phrase %q: %w", phrase, err)
		}
		out = append(out, compiledPattern{re: re, source: phrase})
	}
	return out, nil
}

// filterPhrases drops segments whose normalized text matches a known
// hallucination pattern. With revalidation enabled, each match is
// re-transcribed first: reproducing similar text confirms the hallucination,
// while materially different audio keeps the segment with the new text.
func (f *Filter) filterPhrases(ctx context.Context, mediaPath string, segments []subtitle.Segment) []subtitle.Segment {
	if len(f.patterns) == 0 {
		return segments
	}

	out := make([]subtitle.Segment, 0, len(segments))
	removed := 0
	for _, seg := range segments {
		pattern := f.matchPattern(seg.Text)
		if pattern == nil {
			out = append(out, seg)
			continue
		}

		if f.cfg.PhraseFilter.EnableRevalidate && f.engine != nil && mediaPath != "" {
			keep, replaced := f.revalidatePhrase(ctx, mediaPath, seg)
			if keep {
				out = append(out, replaced)
				continue
			}
		}

		removed++
		f.logger.Debug("dropped hallucination phrase",
			logging.Float64("start", seg.Start),
			logging.String("text", seg.Text),
			logging.String("pattern", pattern.source))
	}
	if removed > 0 {
		f.logger.Info("removed hallucination phrases", logging.Int("removed", removed))
	}
	return out
}

func (f *Filter) matchPattern(text string) *compiledPattern {
	normalized := textutil.StripForMatching(text)
	if normalized == "" {
		return nil
	}
	for i := range f.patterns {
		if f.patterns[i].re.MatchString(normalized) {
			return &f.patterns[i]
		}
	}
	return nil
}

// revalidatePhrase re-transcribes the segment's exact span. It returns
// keep=false when the hallucination is confirmed, or keep=true with the
// segment to retain (possibly carrying re-transcribed text).
func (f *Filter) revalidatePhrase(ctx context.Context, mediaPath string, seg subtitle.Segment) (bool, subtitle.Segment) {
	result, err := f.engine.Transcribe(ctx, asr.Request{
		Path:           mediaPath,
		Start:          seg.Start,
		Duration:       seg.Duration(),
		WordTimestamps: true,
		Strict:         true,
	})
	if err != nil {
		// Re-verification failure keeps the original segment untouched.
		f.logger.Warn("phrase revalidation failed, keeping segment",
			logging.Float64("start", seg.Start),
			logging.Error(err))
		return true, seg
	}

	newText := strings.TrimSpace(result.Text)
	if newText == "" {
		// No speech behind the match.
		return false, subtitle.Segment{}
	}
	if textutil.Similarity(seg.Text, newText) >= revalidateSimilarityFloor {
		// The model reproduces the same phrase over this audio.
		return false, subtitle.Segment{}
	}

	// False positive: real, different speech. Keep it with the new text.
	f.logger.Info("phrase match was a false positive, keeping re-transcribed text",
		logging.Float64("start", seg.Start),
		logging.String("before", seg.Text),
		logging.String("after", newText))
	seg.Text = newText
	seg.Words = offsetWords(result.Segments, seg.Start)
	return true, seg
}

// offsetWords flattens the clip-relative words of a re-transcription into
// absolute time.
func offsetWords(segments []subtitle.Segment, base float64) []subtitle.Word {
	var out []subtitle.Word
	for _, s := range segments {
		for _, w := range s.Words {
			out = append(out, subtitle.Word{Text: w.Text, Start: w.Start + base, End: w.End + base})
		}
	}
	return out
}
