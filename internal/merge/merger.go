// Package merge fuses ASR segments that end mid-sentence into single
// segments. Japanese ASR output frequently cuts at pause boundaries rather
// than sentence boundaries, leaving fragments ending in connective particles.
package merge

import (
	"log/slog"
	"strings"

	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// Config controls segment merging.
type Config struct {
	Enable bool `toml:"enable"`
	// IncompleteMarkers are trailing particles and conjunctions that signal
	// an unfinished sentence.
	IncompleteMarkers []string `toml:"incomplete_markers"`
	// SentenceEnders mark a segment as complete. A segment ending with one
	// is never treated as incomplete even if a marker also matches.
	SentenceEnders []string `toml:"sentence_enders"`
	// MaxMergeGap is the largest silence, in seconds, that may separate two
	// segments joined into one sentence.
	MaxMergeGap float64 `toml:"max_merge_gap"`
	// MaxLineLength bounds the combined rune length so a merge does not
	// immediately force a re-split.
	MaxLineLength int `toml:"max_line_length"`
}

// DefaultConfig returns merging defaults tuned for Japanese dialogue.
func DefaultConfig() Config {
	return Config{
		Enable:            true,
		IncompleteMarkers: []string{"て", "で", "と", "が", "けど", "ども", "たり"},
		SentenceEnders:    []string{"。", "？", "！", "?", "!", "ね", "よ", "わ", "な", "か"},
		MaxMergeGap:       0.5,
		MaxLineLength:     30,
	}
}

// Merger joins adjacent incomplete segments.
type Merger struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Merger. A nil logger is replaced with a no-op logger.
func New(cfg Config, logger *slog.Logger) *Merger {
	return &Merger{cfg: cfg, logger: logging.NewComponentLogger(logger, "merge")}
}

// Merge fuses adjacent segments when the earlier one ends with an incomplete
// marker, the gap to the next is below MaxMergeGap, and the combined text
// stays within MaxLineLength runes. Chains of mergeable segments collapse
// into one. The input slice is not modified.
func (m *Merger) Merge(segments []subtitle.Segment) []subtitle.Segment {
	if len(segments) <= 1 {
		return append([]subtitle.Segment(nil), segments...)
	}

	out := make([]subtitle.Segment, 0, len(segments))
	group := []subtitle.Segment{segments[0]}

	for _, next := range segments[1:] {
		if m.shouldMerge(group[len(group)-1], next, group) {
			group = append(group, next)
			continue
		}
		out = append(out, m.collapse(group))
		group = []subtitle.Segment{next}
	}
	out = append(out, m.collapse(group))
	return out
}

// shouldMerge reports whether next should join the current group.
func (m *Merger) shouldMerge(prev, next subtitle.Segment, group []subtitle.Segment) bool {
	prevText := strings.TrimSpace(prev.Text)
	if prevText == "" {
		return false
	}
	for _, ender := range m.cfg.SentenceEnders {
		if ender != "" && strings.HasSuffix(prevText, ender) {
			return false
		}
	}
	incomplete := false
	for _, marker := range m.cfg.IncompleteMarkers {
		if marker != "" && strings.HasSuffix(prevText, marker) {
			incomplete = true
			break
		}
	}
	if !incomplete {
		return false
	}
	if next.Start-prev.End >= m.cfg.MaxMergeGap {
		return false
	}
	combined := 0
	for _, s := range group {
		combined += s.RuneCount()
	}
	combined += next.RuneCount()
	return combined <= m.cfg.MaxLineLength
}

// collapse joins a group of segments into one. Word lists are unioned only
// when every member carries words; a mixed group loses word timing.
func (m *Merger) collapse(group []subtitle.Segment) subtitle.Segment {
	if len(group) == 1 {
		return group[0]
	}

	var text strings.Builder
	allWords := true
	for _, s := range group {
		text.WriteString(strings.TrimSpace(s.Text))
		if !s.HasWords() {
			allWords = false
		}
	}

	merged := subtitle.Segment{
		Start: group[0].Start,
		End:   group[len(group)-1].End,
		Text:  text.String(),
	}
	if allWords {
		for _, s := range group {
			merged.Words = append(merged.Words, s.Words...)
		}
	} else {
		m.logger.Warn("merged segments without complete word timing",
			logging.Float64("start", merged.Start),
			logging.Int("segments", len(group)))
	}

	m.logger.Debug("merged incomplete segments",
		logging.Int("segments", len(group)),
		logging.Float64("start", merged.Start),
		logging.Float64("end", merged.End),
		logging.String("text", merged.Text))
	return merged
}
