// Package hallucinate removes ASR artifacts: stock phrases the model emits
// over silence, consecutive duplicate segments, stutter fragments, and
// segments whose timing is implausible for their text.
package hallucinate

import (
	"context"
	"log/slog"

	"jimaku/internal/asr"
	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// PhraseConfig controls the phrase/pattern filter.
type PhraseConfig struct {
	Enable bool `toml:"enable"`
	// Phrases are exact hallucination texts, matched anchored after
	// normalization. Kept for configs written before Patterns existed.
	Phrases []string `toml:"phrases"`
	// Patterns are regular expressions tested against normalized text.
	Patterns []string `toml:"patterns"`
	// EnableRevalidate re-transcribes matches before dropping them, keeping
	// false positives with the re-transcribed text.
	EnableRevalidate bool `toml:"enable_revalidate"`
}

// DuplicateConfig controls the consecutive-duplicate filter.
type DuplicateConfig struct {
	Enable bool `toml:"enable"`
	// MinOccurrences is the run length at which a collapse is reported as a
	// likely hallucination. Runs of 2+ are merged regardless.
	MinOccurrences int `toml:"min_occurrences"`
}

// TimingConfig controls the timing validator.
type TimingConfig struct {
	Enable            bool    `toml:"enable"`
	MaxCharsPerSecond float64 `toml:"max_chars_per_second"`
	EnableRevalidate  bool    `toml:"enable_revalidate"`
}

// Config groups the sub-filter settings.
type Config struct {
	PhraseFilter          PhraseConfig    `toml:"phrase_filter"`
	ConsecutiveDuplicates DuplicateConfig `toml:"consecutive_duplicates"`
	TimingValidation      TimingConfig    `toml:"timing_validation"`
}

// DefaultConfig returns filter defaults.
func DefaultConfig() Config {
	return Config{
		PhraseFilter: PhraseConfig{
			Enable:  true,
			Phrases: []string{"ご視聴ありがとうございました", "チャンネル登録お願いします"},
		},
		ConsecutiveDuplicates: DuplicateConfig{
			Enable:         true,
			MinOccurrences: 4,
		},
		TimingValidation: TimingConfig{
			Enable:            true,
			MaxCharsPerSecond: 20,
		},
	}
}

// Filter applies the ordered hallucination sub-filters.
type Filter struct {
	cfg      Config
	logger   *slog.Logger
	engine   asr.Engine
	patterns []compiledPattern
}

// New returns a Filter. The engine may be nil; revalidation is then skipped
// and flagged segments are dropped outright.
func New(cfg Config, engine asr.Engine, logger *slog.Logger) (*Filter, error) {
	patterns, err := compilePatterns(cfg.PhraseFilter)
	if err != nil {
		return nil, err
	}
	if cfg.TimingValidation.MaxCharsPerSecond <= 0 {
		cfg.TimingValidation.MaxCharsPerSecond = 20
	}
	return &Filter{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "hallucinate"),
		engine:   engine,
		patterns: patterns,
	}, nil
}

// Run applies the sub-filters in order: phrases, duplicates, single-character
// merge, timing validation. When timing revalidation rewrote any text, the
// phrase and duplicate filters run again because substituted text can itself
// be a hallucination or create a fresh duplicate run.
func (f *Filter) Run(ctx context.Context, mediaPath string, segments []subtitle.Segment) []subtitle.Segment {
	if f.cfg.PhraseFilter.Enable {
		segments = f.filterPhrases(ctx, mediaPath, segments)
	}
	if f.cfg.ConsecutiveDuplicates.Enable {
		segments = f.collapseDuplicates(segments)
	}
	segments = f.mergeSingleRuneRuns(segments)

	if f.cfg.TimingValidation.Enable {
		var changed bool
		segments, changed = f.validateTiming(ctx, mediaPath, segments)
		if changed {
			f.logger.Debug("re-filtering after timing revalidation")
			if f.cfg.PhraseFilter.Enable {
				segments = f.filterPhrases(ctx, mediaPath, segments)
			}
			if f.cfg.ConsecutiveDuplicates.Enable {
				segments = f.collapseDuplicates(segments)
			}
		}
	}
	return segments
}
