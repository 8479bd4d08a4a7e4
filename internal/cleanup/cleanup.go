// Package cleanup is the last text pass before subtitle output. It condenses
// runaway repetitions, drops or replaces pure stammer segments, and rewrites
// globally repeated hallucination words as natural vocalizations.
package cleanup

import (
	"log/slog"

	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// WordRepetitionConfig tunes the repetition condenser.
type WordRepetitionConfig struct {
	// MaxPatternLength is the longest repeating unit considered, in runes.
	MaxPatternLength int `toml:"max_pattern_length"`
	// MinRepetitions is the run length at which condensing kicks in.
	MinRepetitions int `toml:"min_repetitions"`
	// DisplayCount is how many instances survive in the condensed form.
	DisplayCount int `toml:"condensed_display_count"`
}

// VocalizationConfig controls replacement of stammer text with a natural
// vocalization sized to the cue duration.
type VocalizationConfig struct {
	Enable bool `toml:"enable"`
	// Options are candidate vocalizations; the first found in the original
	// text wins, otherwise the first option.
	Options []string `toml:"vocalization_options"`

	ShortDurationThreshold  float64 `toml:"short_duration_threshold"`
	MediumDurationThreshold float64 `toml:"medium_duration_threshold"`
	ShortRepeatCount        int     `toml:"short_repeat_count"`
	MediumRepeatCount       int     `toml:"medium_repeat_count"`
	LongRepeatCount         int     `toml:"long_repeat_count"`
}

// StammerConfig controls the stammer filter.
type StammerConfig struct {
	Enable         bool                 `toml:"enable"`
	WordRepetition WordRepetitionConfig `toml:"word_repetition"`
	Vocalization   VocalizationConfig   `toml:"vocalization_replacement"`
}

// GlobalWordConfig controls the file-wide repeated-word detector.
type GlobalWordConfig struct {
	Enable bool `toml:"enable"`
	// MinOccurrences is the file-wide count at which a short word counts as
	// a hallucination.
	MinOccurrences int `toml:"min_occurrences"`
}

// ClusterConfig detects words that repeat in bursts rather than file-wide.
type ClusterConfig struct {
	Enable            bool    `toml:"enable"`
	MinOccurrences    int     `toml:"min_occurrences"`
	TimeWindowSeconds float64 `toml:"time_window_seconds"`
}

// Config groups the final-cleanup settings.
type Config struct {
	Enable      bool             `toml:"enable"`
	Stammer     StammerConfig    `toml:"stammer_filter"`
	GlobalWords GlobalWordConfig `toml:"global_word_filter"`
	Cluster     ClusterConfig    `toml:"cluster_filter"`
}

// DefaultConfig returns cleanup defaults.
func DefaultConfig() Config {
	return Config{
		Enable: true,
		Stammer: StammerConfig{
			Enable: true,
			WordRepetition: WordRepetitionConfig{
				MaxPatternLength: 15,
				MinRepetitions:   5,
				DisplayCount:     3,
			},
			Vocalization: VocalizationConfig{
				Options:                 []string{"あ", "ん", "うん", "はぁ", "ふぅ"},
				ShortDurationThreshold:  2.0,
				MediumDurationThreshold: 5.0,
				ShortRepeatCount:        1,
				MediumRepeatCount:       2,
				LongRepeatCount:         3,
			},
		},
		GlobalWords: GlobalWordConfig{MinOccurrences: 12},
		Cluster:     ClusterConfig{MinOccurrences: 6, TimeWindowSeconds: 60},
	}
}

// Cleaner applies the final cleanup filters.
type Cleaner struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Cleaner.
func New(cfg Config, logger *slog.Logger) *Cleaner {
	c := &Cleaner{cfg: cfg, logger: logging.NewComponentLogger(logger, "cleanup")}
	if c.cfg.Stammer.WordRepetition.MaxPatternLength <= 0 {
		c.cfg.Stammer.WordRepetition.MaxPatternLength = 15
	}
	if c.cfg.Stammer.WordRepetition.MinRepetitions <= 0 {
		c.cfg.Stammer.WordRepetition.MinRepetitions = 5
	}
	if c.cfg.Stammer.WordRepetition.DisplayCount <= 0 {
		c.cfg.Stammer.WordRepetition.DisplayCount = 3
	}
	if len(c.cfg.Stammer.Vocalization.Options) == 0 {
		c.cfg.Stammer.Vocalization.Options = []string{"あ"}
	}
	return c
}

// Run applies the stammer filter and the global word filter in order.
func (c *Cleaner) Run(segments []subtitle.Segment) []subtitle.Segment {
	if !c.cfg.Enable || len(segments) == 0 {
		return segments
	}

	before := len(segments)
	if c.cfg.Stammer.Enable {
		segments = c.filterStammer(segments)
	}

	if c.cfg.GlobalWords.Enable || c.cfg.Cluster.Enable {
		words := c.detectGlobalWords(segments)
		if len(words) > 0 {
			c.logger.Info("replacing globally repeated hallucination words",
				logging.Int("words", len(words)))
			segments = c.replaceGlobalWords(segments, words)
		}
	}

	c.logger.Info("final cleanup complete",
		logging.Int("before", before),
		logging.Int("after", len(segments)))
	return segments
}
