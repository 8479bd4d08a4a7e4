// Package realign verifies subtitle timing against the audio by
// re-transcribing short clips and shifting cue boundaries to where the text
// actually occurs. Two strategies are available: time-based verification with
// sliding windows, and text search over expanding windows.
package realign

import (
	"context"
	"log/slog"

	"jimaku/internal/asr"
	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// Method names accepted in configuration.
const (
	MethodTimeBased  = "time_based"
	MethodTextSearch = "text_search"
)

// TimeBasedConfig tunes the time-based strategy.
type TimeBasedConfig struct {
	// Expansion is the largest window shift in seconds.
	Expansion float64 `toml:"expansion"`
	// ExpansionAttempts is the number of exponential shift steps.
	ExpansionAttempts int `toml:"expansion_attempts"`
	// Similarity is the match quality at which the search stops.
	Similarity float64 `toml:"similarity"`
}

// TextSearchConfig tunes the text-search strategy.
type TextSearchConfig struct {
	Expansion         float64 `toml:"expansion"`
	ExpansionAttempts int     `toml:"expansion_attempts"`
	Similarity        float64 `toml:"similarity"`
	// AdjustmentThreshold discards shifts smaller than this many seconds;
	// tiny corrections are noise, not drift.
	AdjustmentThreshold float64 `toml:"adjustment_threshold"`
}

// Config selects and tunes the realignment strategy.
type Config struct {
	Enable bool   `toml:"enable"`
	Method string `toml:"method"`
	// BatchSize groups segments for progress reporting.
	BatchSize int `toml:"batch_size"`
	// MinGap is the minimum silence kept between adjacent cues in seconds.
	MinGap     float64          `toml:"min_gap"`
	TimeBased  TimeBasedConfig  `toml:"time_based"`
	TextSearch TextSearchConfig `toml:"text_search"`
}

// DefaultConfig returns realignment defaults.
func DefaultConfig() Config {
	return Config{
		Enable:    true,
		Method:    MethodTimeBased,
		BatchSize: 10,
		MinGap:    0.1,
		TimeBased: TimeBasedConfig{
			Expansion:         3.0,
			ExpansionAttempts: 5,
			Similarity:        0.6,
		},
		TextSearch: TextSearchConfig{
			Expansion:           10.0,
			ExpansionAttempts:   4,
			Similarity:          0.85,
			AdjustmentThreshold: 0.3,
		},
	}
}

// strategy realigns segments and reports which indices it adjusted.
type strategy interface {
	name() string
	realign(ctx context.Context, mediaPath string, segments []subtitle.Segment) ([]subtitle.Segment, []int)
}

// Realigner runs the configured strategy and resolves any overlaps the
// adjustments introduced.
type Realigner struct {
	cfg    Config
	engine asr.Engine
	logger *slog.Logger
}

// New returns a Realigner. With a nil engine Run is a no-op.
func New(cfg Config, engine asr.Engine, logger *slog.Logger) *Realigner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MinGap <= 0 {
		cfg.MinGap = 0.1
	}
	return &Realigner{
		cfg:    cfg,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "realign"),
	}
}

// Run realigns the segments against the audio at mediaPath.
func (r *Realigner) Run(ctx context.Context, mediaPath string, segments []subtitle.Segment) []subtitle.Segment {
	if !r.cfg.Enable || len(segments) == 0 {
		return segments
	}
	if r.engine == nil || mediaPath == "" {
		r.logger.Warn("realignment requires an engine and media path, skipping")
		return segments
	}

	strat := r.strategyFor(r.cfg.Method)
	r.logger.Info("realigning segment timing",
		logging.String("method", strat.name()),
		logging.Int("segments", len(segments)))

	realigned, adjusted := strat.realign(ctx, mediaPath, segments)
	if len(adjusted) > 0 {
		realigned = r.resolveOverlaps(ctx, mediaPath, realigned, adjusted)
	}

	r.logger.Info("realignment complete",
		logging.Int("adjusted", len(adjusted)),
		logging.Int("segments", len(realigned)))
	return realigned
}

func (r *Realigner) strategyFor(method string) strategy {
	switch method {
	case MethodTextSearch:
		return &textSearch{r: r}
	case MethodTimeBased, "":
		return &timeBased{r: r}
	default:
		r.logger.Warn("unknown realignment method, using time_based",
			logging.String("method", method))
		return &timeBased{r: r}
	}
}

// resolveOverlaps fixes overlaps that timing adjustments introduced between
// neighbors. For each overlapping pair the true boundary is located by
// re-transcribing the pair's union; when that fails the midpoint is used.
func (r *Realigner) resolveOverlaps(ctx context.Context, mediaPath string, segments []subtitle.Segment, adjusted []int) []subtitle.Segment {
	minGap := r.cfg.MinGap

	type pair struct{ prev, curr int }
	var pairs []pair
	seen := make(map[pair]bool)
	add := func(p pair) {
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	for _, idx := range adjusted {
		if idx > 0 && segments[idx].Start < segments[idx-1].End+minGap {
			add(pair{idx - 1, idx})
		}
		if idx < len(segments)-1 && segments[idx].End > segments[idx+1].Start-minGap {
			add(pair{idx, idx + 1})
		}
	}
	if len(pairs) == 0 {
		return segments
	}

	r.logger.Info("resolving overlaps from timing adjustments",
		logging.Int("pairs", len(pairs)))

	for _, p := range pairs {
		prev := &segments[p.prev]
		curr := &segments[p.curr]

		boundary, ok := r.findBoundary(ctx, mediaPath, *prev, *curr)
		if ok {
			prev.End = boundary
			if newStart := boundary + minGap; newStart < curr.End {
				curr.Start = newStart
				r.logger.Debug("boundary located between overlapping segments",
					logging.Float64("boundary", boundary))
			}
			continue
		}

		midpoint := (prev.End + curr.Start) / 2
		prev.End = midpoint
		curr.Start = midpoint + minGap
		r.logger.Debug("boundary not found, split overlap at midpoint",
			logging.Float64("midpoint", midpoint))
	}
	return segments
}
