// Package split breaks over-long segments into readable cues. Rule-based
// splitting walks word timestamps looking for punctuation boundaries; an
// optional LLM pass handles long text that carries no punctuation at all.
package split

import (
	"context"
	"log/slog"
	"strings"

	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// Config controls segment splitting.
type Config struct {
	Enable bool `toml:"enable"`
	// MaxLineLength is the advisory rune-length threshold per cue. The word
	// walk may exceed it rather than cut mid-word.
	MaxLineLength int `toml:"max_line_length"`
	// PrimaryBreaks force a cut immediately after the word containing them.
	PrimaryBreaks []string `toml:"primary_breaks"`
	// SecondaryBreaks are acceptable cut points once the threshold is
	// reached and no primary break is near.
	SecondaryBreaks []string `toml:"secondary_breaks"`
	// EnableLLM turns on the LLM pass for chunks the rule walk left long.
	EnableLLM bool `toml:"enable_llm"`
}

// DefaultConfig returns splitting defaults tuned for Japanese dialogue.
func DefaultConfig() Config {
	return Config{
		Enable:          true,
		MaxLineLength:   30,
		PrimaryBreaks:   []string{"。", "？", "！", "?", "!"},
		SecondaryBreaks: []string{"、", "わ", "ね", "よ"},
	}
}

// Generator produces a text completion for a prompt. Satisfied by
// llm.Client; tests supply fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Splitter breaks segments that exceed the configured line length.
type Splitter struct {
	cfg               Config
	logger            *slog.Logger
	gen               Generator
	maxTokens         int
	temperature       float64
	maxCharsPerSecond float64
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithGenerator enables the LLM splitting pass using the supplied generator.
func WithGenerator(gen Generator, maxTokens int, temperature float64) Option {
	return func(s *Splitter) {
		s.gen = gen
		s.maxTokens = maxTokens
		s.temperature = temperature
	}
}

// WithMaxCharsPerSecond overrides the reading-speed ceiling used by the LLM
// split feasibility check.
func WithMaxCharsPerSecond(v float64) Option {
	return func(s *Splitter) {
		if v > 0 {
			s.maxCharsPerSecond = v
		}
	}
}

// New returns a Splitter.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Splitter {
	s := &Splitter{
		cfg:               cfg,
		logger:            logging.NewComponentLogger(logger, "split"),
		maxTokens:         1024,
		maxCharsPerSecond: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split applies rule-based splitting to every segment, then the optional LLM
// pass to chunks that are still over the threshold.
func (s *Splitter) Split(ctx context.Context, segments []subtitle.Segment) []subtitle.Segment {
	out := make([]subtitle.Segment, 0, len(segments))
	for _, seg := range segments {
		out = append(out, s.splitByRules(seg)...)
	}
	s.logger.Debug("rule-based splitting done",
		logging.Int("in", len(segments)),
		logging.Int("out", len(out)))

	if !s.cfg.EnableLLM || s.gen == nil {
		return out
	}

	refined := make([]subtitle.Segment, 0, len(out))
	for _, seg := range out {
		refined = append(refined, s.splitWithLLM(ctx, seg)...)
	}
	s.logger.Debug("llm splitting done",
		logging.Int("in", len(out)),
		logging.Int("out", len(refined)))
	return refined
}

// splitByRules splits one segment on punctuation boundaries using word
// timestamps, falling back to proportional character timing without them.
func (s *Splitter) splitByRules(seg subtitle.Segment) []subtitle.Segment {
	text := strings.TrimSpace(seg.Text)
	if len([]rune(text)) <= s.cfg.MaxLineLength {
		res := seg
		res.Text = text
		return []subtitle.Segment{res}
	}

	if !seg.HasWords() {
		s.logger.Warn("no word timestamps, using proportional split timing",
			logging.Float64("start", seg.Start))
		return s.splitByProportion(text, seg.Start, seg.End)
	}

	var chunks [][]subtitle.Word
	var current []subtitle.Word
	currentLen := 0

	words := seg.Words
	for i := 0; i < len(words); i++ {
		w := words[i]
		current = append(current, w)
		currentLen += len([]rune(w.Text))

		if containsAny(w.Text, s.cfg.PrimaryBreaks) {
			chunks = append(chunks, current)
			current, currentLen = nil, 0
			continue
		}

		if currentLen < s.cfg.MaxLineLength {
			continue
		}

		// Threshold reached. A sentence end within the next 10 words beats
		// cutting here; otherwise a secondary break on the current word is
		// good enough; otherwise keep going rather than cut mid-word.
		primaryAhead := false
		for ahead := 1; ahead <= 10 && i+ahead < len(words); ahead++ {
			if containsAny(words[i+ahead].Text, s.cfg.PrimaryBreaks) {
				primaryAhead = true
				break
			}
		}
		if primaryAhead {
			continue
		}
		if containsAny(w.Text, s.cfg.SecondaryBreaks) {
			chunks = append(chunks, current)
			current, currentLen = nil, 0
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	if len(chunks) == 0 {
		res := seg
		res.Text = text
		res.Words = nil
		return []subtitle.Segment{res}
	}

	out := make([]subtitle.Segment, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, subtitle.Segment{
			Start: chunk[0].Start,
			End:   chunk[len(chunk)-1].End,
			Text:  subtitle.JoinWordText(chunk),
			Words: subtitle.CloneWords(chunk),
		})
	}
	return out
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
