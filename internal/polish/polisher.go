// Package polish cleans up subtitle text with an LLM: sentence punctuation,
// awkward particles and unnatural breaks, with meaning and register kept.
// Timing is never touched.
package polish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jimaku/internal/logging"
	"jimaku/internal/services/llm"
	"jimaku/internal/subtitle"
)

// Config controls text polishing.
type Config struct {
	Enable bool `toml:"enable"`
	// BatchSize is how many segments share one request. Values of 1 or less
	// disable batching, which suits slow local endpoints.
	BatchSize int `toml:"batch_size"`
}

// DefaultConfig returns polishing defaults.
func DefaultConfig() Config {
	return Config{BatchSize: 10}
}

// Generator produces a text completion for a prompt. Satisfied by
// llm.Client; tests supply fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Polisher rewrites segment text via the generator, batch first with a
// per-segment retry when a batch fails.
type Polisher struct {
	cfg         Config
	logger      *slog.Logger
	gen         Generator
	maxTokens   int
	temperature float64
}

// Option configures a Polisher.
type Option func(*Polisher)

// WithGenerationParams overrides the request token budget and temperature.
func WithGenerationParams(maxTokens int, temperature float64) Option {
	return func(p *Polisher) {
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
		p.temperature = temperature
	}
}

// New returns a Polisher. A nil generator makes Polish a no-op.
func New(cfg Config, gen Generator, logger *slog.Logger, opts ...Option) *Polisher {
	if cfg.BatchSize <= 1 {
		cfg.BatchSize = 1
	}
	p := &Polisher{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "polish"),
		gen:       gen,
		maxTokens: 1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Polish rewrites the text of every segment. Timing and word timestamps are
// preserved; any failure keeps the original text for the affected segments.
func (p *Polisher) Polish(ctx context.Context, segments []subtitle.Segment) []subtitle.Segment {
	if !p.cfg.Enable || p.gen == nil || len(segments) == 0 {
		return segments
	}

	out := make([]subtitle.Segment, 0, len(segments))
	for i := 0; i < len(segments); i += p.cfg.BatchSize {
		end := i + p.cfg.BatchSize
		if end > len(segments) {
			end = len(segments)
		}
		out = append(out, p.polishBatch(ctx, segments[i:end])...)
	}

	p.logger.Info("text polishing complete", logging.Int("segments", len(out)))
	return out
}

func (p *Polisher) polishBatch(ctx context.Context, batch []subtitle.Segment) []subtitle.Segment {
	texts := make([]string, len(batch))
	for i, seg := range batch {
		texts[i] = seg.Text
	}

	polished, err := p.request(ctx, texts)
	if err == nil {
		return applyTexts(batch, polished)
	}

	if len(batch) == 1 {
		p.logger.Warn("polishing failed, keeping original text",
			logging.Float64("start", batch[0].Start),
			logging.Error(err))
		return append([]subtitle.Segment(nil), batch...)
	}

	// The batch failed as a whole; segments usually survive one at a time.
	p.logger.Warn("batch polishing failed, retrying segments individually",
		logging.Int("batch", len(batch)),
		logging.Error(err))

	out := make([]subtitle.Segment, 0, len(batch))
	recovered := 0
	for _, seg := range batch {
		single, err := p.request(ctx, []string{seg.Text})
		if err != nil || len(single) == 0 {
			out = append(out, seg)
			continue
		}
		seg.Text = single[0]
		out = append(out, seg)
		recovered++
	}
	p.logger.Info("individual retry finished",
		logging.Int("recovered", recovered),
		logging.Int("batch", len(batch)))
	return out
}

// request sends one polishing prompt and decodes the returned list. The
// response must carry at most as many entries as were sent; extras are
// ignored by applyTexts.
func (p *Polisher) request(ctx context.Context, texts []string) ([]string, error) {
	raw, err := p.gen.Generate(ctx, buildPrompt(texts), p.maxTokens, p.temperature)
	if err != nil {
		return nil, err
	}
	polished, err := llm.DecodeStringList(raw, "polished")
	if err != nil {
		return nil, fmt.Errorf("polish: decode response: %w", err)
	}
	return polished, nil
}

// applyTexts overwrites batch texts with the polished versions, position by
// position. Missing tail entries keep their original text.
func applyTexts(batch []subtitle.Segment, polished []string) []subtitle.Segment {
	out := append([]subtitle.Segment(nil), batch...)
	for i, text := range polished {
		if i >= len(out) {
			break
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			out[i].Text = trimmed
		}
	}
	return out
}

func buildPrompt(texts []string) string {
	var numbered strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, text)
	}

	example := `{"polished": ["整形後1", "整形後2", "整形後3"]}`
	if len(texts) == 1 {
		example = `{"polished": ["整形後1"]}`
	}

	return fmt.Sprintf(`日本語字幕のテキストを整形してください。

以下のルールに従ってください:
1. 文末に適切な句読点を追加（。？！など）
2. 不自然な改行や区切りを修正
3. 助詞や語尾の不自然さを修正
4. 元の意味やニュアンスを保持
5. 口語的な表現はそのまま維持

元のテキスト:
%s
JSON形式で、整形後のテキストを配列で返してください。
例: %s

必ずJSONのみを返してください。説明文は不要です。`, numbered.String(), example)
}
