// Package media shells out to ffmpeg for the audio plumbing around
// transcription: loudness normalization of the source and extraction of
// short mono 16kHz clips for windowed re-transcription.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"jimaku/internal/logging"
)

// FFmpegCommand is the default ffmpeg binary name.
const FFmpegCommand = "ffmpeg"

// Config controls audio preprocessing.
type Config struct {
	// Enable turns on loudness normalization before transcription.
	Enable bool `toml:"enable"`
	// TargetLoudnessLUFS is the integrated loudness target for loudnorm.
	TargetLoudnessLUFS float64 `toml:"target_loudness_lufs"`
}

// DefaultConfig returns audio preprocessing defaults.
func DefaultConfig() Config {
	return Config{TargetLoudnessLUFS: -6.0}
}

// CommandRunner executes an external command. Tests inject fakes.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Processor wraps the ffmpeg invocations.
type Processor struct {
	cfg    Config
	binary string
	runner CommandRunner
	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithBinary overrides the ffmpeg binary path.
func WithBinary(path string) Option {
	return func(p *Processor) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(p *Processor) { p.runner = runner }
}

// New returns a Processor.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		cfg:    cfg,
		binary: FFmpegCommand,
		logger: logging.NewComponentLogger(logger, "media"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) run(ctx context.Context, args ...string) error {
	if p.runner != nil {
		return p.runner(ctx, p.binary, args...)
	}
	cmd := exec.CommandContext(ctx, p.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", p.binary, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Normalize writes a loudness-normalized mono 16kHz WAV copy of source into
// outputDir and returns its path. When normalization is disabled or ffmpeg
// fails, the original path comes back so transcription proceeds on the
// source as-is.
func (p *Processor) Normalize(ctx context.Context, source, outputDir string) (string, error) {
	if !p.cfg.Enable {
		return source, nil
	}
	if outputDir == "" {
		return "", fmt.Errorf("media: output dir required for normalization")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("media: ensure output dir: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	dest := filepath.Join(outputDir, "normalized_"+stem+".wav")

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		// LRA 11 is the broadcast standard range; TP -1.5 dB avoids clipping.
		"-af", fmt.Sprintf("loudnorm=I=%g:LRA=11:TP=-1.5", p.cfg.TargetLoudnessLUFS),
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	}
	if err := p.run(ctx, args...); err != nil {
		p.logger.Warn("audio normalization failed, using original audio",
			logging.String("source", source),
			logging.Error(err))
		return source, nil
	}

	p.logger.Info("audio normalized",
		logging.Float64("target_lufs", p.cfg.TargetLoudnessLUFS),
		logging.String("dest", dest))
	return dest, nil
}

// ExtractClip writes the [start, start+duration) span of source as a mono
// 16kHz WAV at dest. A non-positive duration copies from start to the end.
func (p *Processor) ExtractClip(ctx context.Context, source string, start, duration float64, dest string) error {
	if start < 0 {
		start = 0
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", start),
	}
	if duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", duration))
	}
	args = append(args,
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)
	if err := p.run(ctx, args...); err != nil {
		return fmt.Errorf("media: extract clip: %w", err)
	}
	return nil
}
