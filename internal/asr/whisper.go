package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"jimaku/internal/logging"
	"jimaku/internal/subtitle"
)

// WhisperCommand is the default whisper CLI binary name.
const WhisperCommand = "whisper"

// Strict re-verification parameters. Windowed retries transcribe short
// isolated clips of already validated content, so decoding is deterministic,
// thresholds are tighter and no prompt or context may bias the output.
const (
	strictTemperature      = "0"
	strictCompressionRatio = "2.0"
	strictLogprob          = "-0.8"
	strictNoSpeech         = "0.4"
)

// WhisperConfig captures runtime settings for the whisper CLI.
type WhisperConfig struct {
	// Binary is the whisper executable.
	Binary string `toml:"binary"`
	// Model is the whisper model name (e.g. "large-v3").
	Model    string `toml:"model"`
	Language string `toml:"language"`
	// Device selects "cpu" or "cuda".
	Device string `toml:"device"`

	BeamSize                  int     `toml:"beam_size"`
	BestOf                    int     `toml:"best_of"`
	Patience                  float64 `toml:"patience"`
	CompressionRatioThreshold float64 `toml:"compression_ratio_threshold"`
	LogprobThreshold          float64 `toml:"logprob_threshold"`
	NoSpeechThreshold         float64 `toml:"no_speech_threshold"`
	// InitialPrompt biases the first window of a full transcription. Never
	// used for strict clips.
	InitialPrompt string `toml:"initial_prompt"`
}

// DefaultWhisperConfig returns the transcription defaults.
func DefaultWhisperConfig() WhisperConfig {
	return WhisperConfig{
		Binary:                    WhisperCommand,
		Model:                     "large-v3",
		Language:                  "ja",
		Device:                    "cpu",
		BeamSize:                  5,
		BestOf:                    5,
		Patience:                  2.0,
		CompressionRatioThreshold: 3.0,
		LogprobThreshold:          -1.5,
		NoSpeechThreshold:         0.2,
	}
}

// ClipExtractor carves an audio span out of a media file. Satisfied by
// media.Processor.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, source string, start, duration float64, dest string) error
}

// CommandRunner executes an external command. Tests inject fakes.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// WhisperEngine shells out to the whisper CLI, reading its JSON output.
type WhisperEngine struct {
	cfg       WhisperConfig
	extractor ClipExtractor
	runner    CommandRunner
	workDir   string
	logger    *slog.Logger
}

// WhisperOption configures a WhisperEngine.
type WhisperOption func(*WhisperEngine)

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner CommandRunner) WhisperOption {
	return func(e *WhisperEngine) { e.runner = runner }
}

// NewWhisperEngine returns an Engine backed by the whisper CLI. workDir
// holds extracted clips and CLI output; it is created on demand.
func NewWhisperEngine(cfg WhisperConfig, extractor ClipExtractor, workDir string, logger *slog.Logger, opts ...WhisperOption) *WhisperEngine {
	if cfg.Binary == "" {
		cfg.Binary = WhisperCommand
	}
	e := &WhisperEngine{
		cfg:       cfg,
		extractor: extractor,
		workDir:   workDir,
		logger:    logging.NewComponentLogger(logger, "asr"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transcribe implements Engine. Requests with a Start or Duration extract
// the clip first; result times are relative to the clip.
func (e *WhisperEngine) Transcribe(ctx context.Context, req Request) (Result, error) {
	if req.Path == "" {
		return Result{}, fmt.Errorf("asr: media path required")
	}
	if req.Duration > 0 && req.Duration < MinClipSeconds {
		return Result{}, ErrClipTooShort
	}

	outDir, err := os.MkdirTemp(e.workDir, "whisper-")
	if err != nil {
		return Result{}, fmt.Errorf("asr: create work dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	input := req.Path
	if req.Start > 0 || req.Duration > 0 {
		if e.extractor == nil {
			return Result{}, fmt.Errorf("asr: windowed transcription requires a clip extractor")
		}
		input = filepath.Join(outDir, "clip.wav")
		if err := e.extractor.ExtractClip(ctx, req.Path, req.Start, req.Duration, input); err != nil {
			return Result{}, err
		}
	}

	if err := e.run(ctx, e.cfg.Binary, e.buildArgs(input, outDir, req)...); err != nil {
		return Result{}, fmt.Errorf("asr: whisper: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	result, err := loadWhisperJSON(filepath.Join(outDir, base+".json"))
	if err != nil {
		return Result{}, fmt.Errorf("asr: read whisper output: %w", err)
	}

	e.logger.Debug("transcription finished",
		logging.Float64("start", req.Start),
		logging.Float64("duration", req.Duration),
		logging.Bool("strict", req.Strict),
		logging.Int("segments", len(result.Segments)))
	return result, nil
}

func (e *WhisperEngine) run(ctx context.Context, name string, args ...string) error {
	if e.runner != nil {
		return e.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (e *WhisperEngine) buildArgs(input, outDir string, req Request) []string {
	cfg := e.cfg
	args := []string{
		input,
		"--model", cfg.Model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--device", cfg.Device,
		"--beam_size", strconv.Itoa(cfg.BeamSize),
		"--best_of", strconv.Itoa(cfg.BestOf),
		"--patience", formatFloat(cfg.Patience),
		"--word_timestamps", pythonBool(req.WordTimestamps),
		"--verbose", "False",
	}
	if cfg.Language != "" {
		args = append(args, "--language", cfg.Language)
	}

	if req.Strict {
		args = append(args,
			"--temperature", strictTemperature,
			"--compression_ratio_threshold", strictCompressionRatio,
			"--logprob_threshold", strictLogprob,
			"--no_speech_threshold", strictNoSpeech,
			"--condition_on_previous_text", "False",
		)
		return args
	}

	args = append(args,
		"--compression_ratio_threshold", formatFloat(cfg.CompressionRatioThreshold),
		"--logprob_threshold", formatFloat(cfg.LogprobThreshold),
		"--no_speech_threshold", formatFloat(cfg.NoSpeechThreshold),
	)
	if cfg.InitialPrompt != "" {
		args = append(args, "--initial_prompt", cfg.InitialPrompt)
	}
	return args
}

func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type whisperWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperSegment struct {
	Text  string        `json:"text"`
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Words []whisperWord `json:"words"`
}

type whisperPayload struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
}

func loadWhisperJSON(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Result{}, fmt.Errorf("parse whisper json: %w", err)
	}

	result := Result{Text: strings.TrimSpace(payload.Text)}
	for _, seg := range payload.Segments {
		s := subtitle.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
		for _, w := range seg.Words {
			s.Words = append(s.Words, subtitle.Word{
				Text:  strings.TrimSpace(w.Word),
				Start: w.Start,
				End:   w.End,
			})
		}
		result.Segments = append(result.Segments, s)
	}

	if result.Text == "" {
		var parts []string
		for _, seg := range result.Segments {
			if seg.Text != "" {
				parts = append(parts, seg.Text)
			}
		}
		result.Text = strings.Join(parts, " ")
	}
	return result, nil
}
