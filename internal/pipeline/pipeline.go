// Package pipeline sequences the subtitle stages for each media file and
// drives the batch loop across files. A failure in one file logs, records,
// and moves on; only configuration errors abort the remaining batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"jimaku/internal/asr"
	"jimaku/internal/cleanup"
	"jimaku/internal/config"
	"jimaku/internal/hallucinate"
	"jimaku/internal/logging"
	"jimaku/internal/media"
	"jimaku/internal/merge"
	"jimaku/internal/polish"
	"jimaku/internal/realign"
	"jimaku/internal/services"
	"jimaku/internal/split"
	"jimaku/internal/subtitle"
	"jimaku/internal/textutil"
	"jimaku/internal/vtt"
)

// Generator produces a text completion for a prompt. Satisfied by
// llm.Client; tests supply fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// Dependencies are the external collaborators a Runner needs. Engine is
// required; Audio and Generator are optional and disable their stages when
// absent.
type Dependencies struct {
	Engine    asr.Engine
	Audio     *media.Processor
	Generator Generator
	Logger    *slog.Logger
}

// Runner executes the subtitle pipeline.
type Runner struct {
	cfg    *config.Config
	engine asr.Engine
	audio  *media.Processor
	logger *slog.Logger

	merger    *merge.Merger
	splitter  *split.Splitter
	filter    *hallucinate.Filter
	realigner *realign.Realigner
	polisher  *polish.Polisher
	cleaner   *cleanup.Cleaner
}

// FileResult records the outcome for one source file.
type FileResult struct {
	Source  string
	Output  string
	Cues    int
	Elapsed time.Duration
	Err     error
}

// Summary aggregates a batch run.
type Summary struct {
	RunID   string
	Results []FileResult
	Elapsed time.Duration
}

// Succeeded counts files that produced a subtitle file.
func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts files that did not.
func (s Summary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// New builds a Runner with all stages wired per cfg.
func New(cfg *config.Config, deps Dependencies) (*Runner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "config is required", nil)
	}
	if deps.Engine == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "transcription engine is required", nil)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	var splitOpts []split.Option
	if cfg.Splitting.EnableLLM && deps.Generator != nil {
		splitOpts = append(splitOpts, split.WithGenerator(deps.Generator, cfg.LLM.MaxTokens, cfg.LLM.Temperature))
		if cfg.Hallucination.TimingValidation.MaxCharsPerSecond > 0 {
			splitOpts = append(splitOpts, split.WithMaxCharsPerSecond(cfg.Hallucination.TimingValidation.MaxCharsPerSecond))
		}
	}

	filter, err := hallucinate.New(cfg.Hallucination, deps.Engine, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "hallucination filter", err)
	}

	var gen polish.Generator
	if deps.Generator != nil {
		gen = deps.Generator
	}

	return &Runner{
		cfg:       cfg,
		engine:    deps.Engine,
		audio:     deps.Audio,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		merger:    merge.New(cfg.Merging, logger),
		splitter:  split.New(cfg.Splitting, logger, splitOpts...),
		filter:    filter,
		realigner: realign.New(cfg.Realignment, deps.Engine, logger),
		polisher:  polish.New(cfg.Polishing, gen, logger, polish.WithGenerationParams(cfg.LLM.MaxTokens, cfg.LLM.Temperature)),
		cleaner:   cleanup.New(cfg.Cleanup, logger),
	}, nil
}

// Run processes every source in order and returns the batch summary. The
// returned summary always covers all sources; files skipped after a fatal
// configuration error carry that error.
func (r *Runner) Run(ctx context.Context, sources []string) Summary {
	start := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)

	log := logging.WithContext(ctx, r.logger)
	log.Info("run started", logging.Int("files", len(sources)))

	summary := Summary{RunID: runID}
	aborted := false
	var abortErr error
	for _, source := range sources {
		if aborted {
			summary.Results = append(summary.Results, FileResult{Source: source, Err: abortErr})
			continue
		}
		res := r.ProcessFile(ctx, source)
		summary.Results = append(summary.Results, res)
		if res.Err != nil && services.IsFatal(res.Err) {
			log.Error("configuration error, aborting remaining files", logging.Error(res.Err))
			aborted = true
			abortErr = res.Err
		}
	}

	summary.Elapsed = time.Since(start)
	log.Info("run complete",
		logging.Int("succeeded", summary.Succeeded()),
		logging.Int("failed", summary.Failed()),
		logging.Duration("elapsed", summary.Elapsed))
	return summary
}

// ProcessFile runs the full stage sequence for one source file and writes
// the resulting VTT next to the configured output directory.
func (r *Runner) ProcessFile(ctx context.Context, source string) FileResult {
	start := time.Now()
	res := FileResult{Source: source}

	ctx = services.WithMedia(ctx, filepath.Base(source))
	log := logging.WithContext(ctx, r.logger)

	if _, err := os.Stat(source); err != nil {
		res.Err = services.Wrap(services.ErrValidation, "pipeline", "stat", "source file not readable", err)
		res.Elapsed = time.Since(start)
		log.Error("file skipped", logging.Error(res.Err))
		return res
	}

	log.Info("processing file")

	audioPath := source
	if r.audio != nil {
		normalized, err := r.audio.Normalize(services.WithStage(ctx, "preprocess"), source, r.cfg.Paths.WorkDir)
		if err != nil {
			res.Err = services.Wrap(services.ErrExternalTool, "preprocess", "normalize", "audio preprocessing failed", err)
			res.Elapsed = time.Since(start)
			log.Error("file skipped", logging.Error(res.Err))
			return res
		}
		audioPath = normalized
	}

	result, err := r.engine.Transcribe(services.WithStage(ctx, "transcribe"), asr.Request{
		Path:           audioPath,
		WordTimestamps: true,
	})
	if err != nil {
		res.Err = services.Wrap(services.ErrExternalTool, "transcribe", "whisper", "transcription failed", err)
		res.Elapsed = time.Since(start)
		log.Error("file skipped", logging.Error(res.Err))
		return res
	}
	segments := result.Segments
	r.logStage(log, "transcribe", len(segments), len(segments))

	segments = r.applyStages(ctx, log, audioPath, segments)

	outputPath := r.outputPath(source)
	cues, err := vtt.WriteFile(outputPath, segments)
	if err != nil {
		res.Err = services.Wrap(services.ErrTransient, "vtt", "write", "subtitle output failed", err)
		res.Elapsed = time.Since(start)
		log.Error("file skipped", logging.Error(res.Err))
		return res
	}
	if cues == 0 {
		log.Warn("no usable speech found, wrote empty subtitle file")
	}

	res.Output = outputPath
	res.Cues = cues
	res.Elapsed = time.Since(start)
	log.Info("file complete",
		logging.Int("cues", cues),
		logging.String("output", outputPath),
		logging.Duration("elapsed", res.Elapsed))
	return res
}

// applyStages runs the text stages in their fixed order. Merging and
// splitting honor their enable flags here; the remaining stages gate
// themselves on their own configs.
func (r *Runner) applyStages(ctx context.Context, log *slog.Logger, audioPath string, segments []subtitle.Segment) []subtitle.Segment {
	if r.cfg.Merging.Enable {
		in := len(segments)
		segments = r.merger.Merge(segments)
		r.logStage(log, "merge", in, len(segments))
	}

	if r.cfg.Splitting.Enable {
		in := len(segments)
		segments = r.splitter.Split(services.WithStage(ctx, "split"), segments)
		r.logStage(log, "split", in, len(segments))
	}

	in := len(segments)
	segments = r.filter.Run(services.WithStage(ctx, "hallucinate"), audioPath, segments)
	r.logStage(log, "hallucinate", in, len(segments))

	in = len(segments)
	segments = r.realigner.Run(services.WithStage(ctx, "realign"), audioPath, segments)
	r.logStage(log, "realign", in, len(segments))

	in = len(segments)
	segments = r.polisher.Polish(services.WithStage(ctx, "polish"), segments)
	r.logStage(log, "polish", in, len(segments))

	in = len(segments)
	segments = r.cleaner.Run(segments)
	r.logStage(log, "cleanup", in, len(segments))

	return segments
}

func (r *Runner) logStage(log *slog.Logger, stage string, in, out int) {
	log.Info("stage complete",
		logging.String(logging.FieldStage, stage),
		logging.Int("in", in),
		logging.Int("out", out))
}

func (r *Runner) outputPath(source string) string {
	stem := textutil.SanitizeFileName(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
	if stem == "" {
		stem = fmt.Sprintf("subtitle-%d", time.Now().Unix())
	}
	return filepath.Join(r.cfg.Paths.OutputDir, stem+".vtt")
}
