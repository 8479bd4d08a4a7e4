package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jimaku/internal/asr"
	"jimaku/internal/config"
	"jimaku/internal/logging"
	"jimaku/internal/media"
	"jimaku/internal/pipeline"
	"jimaku/internal/services/llm"
	"jimaku/internal/transcache"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Transcribe media files into WebVTT subtitles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			if outputDir != "" {
				expanded, err := config.ExpandPath(outputDir)
				if err != nil {
					return fmt.Errorf("resolve output dir: %w", err)
				}
				if err := os.MkdirAll(expanded, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
				cfg.Paths.OutputDir = expanded
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				LogDir: cfg.Paths.LogDir,
			})
			if err != nil {
				return err
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: "*.log*",
				Exclude: []string{logging.LogFileName},
			})

			processor := media.New(cfg.Audio, logger)
			var engine asr.Engine = asr.NewWhisperEngine(cfg.Whisper, processor, cfg.Paths.WorkDir, logger)

			if cfg.Cache.Enable {
				store, err := transcache.Open(cfg.CacheDBPath(), logger)
				switch {
				case errors.Is(err, transcache.ErrLocked):
					logger.Warn("transcript cache in use by another process, running uncached")
				case err != nil:
					logger.Warn("transcript cache unavailable, running uncached", logging.Error(err))
				default:
					defer store.Close()
					engine = transcache.NewCachingEngine(engine, store, logger)
				}
			}

			var gen pipeline.Generator
			if cfg.NeedsLLM() {
				gen = llm.NewClient(cfg.LLMSettings())
			}

			runner, err := pipeline.New(cfg, pipeline.Dependencies{
				Engine:    engine,
				Audio:     processor,
				Generator: gen,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary := runner.Run(ctx, args)
			fmt.Fprintln(cmd.OutOrStdout(), renderRunSummary(summary))

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if failed := summary.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(summary.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for generated subtitle files")
	return cmd
}

func renderRunSummary(summary pipeline.Summary) string {
	rows := make([][]string, 0, len(summary.Results))
	for _, res := range summary.Results {
		status := "ok"
		detail := res.Output
		if res.Err != nil {
			status = "failed"
			detail = res.Err.Error()
		}
		rows = append(rows, []string{
			filepath.Base(res.Source),
			strconv.Itoa(res.Cues),
			res.Elapsed.Round(time.Millisecond).String(),
			status,
			detail,
		})
	}
	return renderTable(
		[]string{"File", "Cues", "Time", "Status", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}
