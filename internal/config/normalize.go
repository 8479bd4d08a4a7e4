package config

import (
	"fmt"
	"os"
	"strings"

	"jimaku/internal/asr"
	"jimaku/internal/media"
	"jimaku/internal/realign"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeWhisper()
	c.normalizeRealignment()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Cache.Path) != "" {
		if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
			return fmt.Errorf("transcript_cache.path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("JIMAKU_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.Temperature < 0 {
		c.LLM.Temperature = 0
	}
}

func (c *Config) normalizeWhisper() {
	defaults := asr.DefaultWhisperConfig()
	if strings.TrimSpace(c.Whisper.Binary) == "" {
		c.Whisper.Binary = defaults.Binary
	}
	if strings.TrimSpace(c.Whisper.Model) == "" {
		c.Whisper.Model = defaults.Model
	}
	if strings.TrimSpace(c.Whisper.Language) == "" {
		c.Whisper.Language = defaults.Language
	}
	if strings.TrimSpace(c.Whisper.Device) == "" {
		c.Whisper.Device = defaults.Device
	}
	if c.Whisper.BeamSize <= 0 {
		c.Whisper.BeamSize = defaults.BeamSize
	}
	if c.Whisper.BestOf <= 0 {
		c.Whisper.BestOf = defaults.BestOf
	}
	if c.Whisper.Patience <= 0 {
		c.Whisper.Patience = defaults.Patience
	}
	if c.Audio.TargetLoudnessLUFS == 0 {
		c.Audio.TargetLoudnessLUFS = media.DefaultConfig().TargetLoudnessLUFS
	}
}

func (c *Config) normalizeRealignment() {
	c.Realignment.Method = strings.ToLower(strings.TrimSpace(c.Realignment.Method))
	if c.Realignment.Method == "" {
		c.Realignment.Method = realign.MethodTimeBased
	}
	if c.Realignment.BatchSize <= 0 {
		c.Realignment.BatchSize = realign.DefaultConfig().BatchSize
	}
	if c.Realignment.MinGap <= 0 {
		c.Realignment.MinGap = realign.DefaultConfig().MinGap
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "auto":
		c.Logging.Format = "auto"
	case "console", "json":
	default:
		c.Logging.Format = "auto"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
