package config

import (
	"errors"
	"fmt"
	"strings"

	"jimaku/internal/realign"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateWhisper(); err != nil {
		return err
	}
	if err := c.validateRealignment(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if !c.Audio.Enable {
		return nil
	}
	// The ffmpeg loudnorm filter accepts integrated targets in [-70, -5].
	if c.Audio.TargetLoudnessLUFS < -70 || c.Audio.TargetLoudnessLUFS > -5 {
		return errors.New("audio_processing.target_loudness_lufs must be between -70 and -5")
	}
	return nil
}

func (c *Config) validateWhisper() error {
	if c.Whisper.BeamSize <= 0 {
		return errors.New("whisper.beam_size must be positive")
	}
	if c.Whisper.BestOf <= 0 {
		return errors.New("whisper.best_of must be positive")
	}
	if c.Whisper.NoSpeechThreshold < 0 || c.Whisper.NoSpeechThreshold > 1 {
		return errors.New("whisper.no_speech_threshold must be between 0 and 1")
	}
	if c.Whisper.CompressionRatioThreshold <= 0 {
		return errors.New("whisper.compression_ratio_threshold must be positive")
	}
	return nil
}

func (c *Config) validateRealignment() error {
	if !c.Realignment.Enable {
		return nil
	}
	switch c.Realignment.Method {
	case realign.MethodTimeBased, realign.MethodTextSearch:
	default:
		return fmt.Errorf("timing_realignment.method must be %q or %q", realign.MethodTimeBased, realign.MethodTextSearch)
	}
	if c.Realignment.TimeBased.Similarity < 0 || c.Realignment.TimeBased.Similarity > 1 {
		return errors.New("timing_realignment.time_based.similarity must be between 0 and 1")
	}
	if c.Realignment.TextSearch.Similarity < 0 || c.Realignment.TextSearch.Similarity > 1 {
		return errors.New("timing_realignment.text_search.similarity must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.NeedsLLM() {
		return nil
	}
	if c.LLM.Model == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/jimaku/config.toml"
		}
		return fmt.Errorf("llm.model is required when LLM splitting or polishing is enabled. Edit %s (create with 'jimaku config init')", defaultPath)
	}
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url must be set when LLM splitting or polishing is enabled")
	}
	return nil
}
