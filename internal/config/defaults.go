package config

import (
	"jimaku/internal/asr"
	"jimaku/internal/cleanup"
	"jimaku/internal/hallucinate"
	"jimaku/internal/media"
	"jimaku/internal/merge"
	"jimaku/internal/polish"
	"jimaku/internal/realign"
	"jimaku/internal/split"
	"jimaku/internal/transcache"
)

const (
	defaultOutputDir        = "transcripts"
	defaultWorkDir          = "~/.local/share/jimaku/work"
	defaultLogDir           = "~/.local/share/jimaku/logs"
	defaultLogFormat        = "auto"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultLLMBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMTimeout       = 60
	defaultLLMMaxTokens     = 1024
	defaultLLMTemperature   = 0.3
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			CacheDir:  defaultCacheDir(),
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			TimeoutSeconds: defaultLLMTimeout,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
		},
		Audio:         media.DefaultConfig(),
		Whisper:       asr.DefaultWhisperConfig(),
		Cache:         transcache.DefaultConfig(),
		Merging:       merge.DefaultConfig(),
		Splitting:     split.DefaultConfig(),
		Hallucination: hallucinate.DefaultConfig(),
		Realignment:   realign.DefaultConfig(),
		Polishing:     polish.DefaultConfig(),
		Cleanup:       cleanup.DefaultConfig(),
	}
}
