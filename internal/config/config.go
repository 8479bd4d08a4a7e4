package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"jimaku/internal/asr"
	"jimaku/internal/cleanup"
	"jimaku/internal/hallucinate"
	"jimaku/internal/media"
	"jimaku/internal/merge"
	"jimaku/internal/polish"
	"jimaku/internal/realign"
	"jimaku/internal/services/llm"
	"jimaku/internal/split"
	"jimaku/internal/transcache"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// OutputDir receives the generated VTT files.
	OutputDir string `toml:"output_dir"`
	// WorkDir holds normalized audio and transcription scratch space.
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
	// CacheDir holds the transcript cache database.
	CacheDir string `toml:"cache_dir"`
}

// LLM contains shared LLM connection settings used by splitting and
// polishing.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the transcription
// pipeline.
//
// Configuration sections by subsystem:
//   - Paths: output, scratch, log, and cache directories
//   - Logging: log format, level, and retention
//   - LLM: shared connection settings for features that need AI
//   - Audio: loudness normalization before transcription
//   - Whisper: transcription model and decoding thresholds
//   - Cache: transcript cache for repeated runs
//   - Merging through Cleanup: the per-stage pipeline settings
type Config struct {
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
	LLM     LLM     `toml:"llm"`

	Audio         media.Config       `toml:"audio_processing"`
	Whisper       asr.WhisperConfig  `toml:"whisper"`
	Cache         transcache.Config  `toml:"transcript_cache"`
	Merging       merge.Config       `toml:"segment_merging"`
	Splitting     split.Config       `toml:"segment_splitting"`
	Hallucination hallucinate.Config `toml:"hallucination_filter"`
	Realignment   realign.Config     `toml:"timing_realignment"`
	Polishing     polish.Config      `toml:"text_polishing"`
	Cleanup       cleanup.Config     `toml:"final_cleanup"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jimaku/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jimaku.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir, c.Paths.CacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheDBPath returns the transcript cache database location.
func (c *Config) CacheDBPath() string {
	if strings.TrimSpace(c.Cache.Path) != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.Paths.CacheDir, "transcripts.db")
}

// LLMSettings returns the shared LLM connection settings in the client's
// config shape.
func (c *Config) LLMSettings() llm.Config {
	return llm.Config{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// NeedsLLM reports whether any enabled stage requires the LLM client.
func (c *Config) NeedsLLM() bool {
	return (c.Splitting.Enable && c.Splitting.EnableLLM) || c.Polishing.Enable
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "jimaku")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/jimaku"
	}
	return filepath.Join(home, ".cache", "jimaku")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
