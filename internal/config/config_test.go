package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jimaku/internal/config"
	"jimaku/internal/realign"
)

func loadFromTOML(t *testing.T, body string) (*config.Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, exists, err := config.Load(path)
	if err == nil && !exists {
		t.Fatal("expected config file to be detected")
	}
	return cfg, err
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, resolved, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Error("missing file reported as existing")
	}
	if cfg.Whisper.Model != "large-v3" || cfg.Whisper.Language != "ja" {
		t.Errorf("whisper defaults = %+v", cfg.Whisper)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Errorf("output dir not expanded: %q", cfg.Paths.OutputDir)
	}
	if cfg.Logging.Format != "auto" || cfg.Logging.Level != "info" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if !cfg.Merging.Enable || !cfg.Splitting.Enable || !cfg.Cleanup.Enable {
		t.Error("core stages should default to enabled")
	}
	if cfg.Polishing.Enable {
		t.Error("polishing should default to disabled")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	cfg, err := loadFromTOML(t, `
[whisper]
model = "medium"
device = "cuda"

[segment_merging]
max_line_length = 42

[timing_realignment]
method = "text_search"

[hallucination_filter.consecutive_duplicates]
min_occurrences = 6
`)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Whisper.Model != "medium" || cfg.Whisper.Device != "cuda" {
		t.Errorf("whisper = %+v", cfg.Whisper)
	}
	if cfg.Merging.MaxLineLength != 42 {
		t.Errorf("merging.max_line_length = %d", cfg.Merging.MaxLineLength)
	}
	if cfg.Realignment.Method != realign.MethodTextSearch {
		t.Errorf("realignment.method = %q", cfg.Realignment.Method)
	}
	if cfg.Hallucination.ConsecutiveDuplicates.MinOccurrences != 6 {
		t.Errorf("duplicates.min_occurrences = %d", cfg.Hallucination.ConsecutiveDuplicates.MinOccurrences)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Splitting.MaxLineLength != 30 {
		t.Errorf("splitting defaults lost: %+v", cfg.Splitting)
	}
}

func TestLoadRejectsUnknownRealignMethod(t *testing.T) {
	_, err := loadFromTOML(t, `
[timing_realignment]
enable = true
method = "magic"
`)
	if err == nil || !strings.Contains(err.Error(), "timing_realignment.method") {
		t.Errorf("err = %v, want method validation failure", err)
	}
}

func TestPolishingRequiresLLMModel(t *testing.T) {
	_, err := loadFromTOML(t, `
[text_polishing]
enable = true
`)
	if err == nil || !strings.Contains(err.Error(), "llm.model") {
		t.Errorf("err = %v, want llm.model validation failure", err)
	}

	cfg, err := loadFromTOML(t, `
[llm]
model = "deepseek/deepseek-chat"

[text_polishing]
enable = true
`)
	if err != nil {
		t.Fatalf("Load with model: %v", err)
	}
	if !cfg.NeedsLLM() {
		t.Error("NeedsLLM should be true with polishing enabled")
	}
	settings := cfg.LLMSettings()
	if settings.Model != "deepseek/deepseek-chat" {
		t.Errorf("LLMSettings model = %q", settings.Model)
	}
	if settings.BaseURL == "" || settings.TimeoutSeconds <= 0 {
		t.Errorf("LLMSettings defaults missing: %+v", settings)
	}
}

func TestLLMAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("JIMAKU_LLM_API_KEY", "from-env")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("api key = %q, want env fallback", cfg.LLM.APIKey)
	}
}

func TestAudioLoudnessValidation(t *testing.T) {
	_, err := loadFromTOML(t, `
[audio_processing]
enable = true
target_loudness_lufs = 3.0
`)
	if err == nil || !strings.Contains(err.Error(), "target_loudness_lufs") {
		t.Errorf("err = %v, want loudness validation failure", err)
	}
}

func TestLoggingFormatFallsBackToAuto(t *testing.T) {
	cfg, err := loadFromTOML(t, `
[logging]
format = "xml"
`)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Format != "auto" {
		t.Errorf("format = %q, want auto", cfg.Logging.Format)
	}
}

func TestCacheDBPath(t *testing.T) {
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cfg.CacheDBPath(); filepath.Base(got) != "transcripts.db" {
		t.Errorf("default cache db = %q", got)
	}

	cfg.Cache.Path = filepath.Join(string(filepath.Separator), "tmp", "custom.db")
	if got := cfg.CacheDBPath(); got != cfg.Cache.Path {
		t.Errorf("override cache db = %q", got)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := config.ExpandPath("~/media")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "media") {
		t.Errorf("ExpandPath = %q", got)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample file not detected")
	}
	defaults := config.Default()
	if cfg.Whisper.Model != defaults.Whisper.Model {
		t.Errorf("sample whisper model = %q", cfg.Whisper.Model)
	}
	if cfg.Cleanup.Stammer.WordRepetition.MinRepetitions != defaults.Cleanup.Stammer.WordRepetition.MinRepetitions {
		t.Error("sample cleanup differs from defaults")
	}
	if cfg.Merging.MaxMergeGap != defaults.Merging.MaxMergeGap {
		t.Error("sample merging differs from defaults")
	}
}
