package transcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"jimaku/internal/asr"
	"jimaku/internal/logging"
)

// Config controls transcript caching.
type Config struct {
	Enable bool `toml:"enable"`
	// Path is the cache database file. Empty selects a default under the
	// work directory.
	Path string `toml:"path"`
}

// DefaultConfig returns caching defaults.
func DefaultConfig() Config {
	return Config{Enable: true}
}

// CachingEngine wraps an asr.Engine with a transcript cache. Cache keys
// cover the media file identity (path, size, mtime) and the request window,
// so edited or replaced media never serves stale transcripts.
type CachingEngine struct {
	inner  asr.Engine
	store  *Store
	logger *slog.Logger
}

// NewCachingEngine wraps inner with the given store.
func NewCachingEngine(inner asr.Engine, store *Store, logger *slog.Logger) *CachingEngine {
	return &CachingEngine{
		inner:  inner,
		store:  store,
		logger: logging.NewComponentLogger(logger, "transcache"),
	}
}

// Transcribe implements asr.Engine. Requests that cannot be keyed (the media
// file is unreadable) pass straight through to the inner engine.
func (e *CachingEngine) Transcribe(ctx context.Context, req asr.Request) (asr.Result, error) {
	if e.store == nil {
		return e.inner.Transcribe(ctx, req)
	}

	key, err := RequestKey(req)
	if err != nil {
		e.logger.Debug("cache key unavailable, bypassing cache",
			logging.String("path", req.Path),
			logging.Error(err))
		return e.inner.Transcribe(ctx, req)
	}

	if cached, ok, err := e.store.Get(ctx, key); err != nil {
		e.logger.Warn("cache lookup failed", logging.Error(err))
	} else if ok {
		var result asr.Result
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			e.logger.Debug("transcript cache hit",
				logging.String("path", req.Path),
				logging.Float64("start", req.Start),
				logging.Float64("duration", req.Duration))
			return result, nil
		}
		e.logger.Warn("cached transcript unreadable, re-transcribing",
			logging.String("key", key),
			logging.Error(err))
	}

	result, err := e.inner.Transcribe(ctx, req)
	if err != nil {
		return asr.Result{}, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		e.logger.Warn("transcript not cacheable", logging.Error(err))
		return result, nil
	}
	if err := e.store.Put(ctx, key, req.Path, req.Start, req.Duration, req.Strict, req.WordTimestamps, string(encoded)); err != nil {
		e.logger.Warn("transcript cache write failed", logging.Error(err))
	}
	return result, nil
}

// RequestKey derives the cache key for a transcription request. The key
// hashes the media path, size and modification time together with the clip
// window and decoding mode.
func RequestKey(req asr.Request) (string, error) {
	info, err := os.Stat(req.Path)
	if err != nil {
		return "", fmt.Errorf("transcache: stat media: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%.3f|%.3f|%t|%t",
		req.Path,
		info.Size(),
		info.ModTime().UnixNano(),
		req.Start,
		req.Duration,
		req.Strict,
		req.WordTimestamps,
	)
	return hex.EncodeToString(h.Sum(nil)), nil
}
