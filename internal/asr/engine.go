// Package asr defines the speech-recognition boundary. The pipeline consumes
// the Engine interface for the initial transcription and for windowed
// re-verification; the concrete engine shells out to a whisper CLI.
package asr

import (
	"context"
	"errors"

	"jimaku/internal/subtitle"
)

// ErrClipTooShort is returned when a requested clip is below the minimum
// usable duration. Callers keep their original segment.
var ErrClipTooShort = errors.New("asr: clip too short to transcribe")

// MinClipSeconds is the shortest clip the engine will transcribe.
const MinClipSeconds = 0.1

// Request describes one transcription. Start/Duration select a clip within
// the media file; a zero Duration transcribes from Start to the end.
type Request struct {
	Path           string
	Start          float64
	Duration       float64
	WordTimestamps bool
	// Strict selects deterministic re-verification parameters: zero
	// temperature, tighter confidence thresholds, no conditioning on prior
	// text and no initial prompt.
	Strict bool
}

// Result is a transcription. Segment and word times are relative to the
// clip's start; callers working in absolute time add Request.Start.
type Result struct {
	Segments []subtitle.Segment
	Text     string
}

// Engine produces transcriptions. Implemented by the whisper CLI adapter and
// by the caching wrapper; tests supply fakes.
type Engine interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}
