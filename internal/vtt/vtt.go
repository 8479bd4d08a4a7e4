// Package vtt renders subtitle segments as WebVTT.
package vtt

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"jimaku/internal/subtitle"
)

// Write renders segments as numbered WebVTT cues. Empty cues are dropped.
// Cues without word timestamps snap their start to the previous cue's end so
// the output plays back gap-free; word-timed cues keep their measured start.
// Returns the number of cues written.
func Write(w io.Writer, segments []subtitle.Segment) (int, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("WEBVTT\n\n"); err != nil {
		return 0, err
	}

	cueNum := 1
	gapStart := -1.0
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		start := seg.Start
		if gapStart >= 0 && len(seg.Words) == 0 {
			start = gapStart
		}

		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			cueNum, formatTimestamp(start), formatTimestamp(seg.End), text); err != nil {
			return 0, err
		}
		cueNum++
		gapStart = seg.End
	}

	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return cueNum - 1, nil
}

// WriteFile writes segments to a WebVTT file at path, creating parent
// directories as needed. Returns the number of cues written.
func WriteFile(path string, segments []subtitle.Segment) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("vtt: ensure output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("vtt: create output: %w", err)
	}
	count, err := Write(f, segments)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("vtt: write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("vtt: close output: %w", err)
	}
	return count, nil
}

// formatTimestamp renders seconds as HH:MM:SS.mmm.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	millis := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d",
		totalSeconds/3600,
		(totalSeconds%3600)/60,
		totalSeconds%60,
		millis,
	)
}
