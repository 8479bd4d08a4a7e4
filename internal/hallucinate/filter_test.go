package hallucinate

import (
	"context"
	"strings"
	"testing"

	"jimaku/internal/asr"
	"jimaku/internal/subtitle"
)

func seg(start, end float64, text string) subtitle.Segment {
	return subtitle.Segment{Start: start, End: end, Text: text}
}

// fakeEngine returns canned transcriptions keyed by request start time.
type fakeEngine struct {
	results map[float64]asr.Result
	err     error
	calls   []asr.Request
}

func (f *fakeEngine) Transcribe(_ context.Context, req asr.Request) (asr.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return asr.Result{}, f.err
	}
	return f.results[req.Start], nil
}

func newFilter(t *testing.T, cfg Config, engine asr.Engine) *Filter {
	t.Helper()
	f, err := New(cfg, engine, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestPhraseFilterDropsKnownPhrase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimingValidation.Enable = false
	f := newFilter(t, cfg, nil)

	in := []subtitle.Segment{
		seg(0, 2, "こんにちは"),
		seg(2, 4, "ご視聴ありがとうございました"),
		seg(4, 6, "さようなら"),
	}
	got := f.Run(context.Background(), "", in)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	for _, s := range got {
		if strings.Contains(s.Text, "ご視聴") {
			t.Errorf("hallucination phrase survived: %q", s.Text)
		}
	}
}

func TestPhraseFilterNormalizesBeforeMatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimingValidation.Enable = false
	f := newFilter(t, cfg, nil)

	in := []subtitle.Segment{seg(0, 2, "ご視聴、ありがとう ございました。")}
	got := f.Run(context.Background(), "", in)
	if len(got) != 0 {
		t.Errorf("punctuation variant survived: %v", got)
	}
}

func TestPhraseFilterRegexPatterns(t *testing.T) {
	cfg := Config{
		PhraseFilter: PhraseConfig{
			Enable:   true,
			Patterns: []string{"^字幕.*です$"},
		},
	}
	f := newFilter(t, cfg, nil)

	in := []subtitle.Segment{
		seg(0, 2, "字幕提供です"),
		seg(2, 4, "本編の台詞"),
	}
	got := f.Run(context.Background(), "", in)
	if len(got) != 1 || got[0].Text != "本編の台詞" {
		t.Errorf("got %v, want only the dialogue segment", got)
	}
}

func TestPhraseFilterInvalidPatternRejected(t *testing.T) {
	cfg := Config{PhraseFilter: PhraseConfig{Enable: true, Patterns: []string{"("}}}
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestPhraseRevalidationConfirmsHallucination(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimingValidation.Enable = false
	cfg.PhraseFilter.EnableRevalidate = true

	engine := &fakeEngine{results: map[float64]asr.Result{
		// Strict retry reproduces the same phrase: confirmed hallucination.
		2: {Text: "ご視聴ありがとうございました"},
	}}
	f := newFilter(t, cfg, engine)

	in := []subtitle.Segment{seg(2, 4, "ご視聴ありがとうございました")}
	got := f.Run(context.Background(), "video.mkv", in)
	if len(got) != 0 {
		t.Errorf("confirmed hallucination survived: %v", got)
	}
	if len(engine.calls) != 1 || !engine.calls[0].Strict {
		t.Errorf("expected one strict revalidation call, got %+v", engine.calls)
	}
}

func TestPhraseRevalidationKeepsFalsePositive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimingValidation.Enable = false
	cfg.PhraseFilter.EnableRevalidate = true

	engine := &fakeEngine{results: map[float64]asr.Result{
		2: {Text: "全然違う本物の台詞ですよ"},
	}}
	f := newFilter(t, cfg, engine)

	in := []subtitle.Segment{seg(2, 4, "ご視聴ありがとうございました")}
	got := f.Run(context.Background(), "video.mkv", in)
	if len(got) != 1 {
		t.Fatalf("false positive dropped, got %d segments", len(got))
	}
	if got[0].Text != "全然違う本物の台詞ですよ" {
		t.Errorf("text = %q, want re-transcribed text", got[0].Text)
	}
	if got[0].Start != 2 || got[0].End != 4 {
		t.Errorf("span changed to [%v,%v]", got[0].Start, got[0].End)
	}
}

func TestCollapseDuplicatesMergesRuns(t *testing.T) {
	cfg := Config{ConsecutiveDuplicates: DuplicateConfig{Enable: true, MinOccurrences: 4}}
	f := newFilter(t, cfg, nil)

	in := []subtitle.Segment{
		seg(0, 1, "僕"),
		seg(1, 2, "僕"),
		seg(2, 3, "僕"),
		seg(3, 4, "こんにちは"),
		seg(4, 5, "僕"),
	}
	got := f.Run(context.Background(), "", in)
	if len(got) != 3 {
		t.Fatalf("got %d segments, want 3", len(got))
	}
	if got[0].Text != "僕" || got[0].Start != 0 || got[0].End != 3 {
		t.Errorf("run not collapsed: %+v", got[0])
	}
	if got[1].Text != "こんにちは" {
		t.Errorf("middle segment = %+v", got[1])
	}
	if got[2].Text != "僕" || got[2].Start != 4 {
		t.Errorf("isolated duplicate must survive: %+v", got[2])
	}
}

func TestCollapseDuplicatesBelowReportThresholdStillMerges(t *testing.T) {
	cfg := Config{ConsecutiveDuplicates: DuplicateConfig{Enable: true, MinOccurrences: 10}}
	f := newFilter(t, cfg, nil)

	in := []subtitle.Segment{
		seg(0, 1, "はい"),
		seg(1, 2, "はい"),
	}
	got := f.Run(context.Background(), "", in)
	if len(got) != 1 || got[0].End != 2 {
		t.Errorf("run of 2 should merge regardless of threshold: %v", got)
	}
}

func TestMergeSingleRuneRuns(t *testing.T) {
	f := newFilter(t, Config{}, nil)

	in := []subtitle.Segment{
		seg(0, 0.5, "あ"),
		seg(0.5, 1.0, "あ"),
		seg(1.0, 1.5, "あ"),
		seg(1.5, 3.0, "おはよう"),
	}
	got := f.Run(context.Background(), "", in)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if got[0].Text != "あ、あ、あ" {
		t.Errorf("merged text = %q, want あ、あ、あ", got[0].Text)
	}
	if got[0].Start != 0 || got[0].End != 1.5 {
		t.Errorf("merged span = [%v,%v]", got[0].Start, got[0].End)
	}
}

func TestMergeSingleRuneRunsDifferentCharsKept(t *testing.T) {
	f := newFilter(t, Config{}, nil)

	in := []subtitle.Segment{
		seg(0, 0.5, "あ"),
		seg(0.5, 1.0, "う"),
	}
	got := f.Run(context.Background(), "", in)
	if len(got) != 2 {
		t.Errorf("different single characters should not merge: %v", got)
	}
}

func TestTimingValidationDropsWithoutRevalidation(t *testing.T) {
	cfg := Config{TimingValidation: TimingConfig{Enable: true, MaxCharsPerSecond: 20}}
	f := newFilter(t, cfg, nil)

	in := []subtitle.Segment{
		// 30 chars in 1s: far beyond plausible reading speed.
		seg(0, 1, strings.Repeat("あ", 30)),
		seg(1, 3, "普通の台詞"),
		// 8 chars in 10s: under 1 char/sec.
		seg(3, 13, "ゆっくりすぎる話"),
	}
	got := f.Run(context.Background(), "", in)
	if len(got) != 1 || got[0].Text != "普通の台詞" {
		t.Errorf("got %v, want only the plausible segment", got)
	}
}

func TestTimingRevalidationReplacesText(t *testing.T) {
	cfg := Config{TimingValidation: TimingConfig{Enable: true, MaxCharsPerSecond: 20, EnableRevalidate: true}}
	engine := &fakeEngine{results: map[float64]asr.Result{
		0: {
			Text: "実際の台詞",
			Segments: []subtitle.Segment{{
				Start: 0.1, End: 0.9, Text: "実際の台詞",
				Words: []subtitle.Word{{Text: "実際の台詞", Start: 0.1, End: 0.9}},
			}},
		},
	}}
	f := newFilter(t, cfg, engine)

	in := []subtitle.Segment{seg(0, 1, strings.Repeat("あ", 30))}
	got := f.Run(context.Background(), "video.mkv", in)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0].Text != "実際の台詞" {
		t.Errorf("text = %q, want re-transcribed text", got[0].Text)
	}
	if got[0].Start != 0 || got[0].End != 1 {
		t.Errorf("span must be preserved, got [%v,%v]", got[0].Start, got[0].End)
	}
	if len(got[0].Words) != 1 || got[0].Words[0].Start != 0.1 {
		t.Errorf("words = %+v, want clip-relative words offset to absolute time", got[0].Words)
	}
}

func TestTimingRevalidationNoSpeechDrops(t *testing.T) {
	cfg := Config{TimingValidation: TimingConfig{Enable: true, MaxCharsPerSecond: 20, EnableRevalidate: true}}
	engine := &fakeEngine{results: map[float64]asr.Result{}}
	f := newFilter(t, cfg, engine)

	in := []subtitle.Segment{seg(0, 1, strings.Repeat("あ", 30))}
	got := f.Run(context.Background(), "video.mkv", in)
	if len(got) != 0 {
		t.Errorf("no-speech segment survived: %v", got)
	}
}

func TestRefilterAfterRevalidation(t *testing.T) {
	// A revalidated segment whose new text is a hallucination phrase must be
	// caught by the phrase filter's second pass.
	cfg := Config{
		PhraseFilter:     PhraseConfig{Enable: true, Phrases: []string{"ご視聴ありがとうございました"}},
		TimingValidation: TimingConfig{Enable: true, MaxCharsPerSecond: 20, EnableRevalidate: true},
	}
	engine := &fakeEngine{results: map[float64]asr.Result{
		0: {Text: "ご視聴ありがとうございました"},
	}}
	f := newFilter(t, cfg, engine)

	in := []subtitle.Segment{seg(0, 1, strings.Repeat("あ", 30))}
	got := f.Run(context.Background(), "video.mkv", in)
	if len(got) != 0 {
		t.Errorf("substituted hallucination phrase survived: %v", got)
	}
}

func TestZeroDurationSegmentDropped(t *testing.T) {
	cfg := Config{TimingValidation: TimingConfig{Enable: true, MaxCharsPerSecond: 20}}
	f := newFilter(t, cfg, nil)

	in := []subtitle.Segment{seg(1, 1, "テキスト")}
	got := f.Run(context.Background(), "", in)
	if len(got) != 0 {
		t.Errorf("zero-duration segment survived: %v", got)
	}
}
