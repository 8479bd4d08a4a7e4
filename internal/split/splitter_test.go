package split

import (
	"context"
	"strings"
	"testing"

	"jimaku/internal/subtitle"
)

// makeWords builds evenly spaced words of one rune each.
func makeWords(text string, start, end float64) []subtitle.Word {
	runes := []rune(text)
	step := (end - start) / float64(len(runes))
	words := make([]subtitle.Word, len(runes))
	for i, r := range runes {
		words[i] = subtitle.Word{
			Text:  string(r),
			Start: start + float64(i)*step,
			End:   start + float64(i+1)*step,
		}
	}
	return words
}

func TestSplitShortPassthrough(t *testing.T) {
	s := New(DefaultConfig(), nil)
	in := []subtitle.Segment{{Start: 0, End: 2, Text: "こんにちは"}}
	got := s.Split(context.Background(), in)
	if len(got) != 1 || got[0].Text != "こんにちは" {
		t.Errorf("Split = %v, want unchanged", got)
	}
}

func TestSplitCutsAfterPrimaryBreak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 5
	s := New(cfg, nil)

	text := "おはよう。今日は晴れですね"
	seg := subtitle.Segment{Start: 0, End: 6, Text: text, Words: makeWords(text, 0, 6)}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(got))
	}
	if !strings.HasSuffix(got[0].Text, "。") {
		t.Errorf("first chunk %q should end at the sentence ender", got[0].Text)
	}
}

func TestSplitSecondaryBreakAtThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 4
	s := New(cfg, nil)

	text := "あいうえ、かきくけこさしす"
	seg := subtitle.Segment{Start: 0, End: 10, Text: text, Words: makeWords(text, 0, 10)}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(got))
	}
	if got[0].Text != "あいうえ、" {
		t.Errorf("first chunk = %q, want あいうえ、", got[0].Text)
	}
}

func TestSplitLookaheadPrefersPrimary(t *testing.T) {
	// A sentence ender a few words past the threshold beats cutting at an
	// earlier secondary break.
	cfg := DefaultConfig()
	cfg.MaxLineLength = 4
	s := New(cfg, nil)

	text := "あいう、えお。かきくけこ"
	seg := subtitle.Segment{Start: 0, End: 10, Text: text, Words: makeWords(text, 0, 10)}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	if got[0].Text != "あいう、えお。" {
		t.Errorf("first chunk = %q, want あいう、えお。", got[0].Text)
	}
}

func TestSplitWordSpanContainment(t *testing.T) {
	// No chunk's span may fall outside the parent segment.
	cfg := DefaultConfig()
	cfg.MaxLineLength = 5
	s := New(cfg, nil)

	text := "今日は。晴れです。明日は、雨かもしれません。"
	seg := subtitle.Segment{Start: 3, End: 12, Text: text, Words: makeWords(text, 3, 12)}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	for i, c := range got {
		if c.Start < seg.Start-1e-9 || c.End > seg.End+1e-9 {
			t.Errorf("chunk %d span [%v,%v] outside parent [%v,%v]", i, c.Start, c.End, seg.Start, seg.End)
		}
	}
}

func TestSplitProportionalFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 5
	s := New(cfg, nil)

	seg := subtitle.Segment{Start: 0, End: 10, Text: "あいうえおかきくけこさしすせそ"}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(got))
	}

	var joined strings.Builder
	for i, c := range got {
		joined.WriteString(c.Text)
		if c.Start < seg.Start-1e-9 || c.End > seg.End+1e-9 {
			t.Errorf("chunk %d span [%v,%v] outside parent", i, c.Start, c.End)
		}
		if i > 0 && c.Start < got[i-1].End-1e-9 {
			t.Errorf("chunk %d overlaps predecessor", i)
		}
	}
	if joined.String() != seg.Text {
		t.Errorf("joined chunks = %q, want original text", joined.String())
	}
}

func TestValidatePiecesLengthRatioTotal(t *testing.T) {
	// Length-ratio rejection applies regardless of similarity: a perfect
	// prefix copy that is far too short must still be rejected.
	unit := "あいうえおかきくけこ"
	original := strings.Repeat(unit, 4)
	tooShort := []string{unit}
	if reason := validatePieces(original, tooShort); reason == "" {
		t.Error("short output accepted, want rejection")
	}

	tooLong := []string{original + original}
	if reason := validatePieces(original, tooLong); reason == "" {
		t.Error("long output accepted, want rejection")
	}

	exact := []string{original[:len(unit)*2], original[len(unit)*2:]}
	if reason := validatePieces(original, exact); reason != "" {
		t.Errorf("faithful split rejected: %s", reason)
	}
}

func TestValidatePiecesSimilarity(t *testing.T) {
	original := "昨日友達と映画を見に行きました"
	unrelated := []string{"全然違うテキストがここにあります"}
	if reason := validatePieces(original, unrelated); reason == "" {
		t.Error("dissimilar output accepted, want rejection")
	}
}

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func TestSplitWithLLMAccepted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 6
	cfg.EnableLLM = true

	text := "あいうえおかきくけこさしすせそ"
	gen := &fakeGenerator{response: `{"segments": ["あいうえおかき", "くけこさしすせそ"]}`}
	s := New(cfg, nil, WithGenerator(gen, 1024, 0))

	seg := subtitle.Segment{Start: 0, End: 15, Text: text, Words: makeWords(text, 0, 15)}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	if len(got) != 2 {
		t.Fatalf("got %d pieces, want 2", len(got))
	}
	if got[0].Text != "あいうえおかき" || got[1].Text != "くけこさしすせそ" {
		t.Errorf("pieces = %q, %q", got[0].Text, got[1].Text)
	}
	if !got[0].HasWords() || !got[1].HasWords() {
		t.Error("pieces should carry matched words")
	}
	if got[1].Start < got[0].End-1e-9 {
		t.Error("pieces overlap")
	}
	if len(gen.prompts) != 1 {
		t.Errorf("generator called %d times, want 1", len(gen.prompts))
	}
}

func TestSplitWithLLMRejectedKeepsOriginal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 6
	cfg.EnableLLM = true

	text := "あいうえおかきくけこさしすせそ"
	gen := &fakeGenerator{response: `{"segments": ["まったく", "関係ない文章"]}`}
	s := New(cfg, nil, WithGenerator(gen, 1024, 0))

	seg := subtitle.Segment{Start: 0, End: 15, Text: text, Words: makeWords(text, 0, 15)}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	if len(got) != 1 || got[0].Text != text {
		t.Errorf("rejected split should keep original, got %v", got)
	}
}

func TestSplitWithLLMSkipsImplausibleTiming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 6
	cfg.EnableLLM = true

	text := "あいうえおかきくけこさしすせそ"
	gen := &fakeGenerator{response: `{"segments": ["あいうえおかき", "くけこさしすせそ"]}`}
	s := New(cfg, nil, WithGenerator(gen, 1024, 0))

	// 15 chars in 0.5s is 30 chars/sec, over the default ceiling of 20.
	seg := subtitle.Segment{Start: 0, End: 0.5, Text: text, Words: makeWords(text, 0, 0.5)}
	got := s.Split(context.Background(), []subtitle.Segment{seg})
	if len(got) != 1 {
		t.Fatalf("got %d pieces, want 1", len(got))
	}
	if len(gen.prompts) != 0 {
		t.Error("generator should not be called when timing is implausible")
	}
}

func TestCloseGapsAndBorrow(t *testing.T) {
	pieces := []subtitle.Segment{
		{Start: 0, End: 2, Text: "最初の部分"},
		{Start: 2.5, End: 2.6, Text: "中間"},
		{Start: 2.6, End: 6, Text: "最後の部分です"},
	}
	closeGapsAndBorrow(pieces, 1.0/20)

	if pieces[1].Start != 2 {
		t.Errorf("gap not closed: start = %v, want 2", pieces[1].Start)
	}
	if d := pieces[1].End - pieces[1].Start; d < minPieceDuration-1e-9 {
		t.Errorf("short piece duration %v, want >= %v", d, minPieceDuration)
	}
	if pieces[2].Start != pieces[1].End {
		t.Errorf("successor start %v should meet extended end %v", pieces[2].Start, pieces[1].End)
	}
}

func TestBorrowFromSuccessor(t *testing.T) {
	pieces := []subtitle.Segment{
		{Start: 0, End: 2, Text: "最初の部分"},
		{Start: 2, End: 2.1, Text: "中間"},
		{Start: 2.1, End: 6, Text: "最後の部分です"},
	}
	closeGapsAndBorrow(pieces, 1.0/20)

	if d := pieces[1].End - pieces[1].Start; d < minPieceDuration-1e-9 {
		t.Errorf("short piece duration %v after borrowing, want >= %v", d, minPieceDuration)
	}
	if pieces[2].Start != pieces[1].End {
		t.Errorf("successor start %v should meet extended end %v", pieces[2].Start, pieces[1].End)
	}
	if d := pieces[2].End - pieces[2].Start; d < minPieceDuration-1e-9 {
		t.Errorf("successor starved to %v, want >= %v", d, minPieceDuration)
	}
}
