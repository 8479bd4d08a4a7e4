package merge

import (
	"testing"

	"jimaku/internal/subtitle"
)

func seg(start, end float64, text string, words ...subtitle.Word) subtitle.Segment {
	return subtitle.Segment{Start: start, End: end, Text: text, Words: words}
}

func TestMergeEmpty(t *testing.T) {
	m := New(DefaultConfig(), nil)
	if got := m.Merge(nil); len(got) != 0 {
		t.Errorf("Merge(nil) = %v, want empty", got)
	}
}

func TestMergeSinglePassthrough(t *testing.T) {
	m := New(DefaultConfig(), nil)
	in := []subtitle.Segment{seg(0, 1, "これはて")}
	got := m.Merge(in)
	if len(got) != 1 || got[0].Text != "これはて" {
		t.Errorf("Merge(single) = %v, want unchanged", got)
	}
}

func TestMergeIncompletePair(t *testing.T) {
	m := New(DefaultConfig(), nil)
	in := []subtitle.Segment{
		seg(0, 1.0, "これはて"),
		seg(1.2, 2.0, "すごい"),
	}
	got := m.Merge(in)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0].Text != "これはてすごい" {
		t.Errorf("text = %q, want これはてすごい", got[0].Text)
	}
	if got[0].Start != 0 || got[0].End != 2.0 {
		t.Errorf("span = [%v,%v], want [0,2]", got[0].Start, got[0].End)
	}
}

func TestMergeGapBoundary(t *testing.T) {
	// The merge requires gap strictly below MaxMergeGap. Widening the gap to
	// the threshold or beyond must prevent it.
	cfg := DefaultConfig()
	cfg.MaxMergeGap = 0.5
	m := New(cfg, nil)

	tests := []struct {
		name      string
		nextStart float64
		wantCount int
	}{
		{"gap below threshold", 1.4, 1},
		{"gap at threshold", 1.5, 2},
		{"gap above threshold", 2.0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := []subtitle.Segment{
				seg(0, 1.0, "これはて"),
				seg(tt.nextStart, tt.nextStart+1, "すごい"),
			}
			got := m.Merge(in)
			if len(got) != tt.wantCount {
				t.Errorf("got %d segments, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestMergeCompleteSegmentsUntouched(t *testing.T) {
	m := New(DefaultConfig(), nil)
	in := []subtitle.Segment{
		seg(0, 1, "こんにちは。"),
		seg(1.1, 2, "元気ですか？"),
	}
	got := m.Merge(in)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
}

func TestMergeSentenceEnderBeatsMarker(t *testing.T) {
	// か is both plausible grammar and a sentence ender; ender wins.
	cfg := DefaultConfig()
	cfg.IncompleteMarkers = append(cfg.IncompleteMarkers, "か")
	m := New(cfg, nil)
	in := []subtitle.Segment{
		seg(0, 1, "行きますか"),
		seg(1.1, 2, "はい"),
	}
	if got := m.Merge(in); len(got) != 2 {
		t.Errorf("got %d segments, want 2", len(got))
	}
}

func TestMergeChainCollapses(t *testing.T) {
	m := New(DefaultConfig(), nil)
	in := []subtitle.Segment{
		seg(0, 1.0, "昨日て"),
		seg(1.1, 2.0, "友達と"),
		seg(2.1, 3.0, "映画を見た"),
	}
	got := m.Merge(in)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0].Text != "昨日て友達と映画を見た" {
		t.Errorf("text = %q", got[0].Text)
	}
}

func TestMergeRespectsLineLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 6
	m := New(cfg, nil)
	in := []subtitle.Segment{
		seg(0, 1.0, "これはて"),
		seg(1.1, 2.0, "すごいこと"),
	}
	if got := m.Merge(in); len(got) != 2 {
		t.Errorf("got %d segments, want 2 when combined length exceeds max", len(got))
	}
}

func TestMergeWordUnion(t *testing.T) {
	m := New(DefaultConfig(), nil)
	in := []subtitle.Segment{
		seg(0, 1.0, "これはて", subtitle.Word{Text: "これはて", Start: 0, End: 1.0}),
		seg(1.1, 2.0, "すごい", subtitle.Word{Text: "すごい", Start: 1.1, End: 2.0}),
	}
	got := m.Merge(in)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if len(got[0].Words) != 2 {
		t.Errorf("got %d words, want 2", len(got[0].Words))
	}
}

func TestMergeMixedWordsDropped(t *testing.T) {
	m := New(DefaultConfig(), nil)
	in := []subtitle.Segment{
		seg(0, 1.0, "これはて", subtitle.Word{Text: "これはて", Start: 0, End: 1.0}),
		seg(1.1, 2.0, "すごい"),
	}
	got := m.Merge(in)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0].HasWords() {
		t.Errorf("merged segment should drop words when any member lacks them")
	}
}

func TestMergeIdempotent(t *testing.T) {
	m := New(DefaultConfig(), nil)
	in := []subtitle.Segment{
		seg(0, 1.0, "これはて"),
		seg(1.1, 2.0, "すごい"),
		seg(2.5, 3.5, "終わりました。"),
		seg(4.0, 5.0, "次の話です。"),
	}
	once := m.Merge(in)
	twice := m.Merge(once)
	if len(once) != len(twice) {
		t.Fatalf("idempotence violated: %d vs %d segments", len(once), len(twice))
	}
	for i := range once {
		if once[i].Text != twice[i].Text || once[i].Start != twice[i].Start || once[i].End != twice[i].End {
			t.Errorf("segment %d changed on second pass: %+v vs %+v", i, once[i], twice[i])
		}
	}
}
