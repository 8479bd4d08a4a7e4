package textutil

import (
	"math"
	"testing"
)

func TestSimilarityIdentical(t *testing.T) {
	tests := []string{
		"こんにちは",
		"今日はいい天気ですね",
		"ご視聴ありがとうございました",
		"a",
	}
	for _, text := range tests {
		if got := Similarity(text, text); got != 1.0 {
			t.Errorf("Similarity(%q, %q) = %v, want 1.0", text, text, got)
		}
	}
}

func TestSimilarityEmpty(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"both empty", "", ""},
		{"a empty", "", "こんにちは"},
		{"b empty", "こんにちは", ""},
		{"punctuation only", "、。！？", "こんにちは"},
		{"whitespace only", "   ", "こんにちは"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != 0 {
				t.Errorf("Similarity(%q, %q) = %v, want 0", tt.a, tt.b, got)
			}
		})
	}
}

func TestSimilarityIgnoresPunctuationAndSpace(t *testing.T) {
	a := "今日は、いい天気ですね。"
	b := "今日は いい天気ですね"
	if got := Similarity(a, b); got != 1.0 {
		t.Errorf("Similarity = %v, want 1.0 after normalization", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a := "明日の会議は何時からですか"
	b := "明日の会議は三時からです"
	ab := Similarity(a, b)
	ba := Similarity(b, a)
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("not symmetric: %v vs %v", ab, ba)
	}
}

func TestSimilarityPartial(t *testing.T) {
	got := Similarity("今日はいい天気です", "昨日はいい天気でした")
	if got <= 0.5 || got >= 1.0 {
		t.Errorf("Similarity = %v, want between 0.5 and 1.0", got)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	got := Similarity("あいうえお", "かきくけこ")
	if got != 0 {
		t.Errorf("Similarity = %v, want 0 for disjoint texts", got)
	}
}

func TestSimilarityRatio(t *testing.T) {
	// "abcd" vs "bcde": longest common block "bcd" (3 runes),
	// ratio = 2*3 / (4+4) = 0.75.
	got := Similarity("abcd", "bcde")
	if math.Abs(got-0.75) > 1e-12 {
		t.Errorf("Similarity = %v, want 0.75", got)
	}
}

func TestSimilarityRecursiveBlocks(t *testing.T) {
	// "abxcd" vs "abycd": blocks "ab" and "cd" both match,
	// ratio = 2*4 / (5+5) = 0.8.
	got := Similarity("abxcd", "abycd")
	if math.Abs(got-0.8) > 1e-12 {
		t.Errorf("Similarity = %v, want 0.8", got)
	}
}

func TestSimilarityWidthFolding(t *testing.T) {
	if got := Similarity("ＡＢＣ１２３", "ABC123"); got != 1.0 {
		t.Errorf("Similarity = %v, want 1.0 after width folding", got)
	}
}

func TestStripForComparison(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "こんにちは", "こんにちは"},
		{"punctuation", "今日は、いい天気ですね。", "今日はいい天気ですね"},
		{"mixed space", "今日 は\tいい天気", "今日はいい天気"},
		{"ascii marks", "really!? yes!", "reallyyes"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripForComparison(tt.input); got != tt.want {
				t.Errorf("StripForComparison(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripForMatching(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"brackets", "「こんにちは」と言った", "こんにちはと言った"},
		{"ellipsis", "それは…そうですね", "それはそうですね"},
		{"parens", "（笑）はい", "笑はい"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripForMatching(tt.input); got != tt.want {
				t.Errorf("StripForMatching(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "episode01", "episode01"},
		{"slashes", "show/ep:1", "show-ep-1"},
		{"removed characters", `a"b<c>d|e?`, "abcde"},
		{"whitespace", "  padded  ", "padded"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
