package split

import (
	"context"
	"fmt"
	"strings"

	"jimaku/internal/logging"
	"jimaku/internal/services/llm"
	"jimaku/internal/subtitle"
	"jimaku/internal/textutil"
)

const (
	// Acceptance thresholds for an LLM-produced split. Below either one the
	// original segment is kept unsplit.
	splitSimilarityFloor = 0.85
	splitMinLengthRatio  = 0.8
	splitMaxLengthRatio  = 1.3

	// wordMatchFloor is the minimum subsequence score to accept a mapping of
	// a split piece onto the word stream.
	wordMatchFloor = 0.70

	// minPieceDuration is the shortest cue a split may produce before it
	// tries to borrow time from its successor.
	minPieceDuration = 0.5
)

// splitWithLLM asks the model for a semantic split of a still-long chunk and
// maps the result back onto word timestamps. Any validation failure keeps
// the original segment.
func (s *Splitter) splitWithLLM(ctx context.Context, seg subtitle.Segment) []subtitle.Segment {
	text := strings.TrimSpace(seg.Text)
	textLen := len([]rune(text))
	if textLen <= s.cfg.MaxLineLength {
		return []subtitle.Segment{seg}
	}
	if !seg.HasWords() {
		// Mapping pieces back to time needs word-level anchors.
		return []subtitle.Segment{seg}
	}

	duration := seg.Duration()
	minDurPerChar := 1.0 / s.maxCharsPerSecond
	if duration < float64(textLen)*minDurPerChar {
		s.logger.Debug("skipping llm split, duration implausible for text length",
			logging.Float64("start", seg.Start),
			logging.Float64("duration", duration),
			logging.Int("chars", textLen))
		return []subtitle.Segment{seg}
	}

	pieces, err := s.requestSplit(ctx, text, textLen)
	if err != nil {
		s.logger.Warn("llm split failed, keeping segment",
			logging.Float64("start", seg.Start),
			logging.Error(err))
		return []subtitle.Segment{seg}
	}
	if len(pieces) <= 1 {
		return []subtitle.Segment{seg}
	}

	if reason := validatePieces(text, pieces); reason != "" {
		s.logger.Info("llm split rejected",
			logging.Float64("start", seg.Start),
			logging.String("reason", reason))
		return []subtitle.Segment{seg}
	}

	mapped, ok := s.mapPiecesToWords(seg, pieces)
	if !ok {
		s.logger.Info("llm split rejected, too many pieces lost word timing",
			logging.Float64("start", seg.Start))
		return []subtitle.Segment{seg}
	}

	closeGapsAndBorrow(mapped, minDurPerChar)
	s.logger.Debug("llm split accepted",
		logging.Float64("start", seg.Start),
		logging.Int("pieces", len(mapped)))
	return mapped
}

func (s *Splitter) requestSplit(ctx context.Context, text string, textLen int) ([]string, error) {
	prompt := fmt.Sprintf(`日本語の字幕テキストを自然な区切りで分割してください。

テキスト: %s
文字数: %d文字
推奨長さ: %d文字

以下のルールに従って分割してください:
1. 各セグメントを%d文字に近い長さにする（できるだけ均等に分割）
2. 意味のまとまりごとに分割する
3. 句読点や助詞の位置を考慮する
4. 会話の流れを壊さない

JSON形式で、分割後のテキストを配列で返してください。
例: {"segments": ["最初の部分", "次の部分", "最後の部分"]}

必ずJSONのみを返してください。説明文は不要です。`, text, textLen, s.cfg.MaxLineLength, s.cfg.MaxLineLength)

	raw, err := s.gen.Generate(ctx, prompt, s.maxTokens, s.temperature)
	if err != nil {
		return nil, err
	}
	pieces, err := llm.DecodeStringList(raw, "segments")
	if err != nil {
		return nil, err
	}
	out := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// validatePieces returns a non-empty rejection reason unless the rejoined
// pieces are textually faithful to the original.
func validatePieces(original string, pieces []string) string {
	joined := strings.Join(pieces, "")
	if strings.TrimSpace(joined) == "" {
		return "empty output"
	}

	originalClean := []rune(textutil.StripForMatching(original))
	joinedClean := []rune(textutil.StripForMatching(joined))
	if float64(len(joinedClean)) < float64(len(originalClean))*splitMinLengthRatio {
		return fmt.Sprintf("output too short (%d vs %d chars)", len(joinedClean), len(originalClean))
	}
	if float64(len(joinedClean)) > float64(len(originalClean))*splitMaxLengthRatio {
		return fmt.Sprintf("output too long (%d vs %d chars)", len(joinedClean), len(originalClean))
	}
	if sim := textutil.Similarity(original, joined); sim < splitSimilarityFloor {
		return fmt.Sprintf("similarity too low (%.2f)", sim)
	}
	return ""
}

// mapPiecesToWords assigns word timestamps to each split piece. Returns false
// when more than half the pieces could not be matched to words.
func (s *Splitter) mapPiecesToWords(seg subtitle.Segment, pieces []string) ([]subtitle.Segment, bool) {
	words := seg.Words
	var fullText strings.Builder
	for _, w := range words {
		fullText.WriteString(textutil.StripForMatching(w.Text))
	}
	full := []rune(fullText.String())

	out := make([]subtitle.Segment, 0, len(pieces))
	wordIdx := 0
	consumed := 0

	for pieceIdx, piece := range pieces {
		clean := []rune(textutil.StripForMatching(piece))
		if len(clean) == 0 {
			continue
		}
		remaining := full[consumed:]

		matchEnd, score := matchPiece(clean, remaining)

		cue := subtitle.Segment{Text: piece}
		if score >= wordMatchFloor && matchEnd > 0 {
			taken := 0
			for wordIdx < len(words) && taken < matchEnd {
				w := words[wordIdx]
				cue.Words = append(cue.Words, w)
				taken += len([]rune(textutil.StripForMatching(w.Text)))
				wordIdx++
			}
			consumed += matchEnd
		} else {
			// Distribute the remaining words evenly over the remaining
			// pieces so the split survives a single bad match.
			remainingPieces := len(pieces) - pieceIdx
			remainingWords := len(words) - wordIdx
			share := remainingWords / remainingPieces
			if share < 1 {
				share = 1
			}
			for n := 0; n < share && wordIdx < len(words); n++ {
				cue.Words = append(cue.Words, words[wordIdx])
				wordIdx++
			}
		}

		if pieceIdx == len(pieces)-1 {
			for wordIdx < len(words) {
				cue.Words = append(cue.Words, words[wordIdx])
				wordIdx++
			}
		}

		if len(cue.Words) > 0 {
			cue.Start = cue.Words[0].Start
			cue.End = cue.Words[len(cue.Words)-1].End
		} else {
			cue.Start = seg.Start
			cue.End = seg.End
		}
		out = append(out, cue)
	}

	withoutWords := 0
	for _, c := range out {
		if !c.HasWords() {
			withoutWords++
		}
	}
	if float64(withoutWords) > float64(len(out))*0.5 {
		return nil, false
	}
	return out, true
}

// matchPiece locates the piece at the head of the remaining word text. Exact
// substring hits at or near the start win outright; otherwise candidate end
// positions around the piece length are scored by an order-preserving
// subsequence match weighted toward coverage of the piece.
func matchPiece(clean, remaining []rune) (int, float64) {
	idx := indexRunes(remaining, clean)
	if idx == 0 {
		return len(clean), 1.0
	}
	if idx > 0 && idx < len(clean)/2 {
		return idx + len(clean), 0.95
	}

	bestEnd, bestScore := -1, 0.0
	minSearch := len(clean) - 5
	if minSearch < 1 {
		minSearch = 1
	}
	maxSearch := len(clean)*2 + 10
	if maxSearch > len(remaining) {
		maxSearch = len(remaining)
	}
	for end := minSearch; end <= maxSearch; end++ {
		candidate := remaining[:end]
		matched := 0
		pos := 0
		for _, r := range candidate {
			if pos < len(clean) && r == clean[pos] {
				matched++
				pos++
			}
		}
		coverage := float64(matched) / float64(len(clean))
		density := 0.0
		if len(candidate) > 0 {
			density = float64(matched) / float64(len(candidate))
		}
		score := coverage*0.8 + density*0.2
		if score > bestScore {
			bestScore = score
			bestEnd = end
		}
	}
	return bestEnd, bestScore
}

func indexRunes(haystack, needle []rune) int {
	h := string(haystack)
	byteIdx := strings.Index(h, string(needle))
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(h[:byteIdx]))
}

// closeGapsAndBorrow snaps each piece's start to its predecessor's end and
// lets pieces shorter than the minimum duration borrow time from their
// successor, without starving the successor below the minimum.
func closeGapsAndBorrow(pieces []subtitle.Segment, minDurPerChar float64) {
	for i := 1; i < len(pieces); i++ {
		if pieces[i].Start > pieces[i-1].End {
			pieces[i].Start = pieces[i-1].End
		}

		cur := pieces[i].End - pieces[i].Start
		if cur >= minPieceDuration || i >= len(pieces)-1 {
			continue
		}
		chars := pieces[i].RuneCount()
		needed := float64(chars) * minDurPerChar
		if needed < minPieceDuration {
			needed = minPieceDuration
		}
		next := &pieces[i+1]
		available := next.End - next.Start - minPieceDuration
		borrow := needed - cur
		if borrow > available {
			borrow = available
		}
		if borrow > 0 {
			pieces[i].End += borrow
			next.Start = pieces[i].End
		}
	}
}
