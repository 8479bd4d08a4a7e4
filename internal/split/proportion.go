package split

import "jimaku/internal/subtitle"

// fallbackSecondaryBreaks are the particles accepted as cut points during the
// character walk. Wider than the configured secondary set because there are
// no word boundaries to lean on.
var fallbackSecondaryBreaks = []rune("、がをにでとのはもてたねよわばし")

// splitByProportion cuts text without word timestamps. Cut points prefer
// sentence enders within a 5-rune lookahead, then particles within a 10-rune
// lookahead, else a forced cut once the chunk runs 5 runes past the
// threshold. Each chunk's time span is the parent duration scaled by its
// share of the characters.
func (s *Splitter) splitByProportion(text string, start, end float64) []subtitle.Segment {
	runes := []rune(text)
	maxLen := s.cfg.MaxLineLength

	var chunks []string
	var current []rune

	for i := 0; i < len(runes); i++ {
		current = append(current, runes[i])
		if len(current) < maxLen {
			continue
		}

		cut := -1
		for j := 0; j < 5 && i+j < len(runes); j++ {
			if isPrimaryRune(runes[i+j]) {
				cut = j
				break
			}
		}
		if cut < 0 {
			for j := 0; j < 10 && i+j < len(runes); j++ {
				if isFallbackSecondary(runes[i+j]) {
					cut = j
					break
				}
			}
		}
		if cut >= 0 {
			current = append(current, runes[i+1:i+cut+1]...)
			chunks = append(chunks, string(current))
			current = nil
			i += cut
			continue
		}
		if len(current) >= maxLen+5 {
			chunks = append(chunks, string(current))
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}

	duration := end - start
	totalChars := len(runes)
	if totalChars == 0 {
		totalChars = 1
	}

	out := make([]subtitle.Segment, 0, len(chunks))
	cursor := start
	for _, chunk := range chunks {
		share := duration * float64(len([]rune(chunk))) / float64(totalChars)
		chunkEnd := cursor + share
		if chunkEnd > end {
			chunkEnd = end
		}
		out = append(out, subtitle.Segment{Start: cursor, End: chunkEnd, Text: chunk})
		cursor = chunkEnd
	}
	return out
}

func isPrimaryRune(r rune) bool {
	switch r {
	case '。', '？', '！':
		return true
	}
	return false
}

func isFallbackSecondary(r rune) bool {
	for _, b := range fallbackSecondaryBreaks {
		if r == b {
			return true
		}
	}
	return false
}
