package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Models return JSON wrapped in markdown fences, behind 【JSON】 markers, as
// numbered lists, truncated mid-array, or followed by trailing prose. The
// decoders here try a layered sequence of repairs before surfacing a decode
// error; callers treat that error as "keep the original data".

// DecodeResponse decodes a JSON object response into target, handling common
// formatting quirks (code fences, surrounding prose, missing closing
// brackets).
func DecodeResponse(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	for _, candidate := range repairCandidates(trimmed) {
		if json.Unmarshal([]byte(candidate), target) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
}

// DecodeStringList extracts the string array stored under key from a
// response, repairing the layouts models actually produce: fenced JSON,
// marker-prefixed arrays, numbered lists, bare arrays, truncated JSON,
// trailing prose, stray quoted strings, and as a last resort short plain
// text wrapped as a single item.
func DecodeStringList(content, key string) ([]string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, errors.New("empty payload")
	}

	strategies := []func(string, string) ([]string, bool){
		parseDirect,
		parseMarkdownFence,
		parseJSONMarker,
		parseNumberedList,
		parsePlainArray,
		parseCompletedBrackets,
		parseLeadingJSON,
		parseAnyArray,
	}
	for _, strategy := range strategies {
		if items, ok := strategy(trimmed, key); ok {
			return items, nil
		}
	}
	return nil, fmt.Errorf("all repair strategies failed (payload snippet: %s)", summarizePayloadSnippet(trimmed))
}

func repairCandidates(trimmed string) []string {
	var out []string
	if fenced := stripCodeFenceBlock(trimmed); fenced != trimmed {
		out = append(out, fenced)
	}
	if extracted := extractDelimited(trimmed, '{', '}'); extracted != "" {
		out = append(out, extracted)
	}
	if extracted := extractDelimited(trimmed, '[', ']'); extracted != "" {
		out = append(out, extracted)
	}
	if completed := completeBrackets(trimmed); completed != trimmed {
		out = append(out, completed)
	}
	return out
}

func parseDirect(text, key string) ([]string, bool) {
	return stringListFromJSON(text, key)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func parseMarkdownFence(text, key string) ([]string, bool) {
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return stringListFromJSON(strings.TrimSpace(m[1]), key)
}

var jsonMarkerPattern = regexp.MustCompile(`(?m)^(?:【JSON】|\[JSON\])\s*\n?`)

func parseJSONMarker(text, key string) ([]string, bool) {
	stripped := strings.TrimSpace(jsonMarkerPattern.ReplaceAllString(text, ""))
	if stripped == text {
		return nil, false
	}
	var arr []string
	if json.Unmarshal([]byte(stripped), &arr) == nil {
		return arr, true
	}
	return stringListFromJSON(stripped, key)
}

var numberedItemPattern = regexp.MustCompile(`^\d+[.)]\s*(.+)$`)

func parseNumberedList(text, key string) ([]string, bool) {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := numberedItemPattern.FindStringSubmatch(line); m != nil {
			items = append(items, m[1])
		} else if len(items) > 0 {
			// Unnumbered line after items is a continuation of the last one.
			items[len(items)-1] += " " + line
		}
	}
	return items, len(items) > 0
}

func parsePlainArray(text, _ string) ([]string, bool) {
	var arr []string
	if json.Unmarshal([]byte(text), &arr) == nil {
		return arr, true
	}
	return nil, false
}

func parseCompletedBrackets(text, key string) ([]string, bool) {
	completed := completeBrackets(text)
	if completed == text {
		return nil, false
	}
	if arr, ok := parsePlainArray(completed, key); ok {
		return arr, true
	}
	return stringListFromJSON(completed, key)
}

// parseLeadingJSON handles a valid JSON object followed by trailing prose by
// decoding only the leading value.
func parseLeadingJSON(text, key string) ([]string, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	var obj map[string]json.RawMessage
	if dec.Decode(&obj) != nil {
		return nil, false
	}
	raw, ok := obj[key]
	if !ok {
		return nil, false
	}
	var arr []string
	if json.Unmarshal(raw, &arr) != nil {
		return nil, false
	}
	return arr, true
}

var (
	arrayPattern  = regexp.MustCompile(`\[([^\[\]]*)\]`)
	quotedPattern = regexp.MustCompile(`["']([^"']+)["']`)
)

func parseAnyArray(text, _ string) ([]string, bool) {
	for _, m := range arrayPattern.FindAllStringSubmatch(text, -1) {
		var arr []string
		if json.Unmarshal([]byte("["+m[1]+"]"), &arr) == nil {
			return arr, true
		}
	}

	if quoted := quotedPattern.FindAllStringSubmatch(text, -1); len(quoted) > 0 {
		items := make([]string, 0, len(quoted))
		for _, m := range quoted {
			items = append(items, m[1])
		}
		return items, true
	}

	// Short plain text is likely real content rather than an error dump.
	if len(text) < 200 && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		cleaned := numberedItemPattern.ReplaceAllString(text, "$1")
		cleaned = strings.TrimSpace(jsonMarkerPattern.ReplaceAllString(cleaned, ""))
		if cleaned != "" {
			return []string{cleaned}, true
		}
	}
	return nil, false
}

func stringListFromJSON(text, key string) ([]string, bool) {
	var obj map[string]json.RawMessage
	if json.Unmarshal([]byte(text), &obj) != nil {
		return nil, false
	}
	raw, ok := obj[key]
	if !ok {
		return nil, false
	}
	var arr []string
	if json.Unmarshal(raw, &arr) != nil {
		return nil, false
	}
	return arr, true
}

func completeBrackets(text string) string {
	openBraces := strings.Count(text, "{")
	closeBraces := strings.Count(text, "}")
	openBrackets := strings.Count(text, "[")
	closeBrackets := strings.Count(text, "]")

	fixed := text
	if openBrackets > closeBrackets {
		fixed += strings.Repeat("]", openBrackets-closeBrackets)
	}
	if openBraces > closeBraces {
		fixed += strings.Repeat("}", openBraces-closeBraces)
	}
	return fixed
}

func extractDelimited(text string, opener, closer byte) string {
	start := strings.IndexByte(text, opener)
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
