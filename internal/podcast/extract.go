package podcast

import (
	"encoding/json"
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ExtractJSON pulls the JSON object out of a model response. It removes
// leading <think> blocks and markdown code fences, then returns the first '{'
// that decodes as a complete object, so braces in surrounding prose are
// skipped. When nothing decodes, the text from the first '{' to its matching
// brace is returned so the decoder reports a useful error.
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(stripThinkBlocks(raw))
	text = stripCodeFence(text)
	if text == "" {
		return ""
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}
	if obj, ok := firstObject(text, start); ok {
		return obj
	}
	if end := matchingBrace(text, start); end > start {
		return text[start : end+1]
	}
	if end := strings.LastIndexByte(text, '}'); end > start {
		return text[start : end+1]
	}
	return text[start:]
}

func firstObject(text string, start int) (string, bool) {
	for i := start; i < len(text); {
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&obj); err == nil {
			return string(obj), true
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", false
}

// stripThinkBlocks removes <think> blocks that open before the payload. A
// dangling opening tag drops everything up to the first '{' that follows it,
// or everything when no JSON follows. Tags after the first '{' are payload
// text and stay.
func stripThinkBlocks(text string) string {
	for {
		open := strings.Index(text, thinkOpen)
		if open < 0 {
			return text
		}
		if brace := strings.IndexByte(text, '{'); brace >= 0 && brace < open {
			return text
		}
		rest := text[open+len(thinkOpen):]
		if closeIdx := strings.Index(rest, thinkClose); closeIdx >= 0 {
			text = text[:open] + rest[closeIdx+len(thinkClose):]
			continue
		}
		if brace := strings.IndexByte(rest, '{'); brace >= 0 {
			return text[:open] + rest[brace:]
		}
		return text[:open]
	}
}

func stripCodeFence(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return text
	}
	// A fence inside the object (for example in dialogue) is content.
	if brace := strings.IndexByte(text, '{'); brace >= 0 && brace < open {
		return text
	}
	body := text[open+3:]
	// Drop the info string (```json, ```JSON, ```javascript …) up to the newline.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	// The closing fence is the last one after the final brace; earlier fences
	// can sit inside string values.
	if closeIdx := strings.LastIndex(body, "```"); closeIdx >= 0 && closeIdx > strings.LastIndexByte(body, '}') {
		body = body[:closeIdx]
	}
	return strings.TrimSpace(body)
}

// matchingBrace returns the index of the brace closing the object opened at
// start, honouring JSON string escapes, or -1.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Snippet condenses text to a single line for error messages and logs.
func Snippet(content string, limit int) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	runes := []rune(clean)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
