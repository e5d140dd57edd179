package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ParseThinking separates reasoning emitted inside <think> tags from the
// answer. Blocks are removed while they open before the first '{'; a tag
// after that point is part of the answer. An unclosed opening tag swallows
// everything up to the next '{', or the rest of the text when no JSON follows.
func ParseThinking(text string) (thinking, cleaned string) {
	var parts []string
	keep := func(s string) {
		if part := strings.TrimSpace(s); part != "" {
			parts = append(parts, part)
		}
	}
	rest := text
	for {
		open := strings.Index(rest, thinkOpen)
		if open < 0 {
			break
		}
		if brace := strings.IndexByte(rest, '{'); brace >= 0 && brace < open {
			break
		}
		after := rest[open+len(thinkOpen):]
		if closeIdx := strings.Index(after, thinkClose); closeIdx >= 0 {
			keep(after[:closeIdx])
			rest = rest[:open] + after[closeIdx+len(thinkClose):]
			continue
		}
		if brace := strings.IndexByte(after, '{'); brace >= 0 {
			keep(after[:brace])
			rest = rest[:open] + after[brace:]
		} else {
			keep(after)
			rest = rest[:open]
		}
		break
	}
	return strings.Join(parts, "\n\n"), strings.TrimSpace(rest)
}
