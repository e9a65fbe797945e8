// README: Pulls a JSON document out of raw model text and repairs common syntax slips.
package itinerary

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no extraction or repair strategy yields a JSON object or array.
var ErrNoJSON = errors.New("no parseable JSON object or array in response")

var (
	// fencedBlockPattern matches the body of a markdown code block: ```json ... ```
	fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\r?\\n?(.*?)```")
	// fenceMarkerPattern matches stray fence markers left without a closing partner.
	fenceMarkerPattern = regexp.MustCompile("```[a-zA-Z]*")
	// greedyObjectPattern and greedyArrayPattern span from the first opener to the last closer.
	greedyObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	greedyArrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
)

// Extraction is the outcome of a successful ExtractJSON call.
type Extraction struct {
	// Value is the decoded document, either map[string]any or []any.
	Value any
	// Repaired reports whether the syntactic repairer was needed.
	Repaired bool
}

// ExtractJSON finds the first usable JSON object or array in raw.
//
// Strategies run in order and the first success wins: direct parse, the first
// balanced-looking span, the same span search after stripping markdown fences,
// and finally a syntactic repair of every candidate collected so far.
func ExtractJSON(raw string) (*Extraction, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrNoJSON
	}

	candidates := newCandidateList()
	candidates.add(text)
	candidates.add(spanCandidates(text)...)
	candidates.add(spanCandidates(stripFences(text))...)

	for _, c := range candidates.items {
		if v, ok := parseDocument(c); ok {
			return &Extraction{Value: v}, nil
		}
	}
	for _, c := range candidates.items {
		if v, ok := parseDocument(repairJSON(c)); ok {
			return &Extraction{Value: v, Repaired: true}, nil
		}
	}
	return nil, ErrNoJSON
}

func parseDocument(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

type candidateList struct {
	items []string
	seen  map[string]struct{}
}

func newCandidateList() *candidateList {
	return &candidateList{seen: make(map[string]struct{})}
}

func (l *candidateList) add(cs ...string) {
	for _, c := range cs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := l.seen[c]; dup {
			continue
		}
		l.seen[c] = struct{}{}
		l.items = append(l.items, c)
	}
}

// spanCandidates returns the first balanced-looking span followed by the greedy
// object and array spans found in text.
func spanCandidates(text string) []string {
	var out []string
	if s := firstBalancedSpan(text); s != "" {
		out = append(out, s)
	}
	if s := greedyObjectPattern.FindString(text); s != "" {
		out = append(out, s)
	}
	if s := greedyArrayPattern.FindString(text); s != "" {
		out = append(out, s)
	}
	return out
}

// firstBalancedSpan scans from the first '{' or '[' and returns the text up to
// the point where every opener is closed. An unterminated span runs to the end
// of text so the repairer can still work on it.
func firstBalancedSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	var stack []byte
	inString, escaped := false, false
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
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == openerFor(c) {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return text[start:]
}

// stripFences returns the body of the first fenced code block, or text with
// any stray fence markers removed.
func stripFences(text string) string {
	if m := fencedBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return fenceMarkerPattern.ReplaceAllString(text, "")
}

// repairJSON balances braces and brackets, drops trailing commas and // comments,
// and terminates an unfinished string. It has no schema knowledge.
func repairJSON(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	s = strings.Join(lines, "\n")

	out := make([]byte, 0, len(s)+8)
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out = append(out, c)
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
			out = append(out, c)
		case '{', '[':
			stack = append(stack, c)
			out = append(out, c)
		case '}', ']':
			want := openerFor(c)
			if !containsByte(stack, want) {
				// stray closer
				continue
			}
			for stack[len(stack)-1] != want {
				out = trimTrailingComma(out)
				out = append(out, closerFor(stack[len(stack)-1]))
				stack = stack[:len(stack)-1]
			}
			out = trimTrailingComma(out)
			out = append(out, c)
			stack = stack[:len(stack)-1]
		default:
			out = append(out, c)
		}
	}

	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out = append(out, '"')
	}
	out = trimDangling(out)
	for len(stack) > 0 {
		out = trimTrailingComma(out)
		out = append(out, closerFor(stack[len(stack)-1]))
		stack = stack[:len(stack)-1]
	}
	return string(out)
}

// trimTrailingComma removes a comma (and the whitespace after it) at the end of out.
func trimTrailingComma(out []byte) []byte {
	end := len(out)
	for end > 0 && isSpace(out[end-1]) {
		end--
	}
	if end > 0 && out[end-1] == ',' {
		return out[:end-1]
	}
	return out
}

// trimDangling drops a trailing comma and completes a key left without a value.
func trimDangling(out []byte) []byte {
	end := len(out)
	for end > 0 && isSpace(out[end-1]) {
		end--
	}
	out = out[:end]
	if end > 0 && out[end-1] == ':' {
		return append(out, "null"...)
	}
	return trimTrailingComma(out)
}

// stripLineComment removes a // comment from a line, respecting string values.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

func openerFor(closer byte) byte {
	if closer == '}' {
		return '{'
	}
	return '['
}

func closerFor(opener byte) byte {
	if opener == '{' {
		return '}'
	}
	return ']'
}

func containsByte(b []byte, c byte) bool {
	for _, x := range b {
		if x == c {
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
