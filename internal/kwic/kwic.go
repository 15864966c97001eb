// Package kwic extracts keyword-in-context snippets used to disambiguate
// an entry during classification.
package kwic

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultWindow is the number of bytes kept on each side of a match.
const DefaultWindow = 100

const ellipsis = "..."

var newlines = regexp.MustCompile(`[\r\n]+`)

// Extract returns the text surrounding the first case-insensitive match of
// token, widened by window bytes on each side. Newline runs become single
// spaces and "..." marks a side where the window stopped short of the text
// boundary. It returns "" when token does not occur.
func Extract(text, token string, window int) string {
	token = strings.TrimSpace(token)
	if text == "" || token == "" {
		return ""
	}
	if window < 0 {
		window = 0
	}

	start, length := find(text, token)
	if start < 0 {
		return ""
	}

	from := alignLeft(text, start-window)
	to := alignRight(text, start+length+window)

	snippet := newlines.ReplaceAllString(text[from:to], " ")
	if from > 0 {
		snippet = ellipsis + snippet
	}
	if to < len(text) {
		snippet += ellipsis
	}
	return snippet
}

// find locates token with a case-insensitive substring search, falling back
// to a case-insensitive word-boundary pattern. Offsets index the original text.
func find(text, token string) (int, int) {
	quoted := regexp.QuoteMeta(token)
	if re, err := regexp.Compile(`(?i)` + quoted); err == nil {
		if loc := re.FindStringIndex(text); loc != nil {
			return loc[0], loc[1] - loc[0]
		}
	}

	re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])(` + quoted + `)(?:[^\p{L}\p{N}_]|$)`)
	if err != nil {
		return -1, 0
	}
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return -1, 0
	}
	return loc[2], loc[3] - loc[2]
}

func alignLeft(text string, i int) int {
	if i <= 0 {
		return 0
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func alignRight(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}
