package main

import (
	"strings"
	"unicode/utf8"
)

const (
	maxTitleRunes = 30
	titleEllipsis = "..."
)

func firstLine(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	return first
}

// truncate cuts s to at most n runes.
func truncate(s string, n int64) string {
	if n <= 0 || int64(utf8.RuneCountInString(s)) <= n {
		return s
	}
	var i int64
	for idx := range s {
		if i == n {
			return s[:idx]
		}
		i++
	}
	return s
}

// sessionTitle derives a conversation title from its first prompt: the first
// non blank line, cut to maxTitleRunes runes followed by an ellipsis.
func sessionTitle(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	title := strings.TrimSpace(firstLine(prompt))
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return truncate(title, maxTitleRunes) + titleEllipsis
	}
	return title
}
