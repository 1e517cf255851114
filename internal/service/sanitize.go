package service

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const snippetLength = 100

var (
	richTextPolicy = bluemonday.UGCPolicy()
	stripPolicy    = bluemonday.StrictPolicy()
)

// SanitizeDescription strips markup the rich-text editor never produces
// (scripts, handlers, styles). Blank input becomes nil.
func SanitizeDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*desc)
	if trimmed == "" {
		return nil
	}
	clean := richTextPolicy.Sanitize(trimmed)
	return &clean
}

// Snippet renders a plain-text preview of an HTML description.
func Snippet(desc *string) string {
	if desc == nil || strings.TrimSpace(*desc) == "" {
		return "No description."
	}

	plain := strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(*desc)))
	if plain == "" {
		return "(Description contains only media.)"
	}

	if utf8.RuneCountInString(plain) > snippetLength {
		runes := []rune(plain)
		return string(runes[:snippetLength]) + "..."
	}
	return plain
}
