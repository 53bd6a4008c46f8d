// Package content holds the pure text transforms between fetched documents
// and playback units: cleanup, segmentation, and media URL extraction.
package content

import (
	"regexp"
	"strings"
)

// mp3URLPattern matches mp3 links in markdown or plain text without
// swallowing closing brackets.
var mp3URLPattern = regexp.MustCompile(`https?://[^\s)\]]+\.mp3\b(?:[?#][^\s)\]]*)?`)

// trailingJunkPattern strips punctuation a link may have picked up from the
// surrounding sentence.
var trailingJunkPattern = regexp.MustCompile(`[)\],.。]+$`)

// ExtractMP3URLs pulls every mp3 link out of text, deduplicated and in first
// seen order. An empty result means the text should be spoken instead.
func ExtractMP3URLs(text string) []string {
	matches := mp3URLPattern.FindAllString(text, -1)

	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, m := range matches {
		u := trailingJunkPattern.ReplaceAllString(m, "")
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// cleanPattern keeps CJK, latin letters, digits, common punctuation and
// whitespace; everything else is mojibake as far as the speaker is concerned.
var cleanPattern = regexp.MustCompile(`[^\x{4e00}-\x{9fa5}a-zA-Z0-9，。！？、；：“”‘’()\[\]{}\s\-_/]`)

// CleanText drops characters the TTS engine garbles.
func CleanText(text string) string {
	return cleanPattern.ReplaceAllString(text, "")
}

// SplitSegments breaks text into speakable segments: by full stop first,
// falling back to line breaks when the text has no sentence punctuation.
func SplitSegments(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var segments []string
	for _, part := range strings.Split(text, "。") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments = append(segments, part+"。")
	}

	if len(segments) > 1 {
		return segments
	}

	segments = segments[:0]
	for _, part := range strings.Split(text, "\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

// htmlTagPattern strips markup that leaks through feed payloads.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// whitespacePattern collapses runs of whitespace into single spaces.
var whitespacePattern = regexp.MustCompile(`\s+`)

// StripMarkup removes HTML tags and collapses whitespace.
func StripMarkup(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// Truncate keeps at most max runes, appending an ellipsis when it cut.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
