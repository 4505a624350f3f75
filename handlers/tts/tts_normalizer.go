package tts

import (
	"regexp"
	"strings"
)

// normalizeTextForTTS strips markup the voice would read aloud.
func normalizeTextForTTS(text string) string {
	text = removeMarkdown(text)
	text = removeEmojis(text)
	text = replaceMultipleSpaces(text)
	return strings.TrimSpace(text)
}

func removeMarkdown(text string) string {
	text = markdownHeadingRegex.ReplaceAllString(text, "")
	text = markdownLinkRegex.ReplaceAllString(text, "$1")
	return markdownMarkers.Replace(text)
}

func removeEmojis(text string) string {
	return removeEmojiRegex.ReplaceAllString(text, "")
}

func replaceMultipleSpaces(text string) string {
	return multipleSpacesRegex.ReplaceAllString(text, " ")
}

var markdownMarkers = strings.NewReplacer(
	"**", "", // bold
	"__", "", // underline
	"~~", "", // strikethrough
	"*", "", // italic
	"`", "", // inline code
)

var (
	// letters, combining marks (Devanagari matras), numbers, punctuation,
	// separators and math/currency symbols survive
	removeEmojiRegex     = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{Z}\p{Sm}\p{Sc}\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
	markdownHeadingRegex = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	markdownLinkRegex    = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
)
