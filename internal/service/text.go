package service

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	speechMarkupRe = regexp.MustCompile("[*_#`]")
	markdownLinkRe = regexp.MustCompile(`\[.*?\]\(.*?\)`)
)

// CleanForSpeech strips markdown emphasis characters and drops links so a
// speech engine doesn't read them aloud.
func CleanForSpeech(s string) string {
	s = speechMarkupRe.ReplaceAllString(s, "")
	s = markdownLinkRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SectionName turns a plan key like "next_steps" into "next steps".
func SectionName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

// SectionHeading turns a plan key into a display heading: "next_steps" -> "Next Steps".
func SectionHeading(key string) string {
	return cases.Title(language.English).String(SectionName(key))
}

// MatchSection resolves user input against plan keys. Exact matches win,
// then case-insensitive matches with spaces treated as underscores, then a
// unique prefix.
func MatchSection(keys []string, input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	for _, k := range keys {
		if k == input {
			return k, true
		}
	}
	norm := strings.ToLower(strings.ReplaceAll(input, " ", "_"))
	for _, k := range keys {
		if strings.ToLower(k) == norm {
			return k, true
		}
	}
	var found string
	for _, k := range keys {
		if strings.HasPrefix(strings.ToLower(k), norm) {
			if found != "" {
				return "", false
			}
			found = k
		}
	}
	return found, found != ""
}

// SourceLabel extracts a short display label from a source URL:
// host plus path, without scheme or "www.". Non-URLs are returned as-is.
func SourceLabel(raw string, max int) string {
	label := strings.TrimSpace(raw)
	if u, err := url.Parse(label); err == nil && u.Host != "" {
		label = strings.TrimPrefix(u.Host, "www.") + strings.TrimRight(u.Path, "/")
	}
	return Truncate(label, max)
}

// Truncate shortens s to at most max runes, ending with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
