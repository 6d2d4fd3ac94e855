package utils

import (
	"regexp"
	"strings"
)

// NormalizeEmailSubject removes prefixes like Re:, Fwd:, etc. from a subject
func NormalizeEmailSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	prefixRegex := regexp.MustCompile(`(?i)^(Re|Fwd|Fw)(\[\d+\])?:\s*`)
	for prefixRegex.MatchString(subject) {
		subject = prefixRegex.ReplaceAllString(subject, "")
		subject = strings.TrimSpace(subject)
	}
	return subject
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// StripNulls removes embedded NUL characters, which Postgres text columns reject
func StripNulls(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

// Truncate caps s at max runes-agnostic byte length, preserving whole bytes only
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
