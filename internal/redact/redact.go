package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Log lines and previews must never carry the raw sensitive values this
// system exists to remove, so everything user-derived passes through here
// before reaching a logger or console output.
var (
	emailRe = regexp.MustCompile(`(?i)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-().]{6,}\d`)
	ssnRe   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardRe  = regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)
	ibanRe  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)
	tokenRe = regexp.MustCompile(`[A-Za-z0-9_\-]{24,}`)
)

// String scrubs known sensitive patterns from free-form strings.
func String(s string) string {
	if s == "" {
		return s
	}
	out := s
	out = emailRe.ReplaceAllString(out, "[EMAIL]")
	out = ssnRe.ReplaceAllString(out, "[SSN]")
	out = cardRe.ReplaceAllString(out, "[CARD]")
	out = ibanRe.ReplaceAllString(out, "[IBAN]")
	out = phoneRe.ReplaceAllString(out, "[PHONE]")
	out = tokenRe.ReplaceAllString(out, "[TOKEN]")
	return out
}

// Sprintf formats like fmt.Sprintf and scrubs the result.
func Sprintf(format string, args ...any) string {
	return String(fmt.Sprintf(format, args...))
}

// Preview produces a short, scrubbed excerpt suitable for log fields.
func Preview(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 80
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxLen {
		s = s[:maxLen] + "…"
	}
	return String(s)
}
