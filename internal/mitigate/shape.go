package mitigate

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	shapeDateRe  = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})`)
	shapeDigitRe = regexp.MustCompile(`\d`)
	nonLetterRe  = regexp.MustCompile(`[^A-Za-z]`)
)

// shapeMask builds a replacement that keeps the visual shape of the raw
// value (digit positions, separators, token lengths) while destroying its
// content. Used for text rendered back into images, where a same-shaped
// stand-in reads naturally inside the original layout.
func shapeMask(category, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "[REDACTED]"
	}
	upper := strings.ToUpper(category)
	switch {
	case strings.Contains(upper, "DATE") || strings.Contains(upper, "DOB") || shapeDateRe.MatchString(raw):
		return maskDate(raw)
	case strings.Contains(upper, "PHONE") || strings.Contains(upper, "TEL") || looksLikePhone(raw):
		return maskPhone(raw)
	case strings.Contains(upper, "SSN") || strings.Contains(upper, "SOCIAL"):
		return "XX-XX-XXXX"
	default:
		return maskNameLike(raw)
	}
}

// maskDate keeps the first digit of day and month and the century, so the
// result still scans as a date.
func maskDate(s string) string {
	replaced := false
	return shapeDateRe.ReplaceAllStringFunc(s, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		parts := shapeDateRe.FindStringSubmatch(m)
		day, month, year := parts[1], parts[2], parts[3]
		yearMask := "19xx"
		if len(year) >= 4 {
			yearMask = year[:2] + "xx"
		}
		return day[:1] + "x/" + month[:1] + "a/" + yearMask
	})
}

// maskPhone keeps the first and last two digits and every separator, so
// formatting like parentheses and dashes survives.
func maskPhone(s string) string {
	digits := shapeDigitRe.FindAllString(s, -1)
	if len(digits) < 4 {
		return "XXX-XXXX"
	}
	masked := make([]string, len(digits))
	for i := range digits {
		switch {
		case i < 2:
			masked[i] = digits[i]
		case i >= len(digits)-2:
			masked[i] = digits[i]
		default:
			masked[i] = "x"
		}
	}
	next := 0
	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteString(masked[next])
			next++
		} else {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// maskNameLike keeps each token's initial, final letter, and length.
func maskNameLike(s string) string {
	tokens := strings.Fields(s)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		clean := nonLetterRe.ReplaceAllString(token, "")
		switch {
		case clean == "":
			out = append(out, "X")
		case len(clean) == 1:
			out = append(out, strings.ToUpper(clean)+"x")
		default:
			out = append(out, strings.ToUpper(clean[:1])+"xx"+strings.ToUpper(clean[len(clean)-1:])+" "+strconv.Itoa(len(clean)))
		}
	}
	return strings.Join(out, " ")
}

func looksLikePhone(s string) bool {
	return len(shapeDigitRe.FindAllString(s, -1)) >= 7
}

// ReplaceShaped is the in-image variant of Replace: categories with a
// template pool use it, everything else gets a shape-preserving mask so the
// rendered stand-in fits the original layout.
func (s *Synthesizer) ReplaceShaped(category, raw string) string {
	if len(s.templates[category]) > 0 {
		return s.Replace(category, raw)
	}
	return shapeMask(category, raw)
}
