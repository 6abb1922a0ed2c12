package ical

import "strings"

// EscapeText applies the RFC 5545 TEXT escaping rules (§4.2): backslash,
// semicolon, and comma are escaped; LF becomes the two-character
// sequence \n; a bare CR is dropped outright to prevent line-ending
// injection into the folded stream.
func EscapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UnescapeText is the symmetric inverse of EscapeText, tolerant of an
// unescaped trailing backslash (copied through literally).
func UnescapeText(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\r' {
			continue
		}
		if r == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case '\\':
				b.WriteRune('\\')
				i++
				continue
			case ';':
				b.WriteRune(';')
				i++
				continue
			case ',':
				b.WriteRune(',')
				i++
				continue
			case 'n', 'N':
				b.WriteRune('\n')
				i++
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HasControlChars reports whether s contains a CR or LF, used to reject
// RRULE input (RRULE is a structured value and is never escaped — §4.2).
func HasControlChars(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
