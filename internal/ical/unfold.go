package ical

// UnfoldLines turns raw iCalendar bytes into logical content lines,
// joining continuation lines (leading space or tab) onto the previous
// logical line after stripping exactly one leading whitespace octet
// (§4.2 decoding).
func UnfoldLines(data []byte) []string {
	raw := splitPhysicalLines(data)
	logical := make([]string, 0, len(raw))
	for _, line := range raw {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(logical) > 0 {
			logical[len(logical)-1] += line[1:]
			continue
		}
		logical = append(logical, line)
	}
	return logical
}

func splitPhysicalLines(data []byte) []string {
	var lines []string
	start := 0
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			end := i
			if end > start && data[end-1] == '\r' {
				end--
			}
			lines = append(lines, string(data[start:end]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}
