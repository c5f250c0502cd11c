package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/eventscout/internal/model"
)

var (
	// strictTime matches an already canonical HH:MM (hour may be one digit)
	strictTime = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

	// rangeSeparator marks where a time range continues ("14h às 22h", "20:00 - 23:00")
	rangeSeparator = regexp.MustCompile(`(?i)\s+(?:às|as|até|ate|a|until|till|to)\s+|\s*[-–—]\s*`)

	// meridiemTime matches 12-hour clock forms ("8pm", "8:30 p.m.")
	meridiemTime = regexp.MustCompile(`(?i)(?:^|[^\d])(\d{1,2})(?::(\d{2}))?\s*([ap])\.?\s?m\.?(?:[^a-z]|$)`)

	// hourMarker matches an hour carrying a clock unit ("20h00", "9h", "18h30", "20:00")
	hourMarker = regexp.MustCompile(`(?i)(?:^|[^\d/.,])(\d{1,2})\s*(?:(?:hrs?|hs|h)\s*(\d{2})?|:(\d{2}))(?:[^\d]|$)`)

	// spokenHour matches a bare hour introduced or followed by a time word ("às 20", "20 horas")
	spokenHour = regexp.MustCompile(`(?i)(?:(?:^|\s)(?:às|as|das)\s+(\d{1,2})|(\d{1,2})\s+horas?)(?:[^\d/:.,]|$)`)

	// monthSuffix detects "22 de novembro" style dates after a bare number
	monthSuffix = regexp.MustCompile(`(?i)^\s*(?:de\s+)?([a-zç]{3,})`)
)

var namedTimes = map[string]string{
	"meia-noite": "00:00",
	"meia noite": "00:00",
	"meio-dia":   "12:00",
	"meio dia":   "12:00",
}

// NormalizeTime converts a free-form time string into canonical 24-hour HH:MM.
// Ranges collapse to their start time. It returns model.ErrUnparseableTime when
// no hour can be located; callers must treat the time as missing, never as 00:00.
func NormalizeTime(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", model.ErrUnparseableTime)
	}

	if m := strictTime.FindStringSubmatch(s); m != nil {
		return canonicalTime(raw, m[1], m[2])
	}

	lower := strings.ToLower(s)
	for name, canonical := range namedTimes {
		if strings.Contains(lower, name) && !strings.ContainsAny(s, "0123456789") {
			return canonical, nil
		}
	}

	// Keep only the start of a range. A separator only counts once the text
	// before it holds a time, so "sábado a partir das 20h" keeps its hour.
	for _, loc := range rangeSeparator.FindAllStringIndex(s, -1) {
		if loc[0] > 0 && strings.ContainsAny(s[:loc[0]], "0123456789") {
			if t, err := parseClock(raw, s[:loc[0]]); err == nil {
				return t, nil
			}
		}
	}
	return parseClock(raw, s)
}

// parseClock finds the first hour in s, trying 12-hour forms, unit-marked
// hours and finally bare hours next to a time word
func parseClock(raw, s string) (string, error) {
	if m := meridiemTime.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return "", fmt.Errorf("%w: %q", model.ErrUnparseableTime, raw)
		}
		pm := strings.EqualFold(m[3], "p")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}
		return canonicalTime(raw, strconv.Itoa(hour), m[2])
	}

	if m := hourMarker.FindStringSubmatch(s); m != nil {
		return canonicalTime(raw, m[1], m[2]+m[3])
	}

	// A bare number is only an hour when the text says so, and never when it
	// is the day of a "22 de novembro" date.
	if loc := spokenHour.FindStringSubmatchIndex(s); loc != nil {
		start, end := loc[2], loc[3]
		if start < 0 {
			start, end = loc[4], loc[5]
		}
		if m := monthSuffix.FindStringSubmatch(s[end:]); m != nil {
			if _, isMonth := MonthFromName(m[1]); isMonth {
				return "", fmt.Errorf("%w: %q is a date", model.ErrUnparseableTime, raw)
			}
		}
		return canonicalTime(raw, s[start:end], "")
	}

	return "", fmt.Errorf("%w: %q", model.ErrUnparseableTime, raw)
}

// canonicalTime validates hour/minute ranges and zero-pads to HH:MM
func canonicalTime(raw, hourStr, minuteStr string) (string, error) {
	if minuteStr == "" {
		minuteStr = "00"
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrUnparseableTime, raw)
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil {
		return "", fmt.Errorf("%w: %q", model.ErrUnparseableTime, raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("%w: %q out of range", model.ErrUnparseableTime, raw)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
