package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/eventscout/internal/model"
)

// CanonicalDateLayout is the DD/MM/YYYY layout used throughout the pipeline
const CanonicalDateLayout = "02/01/2006"

var (
	// canonicalDate is DD/MM/YYYY, always read day-first
	canonicalDate = regexp.MustCompile(`(?:^|[^\d/])(\d{1,2})/(\d{1,2})/(\d{4})(?:[^\d/]|$)`)

	// isoDate is YYYY-MM-DD with an optional time suffix
	isoDate = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)

	// altNumericDate is DD-MM-YYYY or DD.MM.YYYY; only accepted when unambiguous
	altNumericDate = regexp.MustCompile(`^(\d{1,2})[-.](\d{1,2})[-.](\d{4})$`)

	// shortYearDate is any numeric day/month with a two-digit year
	shortYearDate = regexp.MustCompile(`^\d{1,2}[/.-]\d{1,2}[/.-]\d{2}$`)

	// longDate is "15 de novembro de 2025", "15 nov 2025", "15 November 2025"
	longDate = regexp.MustCompile(`(?i)(\d{1,2})(?:º|o)?\s+(?:de\s+)?([a-zçã]{3,})\.?\s+(?:de\s+)?(\d{4})`)
)

// monthNames maps Portuguese and English month names/abbreviations to months
var monthNames = map[string]time.Month{
	"janeiro": time.January, "jan": time.January, "january": time.January,
	"fevereiro": time.February, "fev": time.February, "february": time.February, "feb": time.February,
	"março": time.March, "marco": time.March, "mar": time.March, "march": time.March,
	"abril": time.April, "abr": time.April, "april": time.April, "apr": time.April,
	"maio": time.May, "mai": time.May, "may": time.May,
	"junho": time.June, "jun": time.June, "june": time.June,
	"julho": time.July, "jul": time.July, "july": time.July,
	"agosto": time.August, "ago": time.August, "august": time.August, "aug": time.August,
	"setembro": time.September, "set": time.September, "september": time.September, "sep": time.September, "sept": time.September,
	"outubro": time.October, "out": time.October, "october": time.October, "oct": time.October,
	"novembro": time.November, "nov": time.November, "november": time.November,
	"dezembro": time.December, "dez": time.December, "december": time.December, "dec": time.December,
}

// MonthFromName resolves a month name or abbreviation (Portuguese or English)
func MonthFromName(name string) (time.Month, bool) {
	m, ok := monthNames[strings.ToLower(strings.TrimSuffix(name, "."))]
	return m, ok
}

// NormalizeDate parses a date string into a calendar date (UTC midnight).
//
// DD/MM/YYYY is the canonical form and is read day-first. ISO YYYY-MM-DD and
// long month-name forms are accepted. Dash/dot numeric forms are accepted only
// when the day cannot be a month; otherwise the order is ambiguous and
// model.ErrUnparseableDate is returned instead of guessing. Two-digit years
// are rejected.
func NormalizeDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", model.ErrUnparseableDate)
	}

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return calendarDate(raw, m[3], m[2], m[1])
	}

	if m := canonicalDate.FindStringSubmatch(s); m != nil {
		return calendarDate(raw, m[1], m[2], m[3])
	}

	if m := altNumericDate.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if day <= 12 && month <= 12 && day != month {
			return time.Time{}, fmt.Errorf("%w: %q is ambiguous (day/month order)", model.ErrUnparseableDate, raw)
		}
		return calendarDate(raw, m[1], m[2], m[3])
	}

	if shortYearDate.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q has a two-digit year", model.ErrUnparseableDate, raw)
	}

	if m := longDate.FindStringSubmatch(s); m != nil {
		month, ok := MonthFromName(m[2])
		if !ok {
			return time.Time{}, fmt.Errorf("%w: unknown month %q", model.ErrUnparseableDate, m[2])
		}
		return calendarDate(raw, m[1], strconv.Itoa(int(month)), m[3])
	}

	return time.Time{}, fmt.Errorf("%w: %q", model.ErrUnparseableDate, raw)
}

// FormatDate renders a calendar date as DD/MM/YYYY
func FormatDate(t time.Time) string {
	return t.Format(CanonicalDateLayout)
}

// calendarDate builds a date and rejects impossible days (31/02)
func calendarDate(raw, dayStr, monthStr, yearStr string) (time.Time, error) {
	day, err1 := strconv.Atoi(dayStr)
	month, err2 := strconv.Atoi(monthStr)
	year, err3 := strconv.Atoi(yearStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("%w: %q", model.ErrUnparseableDate, raw)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: %q out of range", model.ErrUnparseableDate, raw)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", model.ErrUnparseableDate, raw)
	}
	return t, nil
}
