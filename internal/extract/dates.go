package extract

import (
	"encoding/json"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/eventscout/internal/model"
	"github.com/ppiankov/eventscout/internal/normalize"
	"golang.org/x/net/html"
)

// textPattern is a free-text date pattern with its capture group order
type textPattern struct {
	re    *regexp.Regexp
	order string // "ymd", "dmy" or "dMy" (day, month name, year)
}

// DateExtractor extracts reference dates from fetched page content
type DateExtractor struct {
	patterns []textPattern
}

// NewDateExtractor creates a new date extractor
func NewDateExtractor() *DateExtractor {
	return &DateExtractor{
		patterns: []textPattern{
			{re: regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`), order: "ymd"},
			{re: regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{4})\b`), order: "dmy"},
			{re: regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(\p{L}+)\s+de\s+(\d{4})\b`), order: "dMy"},
			{re: regexp.MustCompile(`(?i)\b(\d{1,2})\s+(\p{L}{3,})\.?\s+(\d{4})\b`), order: "dMy"},
		},
	}
}

// Extract returns the reference dates found in content, strongest sources
// first. Structured sources (time tags, LD-JSON, meta tags) are pooled; free
// text is scanned only when none of them produced a date. The sequence is
// finite and each iteration re-scans the content.
func (e *DateExtractor) Extract(content string) iter.Seq[model.ReferenceDate] {
	return func(yield func(model.ReferenceDate) bool) {
		if strings.TrimSpace(content) == "" {
			return
		}

		doc, err := html.Parse(strings.NewReader(content))
		if err != nil {
			return
		}

		seen := make(map[string]bool)
		emit := func(ref model.ReferenceDate) bool {
			key := ref.Value.Format("2006-01-02") + "|" + string(ref.SourceKind)
			if seen[key] {
				return true
			}
			seen[key] = true
			return yield(ref)
		}

		structured := collectStructured(doc)
		for _, ref := range structured {
			if !emit(ref) {
				return
			}
		}
		if len(structured) > 0 {
			return
		}

		for _, ref := range e.fromText(visibleText(doc)) {
			if !emit(ref) {
				return
			}
		}
	}
}

// All collects every reference date in content
func (e *DateExtractor) All(content string) []model.ReferenceDate {
	var refs []model.ReferenceDate
	for ref := range e.Extract(content) {
		refs = append(refs, ref)
	}
	return refs
}

// collectStructured gathers time tags, LD-JSON and meta dates in rank order
func collectStructured(doc *html.Node) []model.ReferenceDate {
	var timeTags, ldJSON, metaTags []model.ReferenceDate

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "time":
				if v := attr(n, "datetime"); v != "" {
					if ref, ok := newReference(v, model.SourceTimeTag); ok {
						timeTags = append(timeTags, ref)
					}
				}
			case "script":
				if strings.EqualFold(strings.TrimSpace(attr(n, "type")), "application/ld+json") && n.FirstChild != nil {
					for _, v := range ldJSONDates(n.FirstChild.Data) {
						if ref, ok := newReference(v, model.SourceLDJSON); ok {
							ldJSON = append(ldJSON, ref)
						}
					}
				}
			case "meta":
				name := strings.ToLower(attr(n, "property") + attr(n, "name") + attr(n, "itemprop"))
				if strings.Contains(name, "date") {
					if ref, ok := newReference(attr(n, "content"), model.SourceMetaTag); ok {
						metaTags = append(metaTags, ref)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	refs := make([]model.ReferenceDate, 0, len(timeTags)+len(ldJSON)+len(metaTags))
	refs = append(refs, timeTags...)
	refs = append(refs, ldJSON...)
	return append(refs, metaTags...)
}

// ldJSONDates returns startDate/endDate values of every schema.org Event in
// an LD-JSON block, including @graph members and nested sub-events
func ldJSONDates(raw string) []string {
	var data interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); err != nil {
		return nil
	}

	var dates []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch node := v.(type) {
		case []interface{}:
			for _, item := range node {
				walk(item)
			}
		case map[string]interface{}:
			if isEventType(node["@type"]) {
				for _, key := range []string{"startDate", "endDate"} {
					if s, ok := node[key].(string); ok && s != "" {
						dates = append(dates, s)
					}
				}
			}
			for key, child := range node {
				if key == "startDate" || key == "endDate" {
					continue
				}
				walk(child)
			}
		}
	}
	walk(data)
	return dates
}

// isEventType matches "Event" and its schema.org subtypes (MusicEvent, ComedyEvent...)
func isEventType(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return strings.HasSuffix(t, "Event")
	case []interface{}:
		for _, item := range t {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

// newReference parses a structured date value into a reference date
func newReference(value string, kind model.SourceKind) (model.ReferenceDate, bool) {
	t, hasTime, ok := parseISODateTime(value)
	if !ok {
		d, err := normalize.NormalizeDate(value)
		if err != nil {
			return model.ReferenceDate{}, false
		}
		t = d
	}
	return model.ReferenceDate{
		Value:          t,
		HasTime:        hasTime,
		SourceKind:     kind,
		ConfidenceRank: kind.Rank(),
	}, true
}

var tzSuffix = regexp.MustCompile(`(?:Z|[+-]\d{2}:?\d{2})$`)

// isoLayouts are tried in order; the timezone is dropped so the wall-clock
// date of the event is kept
var isoLayouts = []struct {
	layout  string
	hasTime bool
}{
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02 15:04", true},
	{"2006-01-02", false},
}

// parseISODateTime parses ISO 8601 date/time strings
func parseISODateTime(s string) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	s = tzSuffix.ReplaceAllString(s, "")
	if idx := strings.Index(s, "."); idx > 10 {
		s = s[:idx] // fractional seconds
	}

	for _, l := range isoLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.hasTime, true
		}
	}
	return time.Time{}, false, false
}

// fromText applies the free-text patterns to visible text
func (e *DateExtractor) fromText(text string) []model.ReferenceDate {
	var refs []model.ReferenceDate

	for _, p := range e.patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			var day, month, year int
			switch p.order {
			case "ymd":
				year, _ = strconv.Atoi(m[1])
				month, _ = strconv.Atoi(m[2])
				day, _ = strconv.Atoi(m[3])
			case "dmy":
				day, _ = strconv.Atoi(m[1])
				month, _ = strconv.Atoi(m[2])
				year, _ = strconv.Atoi(m[3])
			case "dMy":
				mon, ok := normalize.MonthFromName(m[2])
				if !ok {
					continue
				}
				day, _ = strconv.Atoi(m[1])
				month = int(mon)
				year, _ = strconv.Atoi(m[3])
			}

			t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if month < 1 || month > 12 || t.Day() != day {
				continue
			}
			refs = append(refs, model.ReferenceDate{
				Value:          t,
				SourceKind:     model.SourceFreeText,
				ConfidenceRank: model.SourceFreeText.Rank(),
			})
		}
	}

	return refs
}
