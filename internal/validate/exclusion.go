package validate

import (
	"strings"

	"github.com/ppiankov/eventscout/internal/model"
)

// ExclusionFilter flags events whose title or description mentions an
// excluded category keyword (kids sessions, talks)
type ExclusionFilter struct {
	enabled  bool
	keywords []string
}

// NewExclusionFilter creates a keyword filter from config
func NewExclusionFilter(config *model.FilterConfig) *ExclusionFilter {
	if config == nil {
		config = &model.DefaultConfig().Filter
	}

	f := &ExclusionFilter{enabled: config.Enabled}
	for _, kw := range config.ExcludeKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			f.keywords = append(f.keywords, kw)
		}
	}
	return f
}

// Match returns the first keyword found in the event, if any
func (f *ExclusionFilter) Match(event model.EventRecord) (string, bool) {
	if !f.enabled {
		return "", false
	}

	text := strings.ToLower(event.Title + " " + event.Description)
	for _, kw := range f.keywords {
		if containsWord(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// containsWord matches kw at word boundaries so "kids" does not hit "skids"
func containsWord(text, kw string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		if isBoundary(text, idx-1) && isBoundary(text, end) {
			return true
		}
		start = idx + 1
	}
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80)
}
