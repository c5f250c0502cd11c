package validate

import (
	"strings"

	"github.com/ppiankov/eventscout/internal/model"
)

// ContinuousDetector recognizes long-running events such as exhibitions and
// theatre seasons, which upstream tends to list once per date
type ContinuousDetector struct {
	keywords []string
}

// NewContinuousDetector creates a detector from config
func NewContinuousDetector(config *model.ContinuousConfig) *ContinuousDetector {
	if config == nil {
		config = &model.DefaultConfig().Continuous
	}

	d := &ContinuousDetector{}
	for _, kw := range config.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			d.keywords = append(d.keywords, kw)
		}
	}
	return d
}

// Detect reports whether event is continuous and the keyword that marked it.
// An upstream is_recurring flag is trusted as is and yields no keyword.
func (d *ContinuousDetector) Detect(event model.EventRecord) (string, bool) {
	if event.IsRecurring {
		return "", true
	}

	text := strings.ToLower(event.Title + " " + event.Description)
	for _, kw := range d.keywords {
		if containsWord(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// ConsolidationKey groups repeated dates of one continuous event
func ConsolidationKey(event model.EventRecord) string {
	return strings.ToLower(strings.TrimSpace(event.Title)) + "|" + strings.ToLower(strings.TrimSpace(event.VenueName))
}
