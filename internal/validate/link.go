package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/eventscout/internal/model"
)

// LinkClassifier classifies ticket/info links as generic listing pages or
// specific event pages
type LinkClassifier struct {
	config   *model.LinkConfig
	segments map[string]bool
	trusted  []string
	patterns []*regexp.Regexp
}

// NewLinkClassifier creates a new link classifier
func NewLinkClassifier(config *model.LinkConfig) *LinkClassifier {
	if config == nil {
		config = &model.DefaultConfig().Links
	}

	classifier := &LinkClassifier{
		config:   config,
		segments: make(map[string]bool),
		patterns: make([]*regexp.Regexp, 0, len(config.GenericPatterns)),
	}

	for _, seg := range config.ListingSegments {
		classifier.segments[strings.ToLower(strings.Trim(seg, "/"))] = true
	}

	for _, page := range config.TrustedListingPages {
		classifier.trusted = append(classifier.trusted, strings.ToLower(strings.TrimSuffix(page, "/")))
	}

	// Compile generic patterns; invalid ones are skipped
	for _, p := range config.GenericPatterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			classifier.patterns = append(classifier.patterns, re)
		}
	}

	return classifier
}

// Classify classifies a URL
func (c *LinkClassifier) Classify(rawURL string) model.LinkKind {
	rawURL = model.NormalizeLink(rawURL)
	if rawURL == "" {
		return model.LinkNone
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.LinkGeneric
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	path := strings.ToLower(strings.TrimSuffix(parsed.Path, "/"))

	// Trusted listing pages carry per-event detail for their venue
	location := host + path
	for _, page := range c.trusted {
		if location == page || strings.HasPrefix(location, page+"/") {
			return model.LinkSpecific
		}
	}

	for _, re := range c.patterns {
		if re.MatchString(rawURL) {
			return model.LinkGeneric
		}
	}

	// Bare homepage
	if path == "" {
		return model.LinkGeneric
	}

	last := path[strings.LastIndex(path, "/")+1:]
	if c.segments[last] {
		return model.LinkGeneric
	}

	return model.LinkSpecific
}

// IsGeneric reports whether a URL points at a listing page
func (c *LinkClassifier) IsGeneric(rawURL string) bool {
	return c.Classify(rawURL) == model.LinkGeneric
}
