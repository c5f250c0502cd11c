package score

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/eventscout/internal/model"
	"github.com/ppiankov/eventscout/internal/validate"
)

// Component names used in signals
const (
	ComponentPromptAdherence        = "prompt_adherence"
	ComponentLinkContentCorrelation = "link_content_correlation"
	ComponentDateTimePrecision      = "date_time_precision"
	ComponentCompleteness           = "completeness"
)

// Weights of the overall score
const (
	WeightPromptAdherence        = 0.3
	WeightLinkContentCorrelation = 0.3
	WeightDateTimePrecision      = 0.3
	WeightCompleteness           = 0.1
)

const (
	unverifiedPrecision = 8.0
	linkUnknownCap      = 5.0
	excludedCap         = 4.0
	genericPenalty      = 2.0
	titlePenalty        = 3.0
	pricePenalty        = 1.0
	completenessFields  = 6
)

// Input is everything the scorer needs about one event
type Input struct {
	Event       model.EventRecord           // Normalized record
	DateValid   bool                        // Date normalized successfully
	TimeValid   bool                        // Time normalized successfully
	Assessment  model.DiscrepancyAssessment // Date cross-check result
	LinkKind    model.LinkKind
	PageText    string   // Visible text of the fetched link ("" if none)
	FetchFailed bool     // Link present but content could not be fetched
	Adherence   *float64 // Judged or upstream adherence (nil = unknown)
}

// Scorer calculates quality scores and their diagnostic signals
type Scorer struct {
	config *model.ScoringConfig
}

// NewScorer creates a new scorer
func NewScorer(config *model.ScoringConfig) *Scorer {
	if config == nil {
		config = &model.DefaultConfig().Scoring
	}
	return &Scorer{config: config}
}

// Calculate scores one event
func (s *Scorer) Calculate(in Input) model.QualityScore {
	var q model.QualityScore
	var signal model.Signal
	var warnings []string

	// 1. Prompt adherence
	q.PromptAdherence, signal = s.promptAdherence(in)
	q.Signals = append(q.Signals, signal)

	// 2. Link/content correlation
	q.LinkContentCorrelation, signal, warnings = s.linkContentCorrelation(in)
	q.Signals = append(q.Signals, signal)
	q.Warnings = append(q.Warnings, warnings...)

	// 3. Date/time precision
	q.DateTimePrecision, signal = s.dateTimePrecision(in.Assessment)
	q.Signals = append(q.Signals, signal)
	if in.Assessment.Severity == model.SeverityModerate {
		q.Warnings = append(q.Warnings, fmt.Sprintf("date differs from linked page by %d days", *in.Assessment.DeltaDays))
	}

	// 4. Completeness
	q.Completeness, signal = s.completeness(in)
	q.Signals = append(q.Signals, signal)

	q.Overall = Overall(q.PromptAdherence, q.LinkContentCorrelation, q.DateTimePrecision, q.Completeness)
	return q
}

// Overall combines sub-scores into the weighted overall score
func Overall(pa, lcc, dtp, c float64) float64 {
	v := WeightPromptAdherence*pa +
		WeightLinkContentCorrelation*lcc +
		WeightDateTimePrecision*dtp +
		WeightCompleteness*c
	return math.Round(clamp(v)*100) / 100
}

// Band returns the quality band of an overall score
func Band(overall float64) string {
	switch {
	case overall >= 8:
		return "high"
	case overall >= 5:
		return "medium"
	default:
		return "low"
	}
}

// promptAdherence uses the judged value, falling back to a neutral default
func (s *Scorer) promptAdherence(in Input) (float64, model.Signal) {
	source := "judge"
	score := s.config.DefaultAdherence
	if in.Adherence != nil && !math.IsNaN(*in.Adherence) {
		score = clamp(*in.Adherence)
	} else {
		source = "default"
	}

	if in.Event.Excluded && score > excludedCap {
		score = excludedCap
	}

	return score, model.Signal{
		Component:   ComponentPromptAdherence,
		Description: fmt.Sprintf("Adherence %.1f (%s)", score, source),
		Data: map[string]interface{}{
			"source":   source,
			"excluded": in.Event.Excluded,
			"score":    score,
			"formula":  "judge or default; excluded => min(score, 4)",
		},
	}
}

// linkContentCorrelation checks the link against the fetched content
func (s *Scorer) linkContentCorrelation(in Input) (float64, model.Signal, []string) {
	var warnings []string
	score := 10.0
	data := map[string]interface{}{
		"link_kind": string(in.LinkKind),
		"formula":   "10 - 2*generic - 3*title_uncorroborated - 1*price_missing; no link or fetch failure caps at 5",
	}

	if in.LinkKind == model.LinkNone {
		data["score"] = linkUnknownCap
		return linkUnknownCap, model.Signal{
			Component:   ComponentLinkContentCorrelation,
			Description: "No link to verify",
			Data:        data,
		}, nil
	}

	if in.LinkKind == model.LinkGeneric {
		score -= genericPenalty
		warnings = append(warnings, "link points to a listing page")
	}

	description := "Link content corroborates event"
	switch {
	case in.FetchFailed || strings.TrimSpace(in.PageText) == "":
		score = math.Min(score, linkUnknownCap)
		description = "Link content unknown"
		data["fetch_failed"] = true
	default:
		// listing pages cover many events, so only event pages must corroborate
		if in.LinkKind != model.LinkSpecific {
			break
		}
		overlap := TitleOverlap(in.Event.Title, in.PageText)
		data["title_overlap"] = overlap
		if overlap < s.config.TitleMatchThreshold {
			score -= titlePenalty
			warnings = append(warnings, fmt.Sprintf("linked page does not mention the title (overlap %.2f)", overlap))
		}
		if price, ok := NumericPrice(in.Event.Price); ok {
			data["price"] = price
			if !containsNumber(in.PageText, price) {
				score -= pricePenalty
				warnings = append(warnings, fmt.Sprintf("price %s not found on linked page", price))
			}
		}
	}

	score = clamp(score)
	data["score"] = score
	return score, model.Signal{
		Component:   ComponentLinkContentCorrelation,
		Description: description,
		Data:        data,
	}, warnings
}

// dateTimePrecision interpolates linearly within each severity band
func (s *Scorer) dateTimePrecision(a model.DiscrepancyAssessment) (float64, model.Signal) {
	data := map[string]interface{}{
		"severity": string(a.Severity),
		"formula":  "linear in delta_days within band: ok 10..8, minor 8..7, moderate 7..5, severe 5..3, critical 3..0",
	}

	if a.DeltaDays == nil {
		data["score"] = unverifiedPrecision
		return unverifiedPrecision, model.Signal{
			Component:   ComponentDateTimePrecision,
			Description: "Date unverified (no reference found)",
			Data:        data,
		}
	}

	d := float64(*a.DeltaDays)
	var score float64
	switch a.Severity {
	case model.SeverityOK:
		score = 10 - 2*d/validate.OKMaxDays
	case model.SeverityMinor:
		score = 8 - (d-validate.OKMaxDays)/(validate.MinorMaxDays-validate.OKMaxDays)
	case model.SeverityModerate:
		score = 7 - 2*(d-validate.MinorMaxDays)/(validate.ModerateMaxDays-validate.MinorMaxDays)
	case model.SeveritySevere:
		score = 5 - 2*(d-validate.ModerateMaxDays)/(validate.SevereMaxDays-validate.ModerateMaxDays)
	default:
		score = 3 - 3*(d-validate.SevereMaxDays)/365
	}
	score = clamp(score)

	data["delta_days"] = *a.DeltaDays
	data["matched_kind"] = string(a.MatchedKind)
	data["score"] = score
	return score, model.Signal{
		Component:   ComponentDateTimePrecision,
		Description: fmt.Sprintf("Date %d days from reference (%s)", *a.DeltaDays, a.Severity),
		Data:        data,
	}
}

// completeness penalizes each missing or ill-formed field
func (s *Scorer) completeness(in Input) (float64, model.Signal) {
	e := in.Event
	var missing []string

	if strings.TrimSpace(e.Title) == "" {
		missing = append(missing, "title")
	}
	if !in.DateValid {
		missing = append(missing, "date")
	}
	if !in.TimeValid {
		missing = append(missing, "time")
	}
	if strings.TrimSpace(e.VenueName) == "" {
		missing = append(missing, "venue_name")
	}
	if strings.TrimSpace(e.Price) == "" {
		missing = append(missing, "price")
	}
	if utf8.RuneCountInString(strings.TrimSpace(e.Description)) < s.config.MinDescriptionChars {
		missing = append(missing, "description")
	}

	score := clamp(10 - 10.0/completenessFields*float64(len(missing)))

	return score, model.Signal{
		Component:   ComponentCompleteness,
		Description: fmt.Sprintf("%d/%d fields complete", completenessFields-len(missing), completenessFields),
		Data: map[string]interface{}{
			"missing": missing,
			"score":   score,
			"formula": "10 - 10/6 * missing_fields",
		},
	}
}

// TitleOverlap is the share of significant title tokens present in text
func TitleOverlap(title, text string) float64 {
	titleTokens := significantTokens(title)
	if len(titleTokens) == 0 {
		return 1
	}

	textTokens := make(map[string]bool)
	for _, tok := range tokenize(text) {
		textTokens[tok] = true
	}

	found := 0
	for _, tok := range titleTokens {
		if textTokens[tok] {
			found++
		}
	}
	return float64(found) / float64(len(titleTokens))
}

var stopwords = map[string]bool{
	"de": true, "da": true, "do": true, "das": true, "dos": true, "e": true,
	"com": true, "em": true, "no": true, "na": true, "the": true, "and": true,
	"of": true, "a": true, "o": true, "as": true, "os": true, "para": true,
}

func significantTokens(s string) []string {
	var out []string
	for _, tok := range tokenize(s) {
		if len(tok) > 1 && !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var pricePattern = regexp.MustCompile(`\d+(?:[.,]\d{3})*`)

// NumericPrice extracts the integer amount of a price ("R$ 80,00" -> "80").
// Free/consult prices have no amount.
func NumericPrice(price string) (string, bool) {
	m := pricePattern.FindString(price)
	if m == "" {
		return "", false
	}
	m = strings.NewReplacer(".", "", ",", "").Replace(m)
	m = strings.TrimLeft(m, "0")
	if m == "" {
		return "", false
	}
	return m, true
}

// containsNumber reports whether amount appears as a standalone number in text
func containsNumber(text, amount string) bool {
	for _, m := range pricePattern.FindAllString(text, -1) {
		if strings.NewReplacer(".", "", ",", "").Replace(m) == amount {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(10, v))
}
