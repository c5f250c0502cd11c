package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/eventscout/internal/cache"
	"github.com/ppiankov/eventscout/internal/extract"
	"github.com/ppiankov/eventscout/internal/model"
	"github.com/ppiankov/eventscout/internal/worker"
)

const defaultCriteria = "Eventos culturais presenciais para público adulto: shows, teatro, " +
	"exposições, cinema, stand-up e festivais. Excluir eventos infantis, palestras e cursos."

// judgeSleepFunc is overridable in tests
var judgeSleepFunc = worker.Sleep

const judgeSystem = "Você é um avaliador de qualidade de dados de eventos culturais. " +
	"Responda somente com JSON."

// Judge rates how well an event matches the search criteria it was collected
// for, using an LLM provider
type Judge struct {
	provider     Provider
	cache        cache.Cache
	prompts      map[string]string
	maxPageChars int
	maxTokens    int
}

// NewJudge creates a prompt-adherence judge. c may be nil.
func NewJudge(provider Provider, config model.LLMConfig, c cache.Cache) *Judge {
	if c == nil {
		c = cache.Nop{}
	}

	prompts := make(map[string]string, len(config.CategoryPrompts))
	for k, v := range config.CategoryPrompts {
		prompts[categoryKey(k)] = v
	}

	maxPage := config.MaxPageChars
	if maxPage <= 0 {
		maxPage = 2000
	}

	return &Judge{
		provider:     provider,
		cache:        c,
		prompts:      prompts,
		maxPageChars: maxPage,
		maxTokens:    config.MaxTokens,
	}
}

// Verdict is the judge's structured reply
type Verdict struct {
	PromptAdherence float64 `json:"prompt_adherence"`
	Notes           string  `json:"notes"`
}

// JudgeAdherence returns a 0-10 adherence score for event given the visible
// text of its linked page ("" when unavailable)
func (j *Judge) JudgeAdherence(ctx context.Context, event model.EventRecord, pageText string) (float64, error) {
	criteria := j.criteriaFor(event.Category)
	page := extract.Truncate(pageText, j.maxPageChars)

	key := cache.Key("judge", j.provider.Name(), criteria, event.Title, event.Date, event.VenueName, event.Description, page)
	if b, ok := j.cache.Get(key); ok {
		if v, err := strconv.ParseFloat(string(b), 64); err == nil && validAdherence(v) {
			return v, nil
		}
	}

	req := CompletionRequest{
		System:      judgeSystem,
		Prompt:      BuildAdherencePrompt(event, criteria, page),
		MaxTokens:   j.maxTokens,
		Temperature: 0.1,
	}
	resp, err := j.provider.Complete(ctx, req)
	if err != nil && IsTemporary(err) && ctx.Err() == nil {
		// one retry for rate limits and provider 5xx
		if sleepErr := judgeSleepFunc(ctx, 2*time.Second); sleepErr == nil {
			resp, err = j.provider.Complete(ctx, req)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("judge %s: %w", j.provider.Name(), err)
	}

	verdict, err := ParseVerdict(resp.Text)
	if err != nil {
		return 0, err
	}

	_ = j.cache.Set(key, []byte(strconv.FormatFloat(verdict.PromptAdherence, 'f', -1, 64)), 0)
	return verdict.PromptAdherence, nil
}

func (j *Judge) criteriaFor(category string) string {
	if p, ok := j.prompts[categoryKey(category)]; ok && p != "" {
		return p
	}
	return defaultCriteria
}

// categoryKey normalizes a category label ("Teatro/Comédia" -> "teatro_comédia")
func categoryKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "/", "_").Replace(s)
}

// BuildAdherencePrompt constructs the judging prompt for one event
func BuildAdherencePrompt(event model.EventRecord, criteria, pageText string) string {
	eventJSON, _ := json.MarshalIndent(event, "", "  ")
	if pageText == "" {
		pageText = "(link indisponível)"
	}

	return fmt.Sprintf(`Avalie se o evento abaixo corresponde ao que foi solicitado na busca original.

CRITÉRIOS DA BUSCA:
%s

DADOS DO EVENTO:
%s

CONTEÚDO DO LINK:
%s

Considere tipo de evento, categoria, local esperado e palavras-chave.
Eventos legítimos com pequenas falhas: 7-8. Perfeitos: 9-10. Fora do escopo: 0-4.

Retorne JSON no formato exato:
{"prompt_adherence": 8.5, "notes": "até 200 caracteres"}`, criteria, eventJSON, pageText)
}

// ParseVerdict extracts the JSON verdict from a model reply, which may wrap
// it in prose or markdown fences
func ParseVerdict(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("no JSON object in reply: %.80q", text)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}

	score, ok := raw["prompt_adherence"]
	if !ok {
		return Verdict{}, fmt.Errorf("verdict missing prompt_adherence")
	}

	var v Verdict
	if err := json.Unmarshal(score, &v.PromptAdherence); err != nil {
		// Some models quote numbers
		var s string
		if err2 := json.Unmarshal(score, &s); err2 != nil {
			return Verdict{}, fmt.Errorf("parse prompt_adherence: %w", err)
		}
		f, err2 := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
		if err2 != nil {
			return Verdict{}, fmt.Errorf("parse prompt_adherence: %w", err2)
		}
		v.PromptAdherence = f
	}
	if notes, ok := raw["notes"]; ok {
		_ = json.Unmarshal(notes, &v.Notes)
	}

	if !validAdherence(v.PromptAdherence) {
		return Verdict{}, fmt.Errorf("prompt_adherence %v out of range", v.PromptAdherence)
	}
	return v, nil
}

// validAdherence rejects NaN along with values outside 0-10
func validAdherence(v float64) bool {
	return v >= 0 && v <= 10
}
