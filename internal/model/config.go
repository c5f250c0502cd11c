package model

import "time"

// Config is the complete eventscout configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Cache        CacheConfig        `yaml:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	Links        LinkConfig         `yaml:"links"`
	Scoring      ScoringConfig      `yaml:"scoring"`
	Filter       FilterConfig       `yaml:"filter"`
	Continuous   ContinuousConfig   `yaml:"continuous"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	LLM          LLMConfig          `yaml:"llm"`
	Log          LogConfig          `yaml:"log"`
	Output       OutputConfig       `yaml:"output"`
	Server       ServerConfig       `yaml:"server"`
}

// HTTPConfig controls reference content fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout"` // Per-URL timeout
	UserAgent     string        `yaml:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty"`
	NoProxy       string        `yaml:"no_proxy,omitempty"`
}

// CacheConfig controls the page content cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// ConcurrencyConfig bounds fan-out
type ConcurrencyConfig struct {
	FetchWorkers int `yaml:"fetch_workers"`
}

// RateLimitingConfig is applied per domain
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// LinkConfig drives the generic/specific link classifier
type LinkConfig struct {
	ListingSegments     []string `yaml:"listing_segments"`      // Path endings that mark listing pages
	GenericPatterns     []string `yaml:"generic_patterns"`      // Extra regexes that mark listing/search pages
	TrustedListingPages []string `yaml:"trusted_listing_pages"` // Substrings never treated as generic
}

// ScoringConfig tunes the quality scorer
type ScoringConfig struct {
	MinDescriptionChars int     `yaml:"min_description_chars"`
	DefaultAdherence    float64 `yaml:"default_adherence"`     // Used when no judge/upstream value exists
	TitleMatchThreshold float64 `yaml:"title_match_threshold"` // Token overlap needed to corroborate a title
}

// FilterConfig drives keyword-based exclusion flagging
type FilterConfig struct {
	Enabled         bool     `yaml:"enabled"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// ContinuousConfig drives detection of long-running events (exhibitions,
// theatre seasons) that upstream lists once per date
type ContinuousConfig struct {
	Consolidate bool     `yaml:"consolidate"` // Keep one entry per title and venue
	Keywords    []string `yaml:"keywords"`
}

// PipelineConfig controls the orchestrator
type PipelineConfig struct {
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	Dedupe       bool          `yaml:"dedupe"` // Reject repeated (title, date, time) as Duplicate
}

// LLMConfig configures the prompt-adherence judge
type LLMConfig struct {
	Provider     string `yaml:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model        string `yaml:"model"`
	APIKey       string `yaml:"-"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Timeout      int    `yaml:"timeout"` // seconds
	MaxTokens    int    `yaml:"max_tokens"`
	MaxPageChars int    `yaml:"max_page_chars"` // Page text budget sent to the model

	// CategoryPrompts holds the search criteria each category was collected
	// with; the judge rates events against them
	CategoryPrompts map[string]string `yaml:"category_prompts,omitempty"`
}

// LogConfig selects the logger mode
type LogConfig struct {
	Mode string `yaml:"mode"` // dev or prod
}

// OutputConfig controls result rendering
type OutputConfig struct {
	Path    string `yaml:"path"`
	Verbose bool   `yaml:"verbose"`
}

// ServerConfig controls the read-only results server
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       15 * time.Second,
			UserAgent:     "EventScout/0.1 (+https://github.com/ppiankov/eventscout)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".eventscout/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   6 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			FetchWorkers: 30,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         5,
		},
		Links: LinkConfig{
			ListingSegments: []string{
				"shows", "agenda", "eventos", "events", "programacao",
				"calendario", "calendar", "schedule",
			},
			GenericPatterns: []string{
				`/busca\?`,
				`/search\?`,
				`/eventos\?`,
				`[?&]city=`,
				`/d/brazil--`,
			},
			TrustedListingPages: []string{
				"bluenoterio.com.br/shows",
				"eventim.com.br/artist/blue-note-rio",
			},
		},
		Scoring: ScoringConfig{
			MinDescriptionChars: 20,
			DefaultAdherence:    7.0,
			TitleMatchThreshold: 0.5,
		},
		Filter: FilterConfig{
			Enabled: true,
			ExcludeKeywords: []string{
				"infantil", "criança", "crianças", "kids", "criancas",
				"infanto-juvenil", "sessão infantil", "sessao infantil",
				"para crianças", "para criancas", "oficina infantil",
				"roda de conversa", "bate-papo",
			},
		},
		Continuous: ContinuousConfig{
			Consolidate: true,
			Keywords: []string{
				"exposição", "exposicao", "temporada",
				"em cartaz", "visitação", "visitacao",
			},
		},
		Pipeline: PipelineConfig{
			BatchTimeout: 10 * time.Minute,
		},
		LLM: LLMConfig{
			Timeout:      30,
			MaxTokens:    300,
			MaxPageChars: 2000,
		},
		Log: LogConfig{
			Mode: "dev",
		},
		Output: OutputConfig{
			Path: "validated_events.json",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}
