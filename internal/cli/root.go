package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/eventscout/internal/llm"
	"github.com/ppiankov/eventscout/internal/model"
)

const version = "eventscout v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "eventscout",
	Short: "EventScout - validation and quality scoring for cultural event listings",
	Long: `EventScout checks candidate cultural events gathered by upstream search
agents before they are published.

Each event's date and time are normalized, its ticket link is fetched and
cross-checked for the event date, and a transparent quality score is
computed. Events with unparseable dates, missing fields or dates that
disagree with their own linked page are rejected with a reason.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.eventscout/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-mode", "", "log mode (dev, prod)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.mode", rootCmd.PersistentFlags().Lookup("log-mode"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and ENV variables
func initConfig() {
	// API keys usually live in .env next to the input files
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".eventscout"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// EVENTSCOUT_LLM_PROVIDER overrides llm.provider, and so on
	viper.SetEnvPrefix("EVENTSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then environment variables and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyOverrides(cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = llm.APIKeyFromEnv(cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose

	return cfg, nil
}

// applyOverrides copies every key set through env or flags onto cfg
func applyOverrides(cfg *model.Config) {
	overrideString("log.mode", &cfg.Log.Mode)

	overrideDuration("http.timeout", &cfg.HTTP.Timeout)
	overrideString("http.user_agent", &cfg.HTTP.UserAgent)
	overrideInt64("http.max_body_bytes", &cfg.HTTP.MaxBodyBytes)
	overrideBool("http.insecure_tls", &cfg.HTTP.InsecureTLS)
	overrideBool("http.respect_robots", &cfg.HTTP.RespectRobots)
	overrideString("http.http_proxy", &cfg.HTTP.HTTPProxy)
	overrideString("http.https_proxy", &cfg.HTTP.HTTPSProxy)
	overrideString("http.no_proxy", &cfg.HTTP.NoProxy)

	overrideBool("cache.enabled", &cfg.Cache.Enabled)
	overrideString("cache.dir", &cfg.Cache.Dir)
	overrideDuration("cache.memory_ttl", &cfg.Cache.MemoryTTL)
	overrideDuration("cache.disk_ttl", &cfg.Cache.DiskTTL)

	overrideInt("concurrency.fetch_workers", &cfg.Concurrency.FetchWorkers)
	overrideFloat("rate_limiting.requests_per_second", &cfg.RateLimiting.RequestsPerSecond)
	overrideInt("rate_limiting.burst_size", &cfg.RateLimiting.BurstSize)

	overrideBool("filter.enabled", &cfg.Filter.Enabled)
	overrideBool("continuous.consolidate", &cfg.Continuous.Consolidate)
	overrideDuration("pipeline.batch_timeout", &cfg.Pipeline.BatchTimeout)
	overrideBool("pipeline.dedupe", &cfg.Pipeline.Dedupe)

	overrideString("llm.provider", &cfg.LLM.Provider)
	overrideString("llm.model", &cfg.LLM.Model)
	overrideString("llm.base_url", &cfg.LLM.BaseURL)
	overrideString("llm.api_key", &cfg.LLM.APIKey)

	overrideString("output.path", &cfg.Output.Path)
	overrideString("server.listen_addr", &cfg.Server.ListenAddr)
}

func overrideString(key string, dst *string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func overrideBool(key string, dst *bool) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func overrideInt(key string, dst *int) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func overrideInt64(key string, dst *int64) {
	if viper.IsSet(key) {
		*dst = viper.GetInt64(key)
	}
}

func overrideFloat(key string, dst *float64) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

func overrideDuration(key string, dst *time.Duration) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}
