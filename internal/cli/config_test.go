package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}
	if err := writeDefaultConfig(path); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected refusal to overwrite, got %v", err)
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.HTTP.Timeout != 15*time.Second || cfg.Concurrency.FetchWorkers != 30 {
		t.Errorf("Defaults did not round-trip: %+v %+v", cfg.HTTP, cfg.Concurrency)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "concurrency:\n  fetch_workers: 4\npipeline:\n  batch_timeout: 2m\nllm:\n  provider: ollama\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EVENTSCOUT_RATE_LIMITING_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	viper.SetConfigFile(path)
	viper.SetEnvPrefix("EVENTSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Concurrency.FetchWorkers != 4 {
		t.Errorf("Expected workers from file, got %d", cfg.Concurrency.FetchWorkers)
	}
	if cfg.Pipeline.BatchTimeout != 2*time.Minute {
		t.Errorf("Expected batch timeout from file, got %v", cfg.Pipeline.BatchTimeout)
	}
	if cfg.RateLimiting.RequestsPerSecond != 0.5 {
		t.Errorf("Expected rps from env, got %v", cfg.RateLimiting.RequestsPerSecond)
	}
	if cfg.LLM.BaseURL != "http://ollama:11434" {
		t.Errorf("Expected Ollama base URL from env, got %q", cfg.LLM.BaseURL)
	}
	// Untouched keys keep their defaults
	if cfg.Output.Path != "validated_events.json" {
		t.Errorf("Expected default output path, got %q", cfg.Output.Path)
	}
}
