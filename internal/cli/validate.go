package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/eventscout/internal/logger"
	"github.com/ppiankov/eventscout/internal/metrics"
	"github.com/ppiankov/eventscout/internal/pipeline"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <events.json>",
	Short: "Validate and score a batch of candidate events",
	Long: `Validate processes a batch of candidate events:
- Normalize dates (DD/MM/YYYY) and times (HH:MM)
- Reject unparseable dates and incomplete records
- Fetch each ticket link concurrently and extract reference dates
- Reject events whose date disagrees with their own page (severe/critical)
- Score every accepted event and write the batch result

The input is a JSON array of events or an object with an "events" array.

Example:
  eventscout validate events.json
  eventscout validate events.json --output validated_events.json --workers 10
  eventscout validate events.json --llm-provider openai --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	f := validateCmd.Flags()
	f.StringP("output", "o", "", "output JSON path (default: validated_events.json)")
	f.Int("workers", 0, "number of concurrent fetch workers")
	f.Duration("timeout", 0, "total timeout for the batch")
	f.Duration("http-timeout", 0, "timeout for each reference fetch")
	f.Float64("rps", 0, "requests per second per domain")
	f.String("ua", "", "HTTP User-Agent")
	f.Bool("no-cache", false, "disable page cache (force fresh fetch)")
	f.Bool("no-robots", false, "ignore robots.txt")
	f.Bool("insecure", false, "skip TLS certificate verification")
	f.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	f.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	f.Bool("dedupe", false, "reject repeated events (same title, date and time)")
	f.String("llm-provider", "", "LLM provider for the adherence judge (openai, anthropic, ollama)")
	f.String("llm-model", "", "LLM model name")

	bind := map[string]string{
		"output":       "output.path",
		"workers":      "concurrency.fetch_workers",
		"timeout":      "pipeline.batch_timeout",
		"http-timeout": "http.timeout",
		"rps":          "rate_limiting.requests_per_second",
		"ua":           "http.user_agent",
		"insecure":     "http.insecure_tls",
		"http-proxy":   "http.http_proxy",
		"https-proxy":  "http.https_proxy",
		"dedupe":       "pipeline.dedupe",
		"llm-provider": "llm.provider",
		"llm-model":    "llm.model",
	}
	for flag, key := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	input := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if noRobots, _ := cmd.Flags().GetBool("no-robots"); noRobots {
		cfg.HTTP.RespectRobots = false
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	events, err := pipeline.LoadEvents(input)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  EventScout Validation\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d events)\n", input, len(events))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.FetchWorkers)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", cfg.Output.Path)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", cfg.Pipeline.BatchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM judge:    %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	orchestrator := pipeline.New(cfg, log, metrics.New())
	if cfg.Output.Verbose {
		var mu sync.Mutex
		last := 0
		orchestrator.OnProgress(func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if done <= last {
				return
			}
			last = done
			fmt.Fprintf(os.Stderr, "\r  Validated %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		})
	}
	result := orchestrator.ProcessBatch(ctx, events)

	renderer := pipeline.NewRenderer(os.Stdout)
	if err := renderer.RenderJSON(result, cfg.Output.Path); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	renderer.RenderSummary(result, cfg.Output.Verbose)

	fmt.Fprintf(os.Stderr, "\n✓ Wrote %s in %v\n", cfg.Output.Path, time.Since(start).Round(time.Millisecond))
	return nil
}
