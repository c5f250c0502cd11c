package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/eventscout/internal/logger"
	"github.com/ppiankov/eventscout/internal/metrics"
	"github.com/ppiankov/eventscout/internal/pipeline"
	"github.com/ppiankov/eventscout/internal/server"
)

var serveInput string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve validated events over HTTP",
	Long: `Serve exposes the last batch result read-only:

  GET  /healthz          liveness
  GET  /events           accepted events (?category=, ?date=, ?decision=rejected)
  GET  /stats            batch statistics
  POST /refresh          re-validate the --input file in the background
  GET  /refresh/status   refresh job state
  GET  /metrics          Prometheus metrics

Example:
  eventscout serve --input events.json --addr :8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveInput, "input", "", "events file re-validated by POST /refresh")
	serveCmd.Flags().String("addr", "", "listen address (default: :8080)")
	serveCmd.Flags().String("output", "", "batch result file to serve (default: validated_events.json)")

	_ = viper.BindPFlag("server.listen_addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// output.path is bound to the validate flag; read ours directly
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.Output.Path = output
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	m := metrics.New()
	srv := server.New(server.Options{
		Runner:     pipeline.New(cfg, log, m),
		InputPath:  serveInput,
		OutputPath: cfg.Output.Path,
		Metrics:    m,
		Logger:     log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Serving %s on %s\n", cfg.Output.Path, cfg.Server.ListenAddr)
	return srv.ListenAndServe(ctx, cfg.Server.ListenAddr)
}
