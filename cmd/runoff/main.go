// Command runoff treats the sensor series of one roof-runoff experiment:
// it corrects each series, derives discharge, fits and differentiates the
// results, and writes everything under OUTPUT_DIR (and optionally Kafka).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/runoff-etl-service/internal/adapter/csvfile"
	"github.com/couchcryptid/runoff-etl-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/runoff-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/runoff-etl-service/internal/config"
	"github.com/couchcryptid/runoff-etl-service/internal/observability"
	"github.com/couchcryptid/runoff-etl-service/internal/pipeline"
)

func main() {
	strict := flag.Bool("strict", false, "exit non-zero when any series fails")
	flag.Parse()

	os.Exit(run(*strict))
}

func run(strict bool) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	manifest, err := config.NewManifestLoader(cfg.ManifestPath).Load()
	if err != nil {
		logger.Error("failed to load manifest", "error", err)
		return 1
	}
	logger.Info("manifest loaded", "experiment", manifest.Experiment, "series", len(manifest.Series))

	params := cfg.ProcessParams()
	loaders := pipeline.MultiLoader{csvfile.NewDirLoader(cfg.OutputDir, params.Parser, logger)}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(
		csvfile.NewManifestExtractor(manifest, logger),
		pipeline.NewTransformer(params, logger, metrics),
		loaders,
		logger, metrics, cfg.BatchSize, cfg.LoadRetries,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	report, runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if err := printReport(report); err != nil {
		logger.Error("write report", "error", err)
	}

	switch {
	case runErr != nil:
		return 1
	case strict && !report.OK():
		return 2
	default:
		return 0
	}
}

type failureLine struct {
	Series string `json:"series"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// printReport writes the run report to stdout as JSON.
func printReport(r pipeline.Report) error {
	failed := make([]failureLine, len(r.Failed))
	for i, f := range r.Failed {
		failed[i] = failureLine{Series: f.Series, Stage: f.Stage, Error: f.Err.Error()}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Extracted   int           `json:"extracted"`
		Loaded      []string      `json:"loaded"`
		Failed      []failureLine `json:"failed"`
		StageErrors int           `json:"stage_errors"`
	}{r.Extracted, r.Loaded, failed, r.StageErrors})
}
