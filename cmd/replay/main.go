package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/erp/dealbridge/internal/application/bridge"
	"github.com/erp/dealbridge/internal/bootstrap"
	"github.com/erp/dealbridge/internal/domain/deal"
	"github.com/erp/dealbridge/internal/infrastructure/cache"
	"github.com/erp/dealbridge/internal/infrastructure/config"
	"github.com/erp/dealbridge/internal/infrastructure/logger"
	"github.com/erp/dealbridge/internal/infrastructure/telemetry"
)

// consoleHost prints the outcome the platform would have received
type consoleHost struct {
	log    *zap.Logger
	failed bool
}

func (h *consoleHost) CloseWithSuccess() {
	h.log.Info("event closed with success")
}

func (h *consoleHost) CloseWithFailure(message string) {
	h.failed = true
	h.log.Error("event closed with failure", zap.String("message", message))
}

func main() {
	// Parse flags
	var (
		dryRun   bool
		logLevel string
	)
	flag.BoolVar(&dryRun, "dry-run", false, "Map the deal and print the payload without posting it")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	}, "replay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	raw, err := readInput(flag.Arg(0))
	if err != nil {
		log.Fatal("Failed to read event", zap.Error(err))
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log.Named("cache")))
	defer stores.Close()

	metrics := telemetry.MustBridgeMetrics(noop.NewMeterProvider().Meter("replay"))
	b, err := bootstrap.NewBridge(cfg, stores, metrics, log)
	if err != nil {
		log.Fatal("Failed to initialize bridge", zap.Error(err))
	}

	if dryRun {
		if err := printPayload(ctx, b.Mapper, raw, os.Stdout); err != nil {
			log.Fatal("Mapping failed", zap.Error(err))
		}
		return
	}

	host := &consoleHost{log: log}
	if err := b.Service.Handle(ctx, bridge.RawEvent(raw), host); err != nil {
		log.Debug("handler returned error", zap.Error(err))
	}
	if host.failed {
		logger.Sync(log)
		os.Exit(1)
	}
}

// readInput reads the named file, or stdin when name is empty or "-"
func readInput(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func printPayload(ctx context.Context, mapper *bridge.Mapper, raw []byte, w io.Writer) error {
	env, err := deal.DecodeEnvelope(raw)
	if err != nil {
		return err
	}
	payload, err := mapper.MapDeal(ctx, env)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: replay [options] [event.json]

Runs a CRM deal event through the bridge. The event is read from the
named file, or from stdin when no file (or "-") is given.

Options:
`)
	flag.PrintDefaults()
}
