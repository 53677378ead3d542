package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kodascan/whalewatch/internal/alert"
	"github.com/kodascan/whalewatch/internal/classify"
	"github.com/kodascan/whalewatch/internal/config"
	"github.com/kodascan/whalewatch/internal/dedup"
	"github.com/kodascan/whalewatch/internal/ingest"
	"github.com/kodascan/whalewatch/internal/labelprovider"
	"github.com/kodascan/whalewatch/internal/pipeline"
	"github.com/kodascan/whalewatch/internal/priceresolver"
	"github.com/kodascan/whalewatch/internal/sink"
	"github.com/kodascan/whalewatch/internal/store/postgres"
	redispkg "github.com/kodascan/whalewatch/internal/store/redis"
	"github.com/kodascan/whalewatch/internal/supervisor"
	"github.com/kodascan/whalewatch/internal/tracing"
	"github.com/kodascan/whalewatch/internal/whaleregistry"
)

const (
	exitOK      = 0
	exitUsage   = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage(os.Stderr)
		return exitUsage
	}

	switch args[0] {
	case "start":
		return cmdStart()
	case "stop":
		return cmdStop()
	case "stats":
		return cmdStats()
	case "cleanup-duplicates":
		return cmdCleanupDuplicates(args[1:])
	case "-h", "--help", "help":
		usage(os.Stdout)
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage(os.Stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: whalewatch <command>

commands:
  start                             run the classification pipeline
  stop                              signal a running pipeline to shut down
  stats                             print per-stage counters and source states
  cleanup-duplicates [--dry-run|--live]
                                    scan storage for near-duplicates retroactively`)
}

func cmdStart() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitRuntime
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Endpoint != "" {
		shutdown, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
		if err != nil {
			logger.Warn("tracing init failed, continuing without", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutdownCtx)
			}()
		}
	}

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("database connection failed", "error", err)
		return exitRuntime
	}
	defer db.Close()

	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		if err := db.RunMigrations(dir); err != nil {
			logger.Error("migrations failed", "error", err)
			return exitRuntime
		}
	}

	recordRepo := postgres.NewWhaleRecordRepo(db)
	lookbackRepo := postgres.NewDedupLookbackRepo(db)
	deadLetterRepo := postgres.NewDeadLetterRepo(db)
	labelRepo := postgres.NewLabelRepo(db)

	labels := labelprovider.New(labelprovider.Config{
		CacheCapacity:    cfg.Label.CacheCapacity,
		TTL:              cfg.Label.TTL,
		NegativeCacheTTL: cfg.Label.NegativeCacheTTL,
		RemoteRatePerSec: cfg.Label.RemoteRateLimitPerSec,
		BloomExpected:    cfg.Label.BloomExpectedItems,
		BloomFPR:         cfg.Label.BloomFalsePositive,
	}, nil, labelRepo, logger)

	if path := os.Getenv("LABEL_OVERLAY_FILE"); path != "" {
		entries, err := labelprovider.LoadOverlayFile(path)
		if err != nil {
			logger.Error("label overlay load failed", "path", path, "error", err)
			return exitRuntime
		}
		labels.Overlay(entries)
		logger.Info("label overlay applied", "path", path, "entries", len(entries))
	}

	prices := priceresolver.New(priceresolver.Config{StalenessBudget: cfg.Price.StalenessBudget}, nil, logger)

	stateDir := getenvDefault("STATE_DIR", "state")
	registry, err := whaleregistry.New(filepath.Join(stateDir, "whale_registry.json"), cfg.Sink.SnapshotInterval, logger)
	if err != nil {
		logger.Error("whale registry init failed", "error", err)
		return exitRuntime
	}

	engine := classify.NewEngine(nil, registry, nil, cfg.Classification, cfg.Pipeline.PhaseTimeout, logger)

	suppressor := dedup.New(dedup.Config{
		Match: dedup.MatchConfig{
			TimeWindow:          cfg.Dedup.TimeWindow,
			USDThreshold:        cfg.Dedup.USDThreshold,
			PercentageThreshold: cfg.Dedup.PercentageThreshold,
			SafeguardUSD:        cfg.Dedup.SafeguardUSD,
		},
		L1RingSize:      cfg.Dedup.L1RingSize,
		L2LookbackLimit: cfg.Dedup.L2LookbackLimit,
		ShardCount:      cfg.Dedup.ShardCount,
	}, lookbackRepo, logger)

	alerter := buildAlerter(logger)
	audit := sink.NewAuditWriter(os.Stdout)
	snk := sink.New(recordRepo, deadLetterRepo, alerter, sink.RetryPolicy{
		Base:        cfg.Sink.RetryBase,
		Factor:      cfg.Sink.RetryFactor,
		Cap:         cfg.Sink.RetryCap,
		MaxAttempts: cfg.Sink.RetryMaxAttempts,
	}, audit, logger)

	sources, err := buildSources(cfg, logger)
	if err != nil {
		logger.Error("source construction failed", "error", err)
		return exitRuntime
	}
	sup := supervisor.New(sources, alerter, logger)

	pipe := pipeline.New(cfg.Pipeline, sup, labels, prices, engine, suppressor, snk, lookbackRepo, registry, logger)

	if err := writePidFile(); err != nil {
		logger.Error("pid file write failed", "error", err)
		return exitRuntime
	}
	defer removePidFile()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipe.Run(gCtx) })
	g.Go(func() error {
		err := registry.Run(gCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error { return serveHTTP(gCtx, cfg.Server.HealthPort, pipe, sup, snk, registry, logger) })

	logger.Info("whalewatch started",
		"sources", len(sources), "health_port", cfg.Server.HealthPort)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("pipeline exited with error", "error", err)
		return exitRuntime
	}
	logger.Info("whalewatch stopped")
	return exitOK
}

// buildSources wires the configured ingestion sources. The alert feed
// rides the Redis Stream transport; the log-stream, receipt-poller and
// RPC-parser sources need external clients (explorer APIs, push
// transports) whose construction is deployment-specific, so they are
// attached by operators through their own wiring.
func buildSources(cfg *config.Config, logger *slog.Logger) ([]ingest.Source, error) {
	var sources []ingest.Source

	if cfg.Redis.URL != "" {
		stream, err := redispkg.NewStream(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis alert stream: %w", err)
		}
		sources = append(sources, ingest.NewAlertFeedSource("alertfeed", stream, cfg.Redis.AlertStreamName, logger))
	}

	if len(sources) == 0 {
		logger.Warn("no ingestion sources configured; pipeline will idle")
	}
	return sources, nil
}

func buildAlerter(logger *slog.Logger) alert.Alerter {
	var alerters []alert.Alerter
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		alerters = append(alerters, alert.NewSlackAlerter(url))
	}
	if url := os.Getenv("ALERT_WEBHOOK_URL"); url != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(url))
	}
	if len(alerters) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(5*time.Minute, logger, alerters...)
}

// statsPayload is what /stats serves and the stats subcommand prints.
type statsPayload struct {
	Pipeline  pipeline.Snapshot                  `json:"pipeline"`
	Sources   map[string]supervisor.SourceStatus `json:"sources"`
	Sentiment map[string]sink.TokenSentiment     `json:"sentiment"`
	Whales    int                                `json:"tracked_whales"`
}

func serveHTTP(ctx context.Context, port int, pipe *pipeline.Pipeline, sup *supervisor.Supervisor, snk *sink.Sink, registry *whaleregistry.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsPayload{
			Pipeline:  pipe.Stats().Snapshot(),
			Sources:   sup.Statuses(),
			Sentiment: snk.Sentiment().Snapshot(),
			Whales:    registry.Len(),
		})
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func cmdStop() int {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "no running pipeline found:", err)
		return exitRuntime
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, "corrupt pid file:", err)
		return exitRuntime
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintln(os.Stderr, "process lookup failed:", err)
		return exitRuntime
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintln(os.Stderr, "signal failed:", err)
		return exitRuntime
	}
	fmt.Printf("sent SIGTERM to pid %d\n", pid)
	return exitOK
}

func cmdStats() int {
	port := getenvDefault("HEALTH_PORT", "8080")
	resp, err := http.Get(fmt.Sprintf("http://localhost:%s/stats", port))
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats fetch failed (is the pipeline running?):", err)
		return exitRuntime
	}
	defer resp.Body.Close()

	var payload statsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		fmt.Fprintln(os.Stderr, "stats decode failed:", err)
		return exitRuntime
	}
	out, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Println(string(out))
	return exitOK
}

func cmdCleanupDuplicates(args []string) int {
	fs := flag.NewFlagSet("cleanup-duplicates", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report duplicates without modifying storage (default)")
	live := fs.Bool("live", false, "delete and merge duplicates in storage")
	sinceHours := fs.Int("since-hours", 24, "how far back to scan")
	limit := fs.Int("limit", 100_000, "maximum records to scan")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *dryRun && *live {
		fmt.Fprintln(os.Stderr, "--dry-run and --live are mutually exclusive")
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitRuntime
	}
	logger := newLogger(cfg.Log.Level)

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "database connection failed:", err)
		return exitRuntime
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := dedup.Cleanup(ctx,
		dedup.MatchConfig{
			TimeWindow:          cfg.Dedup.TimeWindow,
			USDThreshold:        cfg.Dedup.USDThreshold,
			PercentageThreshold: cfg.Dedup.PercentageThreshold,
			SafeguardUSD:        cfg.Dedup.SafeguardUSD,
		},
		postgres.NewWhaleRecordRepo(db),
		postgres.NewDedupLookbackRepo(db),
		time.Now().Add(-time.Duration(*sinceHours)*time.Hour),
		*limit,
		!*live,
		logger,
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cleanup failed:", err)
		return exitRuntime
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	return exitOK
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func pidFilePath() string {
	return getenvDefault("PID_FILE", filepath.Join(os.TempDir(), "whalewatch.pid"))
}

func writePidFile() error {
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePidFile() {
	_ = os.Remove(pidFilePath())
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
