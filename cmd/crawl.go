package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brlegis/normcrawler/internal/api"
	"github.com/brlegis/normcrawler/internal/clock/system"
	"github.com/brlegis/normcrawler/internal/config"
	"github.com/brlegis/normcrawler/internal/crawl"
	pubsubevents "github.com/brlegis/normcrawler/internal/events/pubsub"
	"github.com/brlegis/normcrawler/internal/extract"
	fetchcolly "github.com/brlegis/normcrawler/internal/fetch/colly"
	hashsha256 "github.com/brlegis/normcrawler/internal/hash/sha256"
	idgen "github.com/brlegis/normcrawler/internal/id/uuid"
	indexmemory "github.com/brlegis/normcrawler/internal/index/memory"
	indexpostgres "github.com/brlegis/normcrawler/internal/index/postgres"
	indexsqlite "github.com/brlegis/normcrawler/internal/index/sqlite"
	"github.com/brlegis/normcrawler/internal/logging"
	"github.com/brlegis/normcrawler/internal/norm"
	snapshotgcs "github.com/brlegis/normcrawler/internal/snapshot/gcs"
	snapshotlocal "github.com/brlegis/normcrawler/internal/snapshot/local"
	"github.com/brlegis/normcrawler/internal/state"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one incremental update pass over the configured corpus slice",
		Long: `Runs one incremental update pass: per configured (type, year) pair the
crawler refreshes the highest known norm number, fetches numbers that appeared
since the last run, and revalidates the trailing recheck window. The pass
stops cleanly when the request budget is exhausted and persists its progress
either way.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID, err := idgen.New().NewID()
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", runID))

	clk := system.New()
	budget := crawl.NewBudget(int(cfg.Budget.MaxRequests))

	fetcher := fetchcolly.New(fetchcolly.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		RequestTimeout: cfg.FetchTimeout(),
		MaxConns:       cfg.Crawl.Concurrency,
	}, logger)
	client := crawl.NewClient(fetcher, budget, crawl.ClientConfig{
		MaxRetries:        cfg.Fetch.MaxRetries,
		InitialBackoff:    time.Duration(cfg.Fetch.BackoffInitialMs) * time.Millisecond,
		MaxBackoff:        time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	}, logger)

	extractor := extract.New()
	oracle := crawl.NewOracle(client, extractor, norm.DefaultBaseURL, logger)
	discovery := buildDiscovery(cfg, oracle, budget, logger)

	index, closeIndex, err := buildIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	snapshots, err := buildSnapshots(ctx, cfg)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	stateStore := state.Load(cfg.State.Path, logger)

	variants, err := norm.ParseVariants(cfg.Crawl.Variants)
	if err != nil {
		return err
	}
	yearTo := cfg.Crawl.YearTo
	if yearTo == 0 {
		yearTo = clk.Now().Year()
	}
	years := make([]int, 0, yearTo-cfg.Crawl.YearFrom+1)
	for y := cfg.Crawl.YearFrom; y <= yearTo; y++ {
		years = append(years, y)
	}

	docFetcher := crawl.NewDocumentFetcher(client, extractor, index,
		hashsha256.New(), clk, snapshots, norm.DefaultBaseURL, logger)

	planner := crawl.NewPlanner(crawl.PlanConfig{
		Types:                cfg.Crawl.Types,
		Years:                years,
		Variants:             variants,
		RecheckWindow:        cfg.Crawl.RecheckWindow,
		ProbeRefreshInterval: cfg.ProbeRefreshInterval(),
		Lookback:             cfg.Crawl.Lookback,
		Concurrency:          cfg.Crawl.Concurrency,
		EventTopic:           cfg.Events.Topic,
	}, budget, stateStore, index, docFetcher, discovery, publisher, clk, logger)

	stopMetrics := startMetricsServer(cfg, planner, stateStore, logger)
	defer stopMetrics()

	counters, err := planner.Run(ctx)
	logger.Info("run finished",
		zap.Int("created", counters.Created),
		zap.Int("updated", counters.Updated),
		zap.Int("skipped", counters.Skipped),
		zap.Int("probes", counters.Probes),
		zap.Int("requests_used", counters.RequestsUsed),
		zap.Int("budget_max", budget.Max()),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	return nil
}

func buildDiscovery(cfg config.Config, oracle *crawl.Oracle, budget *crawl.Budget, logger *zap.Logger) crawl.Discovery {
	if cfg.Discovery.Strategy == "scan" {
		return crawl.NewGapScanProber(oracle, budget, cfg.Discovery.Ceiling, cfg.Discovery.GapLimit, logger)
	}
	return crawl.NewBinaryProber(oracle, budget, cfg.Discovery.Ceiling, logger)
}

func buildIndex(ctx context.Context, cfg config.Config) (crawl.Index, func(), error) {
	switch cfg.Index.Backend {
	case "sqlite":
		idx, err := indexsqlite.Open(cfg.Index.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite index: %w", err)
		}
		return idx, func() { _ = idx.Close() }, nil
	case "postgres":
		idx, err := indexpostgres.New(ctx, indexpostgres.Config{DSN: cfg.Index.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres index: %w", err)
		}
		return idx, idx.Close, nil
	default:
		return indexmemory.New(), func() {}, nil
	}
}

func buildSnapshots(ctx context.Context, cfg config.Config) (crawl.SnapshotStore, error) {
	if !cfg.Snapshots.Enabled {
		return nil, nil
	}
	if cfg.Snapshots.Backend == "gcs" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return snapshotgcs.New(client, snapshotgcs.Config{Bucket: cfg.Snapshots.Bucket})
	}
	store, err := snapshotlocal.New(snapshotlocal.Config{BaseDir: cfg.Snapshots.Dir})
	if err != nil {
		return nil, fmt.Errorf("init snapshot dir: %w", err)
	}
	return store, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (crawl.Publisher, func(), error) {
	if !cfg.Events.Enabled {
		return nil, func() {}, nil
	}
	pub, err := pubsubevents.New(ctx, cfg.Events.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = pub.Close() }, nil
}

type runStatus struct {
	planner *crawl.Planner
	state   *state.Store
}

func (r runStatus) Counters() crawl.Counters                      { return r.planner.Counters() }
func (r runStatus) Pairs() map[int]map[string]crawl.TypeYearState { return r.state.Pairs() }

func startMetricsServer(cfg config.Config, planner *crawl.Planner, st *state.Store, logger *zap.Logger) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           api.NewServer(runStatus{planner: planner, state: st}, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
}
