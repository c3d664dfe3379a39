package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brlegis/normcrawler/internal/config"
	"github.com/brlegis/normcrawler/internal/crawl"
	"github.com/brlegis/normcrawler/internal/extract"
	fetchcolly "github.com/brlegis/normcrawler/internal/fetch/colly"
	"github.com/brlegis/normcrawler/internal/logging"
	"github.com/brlegis/normcrawler/internal/norm"
)

func newProbeCmd() *cobra.Command {
	var (
		typeCode string
		year     int
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Finds the highest published number for one norm type and year",
		Long: `Probes the portal for the highest existing norm number of one (type, year)
pair without touching the index or state file. Useful for verifying discovery
behavior and for seeding expectations before a full crawl.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbeCommand(cmd, typeCode, year)
		},
	}
	cmd.Flags().StringVar(&typeCode, "type", "LEI", "norm type code")
	cmd.Flags().IntVar(&year, "year", 0, "publication year (required)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func runProbeCommand(cmd *cobra.Command, typeCode string, year int) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if !norm.ValidType(typeCode) {
		return fmt.Errorf("unknown type code %q", typeCode)
	}
	if year < norm.StartYear {
		return fmt.Errorf("year must be >= %d", norm.StartYear)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	budget := crawl.NewBudget(int(cfg.Budget.MaxRequests))
	fetcher := fetchcolly.New(fetchcolly.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		RequestTimeout: cfg.FetchTimeout(),
		MaxConns:       1,
	}, logger)
	client := crawl.NewClient(fetcher, budget, crawl.ClientConfig{
		MaxRetries:        cfg.Fetch.MaxRetries,
		InitialBackoff:    time.Duration(cfg.Fetch.BackoffInitialMs) * time.Millisecond,
		MaxBackoff:        time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	}, logger)
	oracle := crawl.NewOracle(client, extract.New(), norm.DefaultBaseURL, logger)
	discovery := buildDiscovery(cfg, oracle, budget, logger)

	last := discovery.LastNumber(ctx, typeCode, year, 0)
	fmt.Printf("%s %d: last known number %d (%d requests)\n", typeCode, year, last, budget.Used())
	return nil
}
