package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brlegis/normcrawler/internal/config"
	"github.com/brlegis/normcrawler/internal/logging"
	"github.com/brlegis/normcrawler/internal/state"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Prints the crawl frontier recorded in the state file",
		RunE:  runStateCommand,
	}
}

func runStateCommand(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	pairs := state.Load(cfg.State.Path, logger).Pairs()
	if len(pairs) == 0 {
		fmt.Printf("no state recorded in %s\n", cfg.State.Path)
		return nil
	}

	years := make([]int, 0, len(pairs))
	for y := range pairs {
		years = append(years, y)
	}
	sort.Ints(years)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "YEAR\tTYPE\tLAST NUM\tLAST PROBE\tLAST CHECK")
	for _, y := range years {
		types := make([]string, 0, len(pairs[y]))
		for tc := range pairs[y] {
			types = append(types, tc)
		}
		sort.Strings(types)
		for _, tc := range types {
			st := pairs[y][tc]
			probe, check := "-", "-"
			if st.LastProbeAt != nil {
				probe = st.LastProbeAt.Format("2006-01-02 15:04")
			}
			if st.LastCheckedAt != nil {
				check = st.LastCheckedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", y, tc, st.LastNumKnown, probe, check)
		}
	}
	return w.Flush()
}
