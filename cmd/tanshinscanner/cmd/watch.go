package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	watchIssuers    []string
	watchCategories []string
	watchKeyword    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep refreshing the catalog and print newly disclosed filings",
	Long: `Refresh the filings index on the configured interval and print filings
as they appear, filtered by the given criteria. Stop with Ctrl-C.

Example:
  tanshinscanner watch --category earnings`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSliceVar(&watchIssuers, "issuer", nil, "issuer code filter (repeatable)")
	watchCmd.Flags().StringSliceVar(&watchCategories, "category", nil, "category filter")
	watchCmd.Flags().StringVar(&watchKeyword, "keyword", "", "case-insensitive keyword filter")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	criteria, err := buildCriteria(watchIssuers, watchCategories, "", "", watchKeyword)
	if err != nil {
		return err
	}

	if err := application.StartRefresher(ctx); err != nil {
		return fmt.Errorf("start refresher: %w", err)
	}
	defer application.StopRefresher(context.Background())

	seen := map[string]struct{}{}
	printNew := func() {
		for _, f := range application.Screen(criteria) {
			if _, ok := seen[f.FilingID]; ok {
				continue
			}
			seen[f.FilingID] = struct{}{}
			fmt.Printf("%s  %-18s %-6s %s\n",
				f.DisclosedAt.In(jstDisplay).Format("15:04"),
				f.FilingID, f.IssuerCode, f.Title)
		}
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	fmt.Println("Watching for new filings (Ctrl-C to stop)...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			printNew()
		}
	}
}
