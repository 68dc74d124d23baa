package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var evictModel string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or evict cached summaries",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Enumerate cached summary records",
	RunE:  runCacheList,
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict [filing-id]",
	Short: "Remove one cached summary",
	Long: `Remove the cached summary for a filing, forcing a fresh AI extraction
on the next summarize. Defaults to the configured model version; pass
--model to evict a record from an older configuration.`,
	Args: cobra.ExactArgs(1),
	RunE: runCacheEvict,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every cached summary",
	Long: `Remove all cached summaries across every model version. Each filing
will be re-extracted on its next summarize. Requires --yes.`,
	RunE: runCachePurge,
}

var purgeConfirmed bool

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
	cacheCmd.AddCommand(cachePurgeCmd)

	cacheEvictCmd.Flags().StringVar(&evictModel, "model", "", "model version of the record to evict")
	cachePurgeCmd.Flags().BoolVar(&purgeConfirmed, "yes", false, "confirm removing all cached summaries")
}

func runCacheList(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	records, err := application.CachedSummaries(ctx)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("Cache is empty.")
		return nil
	}

	fmt.Printf("%-18s %-20s %s\n", "FILING", "MODEL", "EXTRACTED (JST)")
	for _, rec := range records {
		fmt.Printf("%-18s %-20s %s\n",
			rec.FilingID,
			rec.ModelVersion,
			rec.ExtractedAt.In(jstDisplay).Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("\n%d records.\n", len(records))
	return nil
}

func runCacheEvict(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	model := evictModel
	if model == "" {
		model = application.ModelVersion()
	}

	if err := application.Evict(ctx, args[0], model); err != nil {
		return err
	}

	fmt.Printf("Evicted %s@%s.\n", args[0], model)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	if !purgeConfirmed {
		return fmt.Errorf("refusing to purge without --yes")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	records, err := application.CachedSummaries(ctx)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := application.Evict(ctx, rec.FilingID, rec.ModelVersion); err != nil {
			return err
		}
	}

	fmt.Printf("Purged %d records.\n", len(records))
	return nil
}
