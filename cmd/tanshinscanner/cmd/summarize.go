package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"TanshinScanner/internal/domain"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [filing-id]",
	Short: "Ensure the AI summary for one filing",
	Long: `Return the structured summary for a filing, invoking the AI summarizer
only when no cached record exists for the current model version.

Example:
  tanshinscanner summarize 1301-20240501-01`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	if _, err := application.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}

	rec, err := application.Summarize(ctx, args[0])

	// A cache write failure still carries the computed record; show it
	// with a warning instead of discarding the result.
	var cacheErr *domain.CacheError
	if err != nil && errors.As(err, &cacheErr) && rec != nil {
		fmt.Printf("warning: %v\n\n", cacheErr)
		err = nil
	}
	if err != nil {
		return err
	}

	printSummary(rec)
	return nil
}

func printSummary(rec *domain.SummaryRecord) {
	fmt.Printf("Filing:    %s\n", rec.FilingID)
	fmt.Printf("Model:     %s\n", rec.ModelVersion)
	fmt.Printf("Extracted: %s\n\n", rec.ExtractedAt.In(jstDisplay).Format("2006-01-02 15:04:05"))
	fmt.Println(rec.SummaryText)

	if len(rec.Fields) > 0 && string(rec.Fields) != "{}" {
		var pretty map[string]any
		if err := json.Unmarshal(rec.Fields, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Printf("\nMetrics:\n%s\n", out)
		}
	}
}
