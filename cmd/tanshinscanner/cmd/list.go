package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"TanshinScanner/internal/domain"
	"TanshinScanner/internal/screen"
)

var (
	listIssuers    []string
	listCategories []string
	listFrom       string
	listTo         string
	listKeyword    string
)

var jstDisplay = time.FixedZone("JST", 9*60*60)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch the filings index and print the screened catalog",
	Long: `Fetch the current filings index, merge it into the catalog, apply the
given screening criteria and print the result.

Examples:
  # All recent filings
  tanshinscanner list

  # One issuer's earnings filings
  tanshinscanner list --issuer 1301 --category earnings

  # Keyword screen over a date window
  tanshinscanner list --keyword 決算短信 --from 2024-05-01 --to 2024-05-10`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringSliceVar(&listIssuers, "issuer", nil, "issuer code filter (repeatable)")
	listCmd.Flags().StringSliceVar(&listCategories, "category", nil, "category filter: earnings, revision, dividend, briefing, other")
	listCmd.Flags().StringVar(&listFrom, "from", "", "earliest disclosure date (YYYY-MM-DD, JST)")
	listCmd.Flags().StringVar(&listTo, "to", "", "latest disclosure date (YYYY-MM-DD, JST)")
	listCmd.Flags().StringVar(&listKeyword, "keyword", "", "case-insensitive keyword over title and issuer name")
}

func runList(cmd *cobra.Command, args []string) error {
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

	criteria, err := buildCriteria(listIssuers, listCategories, listFrom, listTo, listKeyword)
	if err != nil {
		return err
	}

	filings := application.Screen(criteria)
	if len(filings) == 0 {
		fmt.Println("No filings match.")
		return nil
	}

	printFilings(filings)
	return nil
}

func buildCriteria(issuers, categories []string, from, to, keyword string) (screen.Criteria, error) {
	c := screen.Criteria{
		IssuerCodes: issuers,
		Keyword:     keyword,
	}

	for _, raw := range categories {
		cat := domain.Category(raw)
		switch cat {
		case domain.CategoryEarnings, domain.CategoryRevision, domain.CategoryDividend,
			domain.CategoryBriefing, domain.CategoryOther:
			c.Categories = append(c.Categories, cat)
		default:
			return screen.Criteria{}, fmt.Errorf("unknown category %q", raw)
		}
	}

	if from != "" || to != "" {
		r := &screen.DateRange{}
		if from != "" {
			t, err := time.ParseInLocation("2006-01-02", from, jstDisplay)
			if err != nil {
				return screen.Criteria{}, fmt.Errorf("invalid --from date: %w", err)
			}
			r.Start = t
		}
		if to != "" {
			t, err := time.ParseInLocation("2006-01-02", to, jstDisplay)
			if err != nil {
				return screen.Criteria{}, fmt.Errorf("invalid --to date: %w", err)
			}
			// inclusive through the end of the day
			r.End = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		c.DateRange = r
	}

	return c, nil
}

func printFilings(filings []domain.FilingRecord) {
	fmt.Printf("%-18s %-17s %-6s %-10s %s\n", "FILING", "DISCLOSED (JST)", "CODE", "CATEGORY", "TITLE")
	for _, f := range filings {
		fmt.Printf("%-18s %-17s %-6s %-10s %s\n",
			f.FilingID,
			f.DisclosedAt.In(jstDisplay).Format("2006-01-02 15:04"),
			f.IssuerCode,
			f.Category,
			f.Title)
	}
	fmt.Printf("\n%d filings.\n", len(filings))
}
