package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"TanshinScanner/internal/app"
	"TanshinScanner/internal/config"
	"TanshinScanner/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tanshinscanner",
	Short: "Browse disclosed earnings filings and summarize them on demand",
	Long: `TanshinScanner reads the TDnet disclosure index, screens filings by
issuer, category, date and keyword, and on explicit request runs an AI
extraction of one filing's PDF. Extractions are cached durably per
(filing, model version) and never recomputed.

Commands:
  list       Fetch the index and print the screened catalog
  summarize  Ensure the AI summary for one filing
  watch      Keep refreshing the catalog and print new filings
  cache      Inspect or evict cached summaries`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default from TANSHIN_SCANNER_CONFIG)")
}

func initConfig() {
	if cfgFile != "" {
		cfg = config.LoadFile(cfgFile)
	} else {
		cfg = config.Load()
	}
	logger = logging.New(cfg.Logging.Level)
}

// newApp builds the wired application for a command run. Callers must
// Close it.
func newApp() (*app.Application, error) {
	return app.New(cfg, logger)
}
