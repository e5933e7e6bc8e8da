// Command stmtconv converts bank statements (PDF or pasted CSV) into
// XLSX, CSV or JSON transaction tables.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statement-extractor/internal/common"
)

var (
	version = "dev"

	cfgFile string
	verbose bool
	ledger  string
)

var rootCmd = &cobra.Command{
	Use:           "stmtconv",
	Short:         "Extract transaction tables from bank statements",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `stmtconv reads bank statement PDFs, falling back to OCR for scanned
pages, and writes the transactions as XLSX, CSV or JSON.

Examples:
  stmtconv extract april.pdf -o april.xlsx
  stmtconv extract scan.pdf --ocr --lang eng --format json
  stmtconv manual pasted.csv -o out.xlsx
  stmtconv batch ./statements --format csv --jobs 4`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config overlay (same keys as CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
	rootCmd.PersistentFlags().StringVar(&ledger, "ledger", "", "record runs in this database (sqlite path or postgres:// DSN)")

	rootCmd.AddCommand(extractCmd, manualCmd, batchCmd, versionCmd)
}

// loadConfig reads env/.env, the --config overlay, and validates.
func loadConfig() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfgFile != "" {
		if err := cfg.LoadFile(cfgFile); err != nil {
			return nil, nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	} else if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
