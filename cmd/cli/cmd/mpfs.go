// Package cmd - mpfs and data commands (operator only)
package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
	"medicare-refprice/db/ingestion"
	"medicare-refprice/internal/config"
	"medicare-refprice/internal/logging"
)

var mpfsCmd = &cobra.Command{
	Use:   "mpfs",
	Short: "MPFS raw feed tools",
}

var mpfsParseCmd = &cobra.Command{
	Use:   "parse <feed.csv[.gz]>",
	Short: "Parse a raw MPFS locality feed",
	Long: `Parse the fixed-position MPFS locality feed and report what was read.

With --out the parsed rows are written as an mpfs.csv the memory store
loads directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runMPFSParse,
}

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Reference data checks (operator only)",
}

var dataValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configured data directory and report governance results",
	RunE:  runDataValidate,
}

var (
	mpfsOut  string
	dataDir  string
	dataFeed string
)

func init() {
	rootCmd.AddCommand(mpfsCmd)
	mpfsCmd.AddCommand(mpfsParseCmd)
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataValidateCmd)

	mpfsParseCmd.Flags().StringVarP(&mpfsOut, "out", "o", "", "write parsed rows as CSV to this path")

	dataValidateCmd.Flags().StringVar(&dataDir, "dir", "", "data directory (default from config)")
	dataValidateCmd.Flags().StringVar(&dataFeed, "mpfs-feed", "", "raw MPFS feed to merge (default from config)")
}

func runMPFSParse(cmd *cobra.Command, args []string) error {
	parser := ingestion.NewFeedParser(refdata.MustLoadGeography(), logging.Named("mpfs"))
	rows, stats, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Lines read:        %d\n", stats.Read)
	fmt.Fprintf(w, "Rows parsed:       %d\n", stats.Parsed)
	fmt.Fprintf(w, "Malformed lines:   %d\n", stats.Malformed)
	fmt.Fprintf(w, "Unknown carriers:  %d\n", stats.UnknownCarriers)

	if mpfsOut == "" {
		return nil
	}
	if err := writeMPFSCSV(mpfsOut, rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %d rows to %s\n", len(rows), mpfsOut)
	return nil
}

func writeMPFSCSV(path string, rows []types.MPFSRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Write([]string{"year", "hcpcs", "modifier", "carrier", "locality", "state_abbr", "nonfac_fee", "fac_fee", "status", "pctc_indicator"})
	for _, r := range rows {
		cw.Write([]string{
			strconv.Itoa(r.Year), r.HCPCS, r.Modifier, r.Carrier, r.Locality, r.State,
			csvAmount(r.NonfacFee), csvAmount(r.FacFee), r.Status, r.PCTCIndicator,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

func csvAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func loadConfiguredDir() (refdata.Tables, *ingestion.ValidationResult, error) {
	cfg := config.Get()
	dir := cfg.Store.DataDir
	if dataDir != "" {
		dir = dataDir
	}
	feed := cfg.Store.MPFSFeed
	if dataFeed != "" {
		feed = dataFeed
	}
	loader := ingestion.NewLoader(refdata.MustLoadGeography(), logging.Named("ingestion"))
	return loader.LoadDir(dir, feed)
}

func printValidation(cmd *cobra.Command, result *ingestion.ValidationResult) {
	w := cmd.OutOrStdout()
	for _, name := range []string{"mpfs", "opps", "dmepos", "dmepen", "crosswalk", "gpci"} {
		tv, ok := result.Tables[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-10s loaded=%-8d rejected=%-6d codes=%-7d years=%v\n",
			name, tv.Loaded, tv.Rejected, tv.DistinctCodes, tv.Years)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "rejected: %s\n", e)
	}
	fmt.Fprintf(w, "checksum: %s\n", result.Checksum)
}

func runDataValidate(cmd *cobra.Command, args []string) error {
	_, result, err := loadConfiguredDir()
	if err != nil {
		return err
	}
	printValidation(cmd, result)
	if !result.IsValid {
		return fmt.Errorf("reference data failed governance")
	}
	return nil
}
