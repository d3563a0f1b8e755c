// Package cmd - resolve and geo commands
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"medicare-refprice/core/output"
	"medicare-refprice/core/types"
	"medicare-refprice/internal/app"
	"medicare-refprice/internal/config"
	"medicare-refprice/internal/logging"
)

var (
	resolveSetting string
	resolveZip     string
	resolveState   string
	resolveYear    int
	resolveInput   string
	outputFormat   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [CODE[:MODIFIER][=BILLED]...]",
	Short: "Resolve reference prices for billed codes",
	Long: `Price each code against the Medicare fee schedules.

Codes are given as arguments, optionally with a modifier and the billed
amount, or as a full JSON request with --input.

Examples:
  refprice resolve --setting office --zip 94103 99213=250.00 E0100
  refprice resolve --setting facility --state TX 99284 36415:QW
  refprice resolve --input request.json --format json`,
	RunE: runResolve,
}

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Resolve a ZIP and/or state to Medicare locality GPCIs",
	RunE:  runGeo,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(geoCmd)

	resolveCmd.Flags().StringVarP(&resolveSetting, "setting", "s", "office", "care setting (office, facility)")
	resolveCmd.Flags().StringVar(&resolveZip, "zip", "", "patient ZIP code")
	resolveCmd.Flags().StringVar(&resolveState, "state", "", "patient state abbreviation")
	resolveCmd.Flags().IntVar(&resolveYear, "year", 0, "pin every schedule to this year (default latest loaded)")
	resolveCmd.Flags().StringVarP(&resolveInput, "input", "i", "", "JSON request file ('-' for stdin)")
	resolveCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format (text, json, markdown)")

	geoCmd.Flags().StringVar(&resolveZip, "zip", "", "patient ZIP code")
	geoCmd.Flags().StringVar(&resolveState, "state", "", "patient state abbreviation")
	geoCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format (text, json, markdown)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.Build(ctx, config.Get(), logging.Named("app"))
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.Engine.ResolveReferences(ctx, req)
	if err != nil {
		return err
	}

	return f.Render(cmd.OutOrStdout(), out)
}

func buildRequest(stdin io.Reader, args []string) (types.ResolveRequest, error) {
	var req types.ResolveRequest

	if resolveInput != "" {
		r := stdin
		if resolveInput != "-" {
			f, err := os.Open(resolveInput)
			if err != nil {
				return req, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request file: %w", err)
		}
		return req, nil
	}

	if len(args) == 0 {
		return req, fmt.Errorf("at least one code is required")
	}
	for _, arg := range args {
		code, err := parseCodeArg(arg)
		if err != nil {
			return req, err
		}
		req.Codes = append(req.Codes, code)
	}
	req.CareSetting = types.CareSetting(strings.ToLower(resolveSetting))
	req.Zip = resolveZip
	req.State = resolveState
	if resolveYear > 0 {
		y := resolveYear
		req.Year = &y
	}
	return req, nil
}

// parseCodeArg reads CODE[:MODIFIER][=BILLED]
func parseCodeArg(arg string) (types.CodeInput, error) {
	var in types.CodeInput

	key, billed, hasBilled := strings.Cut(arg, "=")
	if hasBilled {
		d, err := decimal.NewFromString(strings.TrimPrefix(billed, "$"))
		if err != nil {
			return in, fmt.Errorf("invalid billed amount in %q", arg)
		}
		in.BilledAmount = &d
	}
	code, mod, _ := strings.Cut(key, ":")
	in.HCPCS = strings.ToUpper(strings.TrimSpace(code))
	in.Modifier = strings.ToUpper(strings.TrimSpace(mod))
	if in.HCPCS == "" {
		return in, fmt.Errorf("empty code in %q", arg)
	}
	return in, nil
}

func formatter() (output.Formatter, error) {
	return output.NewRegistry(output.Options{ShowNotes: verbose}).Get(outputFormat)
}

func runGeo(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := app.Build(ctx, config.Get(), logging.Named("app"))
	if err != nil {
		return err
	}
	defer a.Close()

	g := a.Engine.ResolveGeo(ctx, resolveZip, resolveState)
	return f.RenderGeo(cmd.OutOrStdout(), g)
}
