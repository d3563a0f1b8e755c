// Package output renders resolver results for humans and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"medicare-refprice/core/types"
)

// Format represents output format type
type Format string

const (
	// FormatText is a human-readable terminal table
	FormatText Format = "text"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatMarkdown is a markdown report
	FormatMarkdown Format = "markdown"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render writes a full resolve result
	Render(w io.Writer, out *types.ResolverOutput) error

	// RenderGeo writes a geography resolution on its own
	RenderGeo(w io.Writer, g *types.GeoResolution) error
}

// Options tune the human-readable formatters
type Options struct {
	// ShowNotes prints the geography audit trail
	ShowNotes bool
}

// Registry manages formatter registration
type Registry struct {
	formatters map[Format]Formatter
}

// NewRegistry returns a registry with every built-in formatter
func NewRegistry(opts Options) *Registry {
	r := &Registry{formatters: make(map[Format]Formatter)}
	r.Register(jsonFormatter{})
	r.Register(textFormatter{opts: opts})
	r.Register(markdownFormatter{})
	return r
}

// Register adds or replaces a formatter
func (r *Registry) Register(f Formatter) {
	r.formatters[f.Format()] = f
}

// Get returns the formatter for a format name
func (r *Registry) Get(format string) (Formatter, error) {
	f, ok := r.formatters[Format(strings.ToLower(format))]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (use %s)", format, strings.Join(r.names(), ", "))
	}
	return f, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.formatters))
	for f := range r.formatters {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

type jsonFormatter struct{}

func (jsonFormatter) Format() Format { return FormatJSON }

func (jsonFormatter) Render(w io.Writer, out *types.ResolverOutput) error {
	return writeIndented(w, out)
}

func (jsonFormatter) RenderGeo(w io.Writer, g *types.GeoResolution) error {
	return writeIndented(w, g)
}

func writeIndented(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type textFormatter struct {
	opts Options
}

func (textFormatter) Format() Format { return FormatText }

func (f textFormatter) Render(w io.Writer, out *types.ResolverOutput) error {
	f.RenderGeo(w, out.Geo)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tMOD\tSTATUS\tSOURCE\tPRICE\tBILLED\tMULTIPLE\tCONFIDENCE")
	for _, r := range out.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.HCPCS, r.Modifier, r.MatchStatus, r.ReferenceSource,
			Money(r.ReferencePrice), Money(r.BilledAmount), Multiple(r.MedicareMultiple), r.Confidence)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, r := range out.Results {
		fmt.Fprintf(w, "  %s: %s\n", r.HCPCS, r.Explanation)
	}

	s := out.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Priced %d of %d codes (%d not separately payable, %d missing)\n",
		s.TotalPriced, s.TotalCodes, s.TotalExistsNotPriced, s.TotalMissing)
	fmt.Fprintf(w, "Total reference price: %s", Money(s.TotalReferencePrice))
	if s.TotalBilledPriced.Valid {
		fmt.Fprintf(w, " (billed %s)", Money(s.TotalBilledPriced))
	}
	fmt.Fprintf(w, "\nPrimary source: %s\n", s.PrimarySource)
	if out.Metadata.DeadlineExceeded {
		fmt.Fprintln(w, "Warning: request deadline exceeded; unfinished codes are marked missing")
	}
	return nil
}

func (f textFormatter) RenderGeo(w io.Writer, g *types.GeoResolution) error {
	if g == nil {
		return nil
	}
	fmt.Fprintln(w, g.UserMessage)
	fmt.Fprintf(w, "Method: %s (%s confidence)  GPCI work=%.3f pe=%.3f mp=%.3f\n",
		g.Method, g.Confidence, g.GPCI.Work, g.GPCI.PE, g.GPCI.MP)
	if f.opts.ShowNotes {
		for _, n := range g.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	return nil
}

type markdownFormatter struct{}

func (markdownFormatter) Format() Format { return FormatMarkdown }

func (m markdownFormatter) Render(w io.Writer, out *types.ResolverOutput) error {
	fmt.Fprintln(w, "## Medicare reference prices")
	fmt.Fprintln(w)
	m.RenderGeo(w, out.Geo)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Code | Modifier | Status | Source | Reference | Billed | Multiple |")
	fmt.Fprintln(w, "|---|---|---|---|---:|---:|---:|")
	for _, r := range out.Results {
		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s |\n",
			r.HCPCS, r.Modifier, r.MatchStatus, r.ReferenceSource,
			Money(r.ReferencePrice), Money(r.BilledAmount), Multiple(r.MedicareMultiple))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "**Total reference price:** %s across %d of %d codes\n",
		Money(out.Summary.TotalReferencePrice), out.Summary.TotalPriced, out.Summary.TotalCodes)
	return nil
}

func (markdownFormatter) RenderGeo(w io.Writer, g *types.GeoResolution) error {
	if g == nil {
		return nil
	}
	fmt.Fprintf(w, "> %s  \n> Method `%s`, %s confidence\n", g.UserMessage, g.Method, g.Confidence)
	return nil
}

// Money renders an optional amount, "-" when absent
func Money(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return "$" + d.Decimal.StringFixed(2)
}

// Multiple renders a billed-to-reference ratio
func Multiple(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2) + "x"
}
