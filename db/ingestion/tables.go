package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
	apperrors "medicare-refprice/internal/errors"
)

// File names the loader looks for in a data directory
const (
	FileMPFS      = "mpfs.csv"
	FileOPPS      = "opps.csv"
	FileDMEPOS    = "dmepos.csv"
	FileDMEPEN    = "dmepen.csv"
	FileCrosswalk = "zip_locality.csv"
	FileGPCI      = "gpci.csv"
)

// Loader reads the header-based reference CSVs into refdata.Tables
type Loader struct {
	feed      *FeedParser
	validator *Validator
	logger    *zap.Logger
}

// NewLoader creates a loader; geography maps raw feed carriers to states
func NewLoader(geography *refdata.Geography, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		feed:      NewFeedParser(geography, logger),
		validator: NewValidator(logger),
		logger:    logger,
	}
}

// Validator returns the governance validator applied to loaded tables
func (l *Loader) Validator() *Validator {
	return l.validator
}

// LoadDir reads every known file in dir, appends the raw MPFS feed when
// feedPath is set, and runs governance. Missing files load as empty tables.
func (l *Loader) LoadDir(dir, feedPath string) (refdata.Tables, *ValidationResult, error) {
	var t refdata.Tables
	var err error

	if t.MPFS, err = loadFile(l, dir, FileMPFS, mpfsColumns, parseMPFSRow); err != nil {
		return t, nil, err
	}
	if t.OPPS, err = loadFile(l, dir, FileOPPS, oppsColumns, parseOPPSRow); err != nil {
		return t, nil, err
	}
	for _, ds := range []types.Dataset{types.DatasetDMEPOS, types.DatasetDMEPEN} {
		file := FileDMEPOS
		if ds == types.DatasetDMEPEN {
			file = FileDMEPEN
		}
		rows, err := loadFile(l, dir, file, dmeColumns, dmeParser(ds))
		if err != nil {
			return t, nil, err
		}
		t.DME = append(t.DME, rows...)
	}
	if t.Crosswalk, err = loadFile(l, dir, FileCrosswalk, crosswalkColumns, parseCrosswalkRow); err != nil {
		return t, nil, err
	}
	if t.GPCI, err = loadFile(l, dir, FileGPCI, gpciColumns, parseGPCIRow); err != nil {
		return t, nil, err
	}

	if feedPath != "" {
		rows, _, err := l.feed.ParseFile(feedPath)
		if err != nil {
			return t, nil, err
		}
		t.MPFS = append(t.MPFS, rows...)
	}

	t, result := l.validator.Validate(t)
	t.StateAverages = refdata.ComputeStateAverages(t.GPCI)
	return t, result, nil
}

// ParseFeed exposes the raw MPFS feed parser
func (l *Loader) ParseFeed(path string) ([]types.MPFSRow, FeedStats, error) {
	return l.feed.ParseFile(path)
}

var (
	mpfsColumns      = []string{"year", "hcpcs"}
	oppsColumns      = []string{"year", "hcpcs", "status_indicator"}
	dmeColumns       = []string{"year", "hcpcs"}
	crosswalkColumns = []string{"zip5", "locality_num", "state_abbr"}
	gpciColumns      = []string{"locality_num", "work_gpci", "pe_gpci", "mp_gpci"}
)

// csvRow gives named access to one record
type csvRow struct {
	index map[string]int
	rec   []string
}

func (r csvRow) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r csvRow) upper(col string) string {
	return strings.ToUpper(r.str(col))
}

func (r csvRow) year() (int, error) {
	y, err := strconv.Atoi(r.str("year"))
	if err != nil || y <= 0 {
		return 0, fmt.Errorf("bad year %q", r.str("year"))
	}
	return y, nil
}

// amount parses an optional money or RVU column; blank and NaN are absent
func (r csvRow) amount(col string) (decimal.NullDecimal, error) {
	s := r.str(col)
	if s == "" || strings.EqualFold(s, "NaN") || strings.EqualFold(s, "NA") {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%s: %w", col, err)
	}
	return types.Amount(d), nil
}

func (r csvRow) float(col string) (float64, error) {
	f, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return f, nil
}

func loadFile[T any](l *Loader, dir, name string, required []string, parse func(csvRow) (T, error)) ([]T, error) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("reference file not present, table left empty", zap.String("file", name))
			return nil, nil
		}
		return nil, apperrors.Parsing("opening "+path, err)
	}
	defer f.Close()

	rows, skipped, err := readCSV(f, required, parse)
	if err != nil {
		return nil, apperrors.Parsing("reading "+path, err)
	}
	l.logger.Info("loaded reference file",
		zap.String("file", name),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped),
	)
	return rows, nil
}

// readCSV parses a headed CSV. Rows that fail to parse are skipped and counted.
func readCSV[T any](r io.Reader, required []string, parse func(csvRow) (T, error)) ([]T, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, 0, fmt.Errorf("missing required column %q", col)
		}
	}

	var out []T
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, skipped, err
		}
		v, err := parse(csvRow{index: index, rec: rec})
		if err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped, nil
}

func parseMPFSRow(r csvRow) (types.MPFSRow, error) {
	year, err := r.year()
	if err != nil {
		return types.MPFSRow{}, err
	}
	row := types.MPFSRow{
		Year:          year,
		HCPCS:         r.upper("hcpcs"),
		Modifier:      r.upper("modifier"),
		QPStatus:      r.str("qp_status"),
		Carrier:       r.str("carrier"),
		Locality:      r.str("locality"),
		State:         r.upper("state_abbr"),
		Status:        r.upper("status"),
		PCTCIndicator: r.str("pctc_indicator"),
	}
	for _, c := range []struct {
		col string
		dst *decimal.NullDecimal
	}{
		{"work_rvu", &row.WorkRVU},
		{"nonfac_pe_rvu", &row.NonfacPERVU},
		{"fac_pe_rvu", &row.FacPERVU},
		{"mp_rvu", &row.MPRVU},
		{"nonfac_fee", &row.NonfacFee},
		{"fac_fee", &row.FacFee},
		{"conversion_factor", &row.ConversionFactor},
	} {
		if *c.dst, err = r.amount(c.col); err != nil {
			return types.MPFSRow{}, err
		}
	}
	return row, nil
}

func parseOPPSRow(r csvRow) (types.OPPSRow, error) {
	year, err := r.year()
	if err != nil {
		return types.OPPSRow{}, err
	}
	rate, err := r.amount("payment_rate")
	if err != nil {
		return types.OPPSRow{}, err
	}
	return types.OPPSRow{
		Year:            year,
		HCPCS:           r.upper("hcpcs"),
		APC:             r.str("apc"),
		StatusIndicator: r.upper("status_indicator"),
		PaymentRate:     rate,
		Description:     r.str("description"),
	}, nil
}

func dmeParser(table types.Dataset) func(csvRow) (types.DMERow, error) {
	return func(r csvRow) (types.DMERow, error) {
		year, err := r.year()
		if err != nil {
			return types.DMERow{}, err
		}
		row := types.DMERow{
			Table:    table,
			Year:     year,
			HCPCS:    r.upper("hcpcs"),
			Modifier: r.upper("modifier"),
			State:    r.upper("state_abbr"),
		}
		for _, c := range []struct {
			col string
			dst *decimal.NullDecimal
		}{
			{"fee", &row.Fee},
			{"fee_rental", &row.FeeRental},
			{"ceiling", &row.Ceiling},
			{"floor", &row.Floor},
		} {
			if *c.dst, err = r.amount(c.col); err != nil {
				return types.DMERow{}, err
			}
		}
		return row, nil
	}
}

func parseCrosswalkRow(r csvRow) (types.CrosswalkRow, error) {
	return types.CrosswalkRow{
		Zip:      r.str("zip5"),
		Carrier:  r.str("carrier"),
		Locality: r.str("locality_num"),
		State:    r.upper("state_abbr"),
		County:   r.str("county_name"),
	}, nil
}

func parseGPCIRow(r csvRow) (types.GPCIRow, error) {
	row := types.GPCIRow{
		Carrier:      r.str("carrier"),
		Locality:     r.str("locality_num"),
		LocalityName: r.str("locality_name"),
		State:        r.upper("state_abbr"),
		Zip:          r.str("zip_code"),
	}
	var err error
	if row.Work, err = r.float("work_gpci"); err != nil {
		return types.GPCIRow{}, err
	}
	if row.PE, err = r.float("pe_gpci"); err != nil {
		return types.GPCIRow{}, err
	}
	if row.MP, err = r.float("mp_gpci"); err != nil {
		return types.GPCIRow{}, err
	}
	return row, nil
}
