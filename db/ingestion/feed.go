// Package ingestion - Reference dataset loading
// Strictly separated from resolution: parse → govern → index or store
package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
	apperrors "medicare-refprice/internal/errors"
)

// Field positions of the raw MPFS feed
const (
	feedYear = iota
	feedCarrier
	feedLocality
	feedHCPCS
	feedModifier
	feedNonfacFee
	feedFacFee
	feedFiller
	feedPCTC
	feedStatus
	feedMultSurgery

	feedMinFields
)

// FeedStats counts what happened to each raw feed line
type FeedStats struct {
	Read            int
	Parsed          int
	Malformed       int
	UnknownCarriers int
}

// FeedParser reads the fixed-position MPFS locality feed
type FeedParser struct {
	geography *refdata.Geography
	logger    *zap.Logger
}

// NewFeedParser creates a parser that maps carriers through geography
func NewFeedParser(geography *refdata.Geography, logger *zap.Logger) *FeedParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedParser{geography: geography, logger: logger}
}

// OpenFeed opens a feed file, transparently decompressing .gz input
func OpenFeed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Parsing("opening mpfs feed "+path, err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	zr, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, apperrors.Parsing("reading gzip header of "+path, err)
	}
	return &gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ParseFile parses the feed at path
func (p *FeedParser) ParseFile(path string) ([]types.MPFSRow, FeedStats, error) {
	rc, err := OpenFeed(path)
	if err != nil {
		return nil, FeedStats{}, err
	}
	defer rc.Close()
	return p.Parse(rc)
}

// Parse reads every record of the feed. Lines that cannot be parsed
// are skipped and counted; only an unreadable stream is an error.
func (p *FeedParser) Parse(r io.Reader) ([]types.MPFSRow, FeedStats, error) {
	var stats FeedStats
	var rows []types.MPFSRow

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Read++
				stats.Malformed++
				p.logger.Debug("skipping malformed mpfs feed line", zap.Int("line", perr.Line), zap.Error(err))
				continue
			}
			return rows, stats, apperrors.Parsing("reading mpfs feed", err)
		}
		stats.Read++

		row, err := parseFeedRecord(rec)
		if err != nil {
			stats.Malformed++
			p.logger.Debug("skipping mpfs feed line", zap.Int("line", stats.Read), zap.Error(err))
			continue
		}

		state, ok := p.geography.CarrierState(row.Carrier)
		if !ok {
			stats.UnknownCarriers++
			p.logger.Debug("unknown mpfs carrier", zap.String("carrier", row.Carrier), zap.String("hcpcs", row.HCPCS))
			continue
		}
		row.State = state

		rows = append(rows, row)
		stats.Parsed++
	}

	p.logger.Info("parsed mpfs feed",
		zap.Int("read", stats.Read),
		zap.Int("parsed", stats.Parsed),
		zap.Int("malformed", stats.Malformed),
		zap.Int("unknown_carriers", stats.UnknownCarriers),
	)
	return rows, stats, nil
}

func parseFeedRecord(rec []string) (types.MPFSRow, error) {
	if len(rec) < feedMinFields {
		return types.MPFSRow{}, fmt.Errorf("expected at least %d fields, got %d", feedMinFields, len(rec))
	}
	field := func(i int) string { return strings.TrimSpace(rec[i]) }

	year, err := strconv.Atoi(field(feedYear))
	if err != nil || year <= 0 {
		return types.MPFSRow{}, fmt.Errorf("bad year %q", rec[feedYear])
	}

	row := types.MPFSRow{
		Year:          year,
		Carrier:       field(feedCarrier),
		Locality:      field(feedLocality),
		HCPCS:         strings.ToUpper(field(feedHCPCS)),
		Modifier:      strings.ToUpper(field(feedModifier)),
		PCTCIndicator: field(feedPCTC),
		Status:        strings.ToUpper(field(feedStatus)),
	}
	if len(row.Carrier) != 5 || len(row.Locality) != 2 || len(row.HCPCS) != 5 {
		return types.MPFSRow{}, fmt.Errorf("bad key %q/%q/%q", row.Carrier, row.Locality, row.HCPCS)
	}

	if row.NonfacFee, err = feedMoney(field(feedNonfacFee)); err != nil {
		return types.MPFSRow{}, fmt.Errorf("non-facility fee: %w", err)
	}
	if row.FacFee, err = feedMoney(field(feedFacFee)); err != nil {
		return types.MPFSRow{}, fmt.Errorf("facility fee: %w", err)
	}
	return row, nil
}

// feedMoney parses a 9(7).99 field. All zeros means the fee is not published.
func feedMoney(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if d.IsZero() {
		return decimal.NullDecimal{}, nil
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("negative amount %s", s)
	}
	return types.Amount(d), nil
}
