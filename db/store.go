package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

// Store serves refdata.Store queries from Postgres. It never writes.
type Store struct {
	db *DB
}

// NewStore wraps an open pool
func NewStore(d *DB) *Store {
	return &Store{db: d}
}

var _ refdata.Store = (*Store)(nil)

// Ping checks the pool can reach the server
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Pool.Ping(ctx)
}

func (s *Store) LatestYear(ctx context.Context, dataset types.Dataset) (int, error) {
	var query string
	var args []any
	switch dataset {
	case types.DatasetMPFS:
		query = `SELECT MAX(year) FROM mpfs_benchmark`
	case types.DatasetOPPS:
		query = `SELECT MAX(year) FROM opps_addendum_b`
	case types.DatasetDMEPOS, types.DatasetDMEPEN:
		query = `SELECT MAX(year) FROM dme_fee_schedule WHERE dataset = $1`
		args = append(args, string(dataset))
	default:
		return 0, fmt.Errorf("unknown dataset %q", dataset)
	}

	var year *int
	if err := s.db.Pool.QueryRow(ctx, query, args...).Scan(&year); err != nil {
		return 0, fmt.Errorf("failed to read latest %s year: %w", dataset, err)
	}
	if year == nil {
		return 0, refdata.ErrNotFound
	}
	return *year, nil
}

const mpfsColumns = `
	year, hcpcs, modifier, qp_status, carrier, locality, state_abbr,
	work_rvu::text, nonfac_pe_rvu::text, fac_pe_rvu::text, mp_rvu::text,
	nonfac_fee::text, fac_fee::text, conversion_factor::text,
	status, pctc_indicator`

// MPFS returns the state's rows first, then national rows. Another
// state's locality rows are never returned.
func (s *Store) MPFS(ctx context.Context, q refdata.MPFSQuery) ([]types.MPFSRow, error) {
	return s.queryMPFS(ctx, `
		SELECT `+mpfsColumns+`
		FROM mpfs_benchmark
		WHERE year = $1 AND hcpcs = $2 AND modifier = $3
		  AND ($4 = '' OR qp_status = '' OR qp_status = $4)
		  AND (state_abbr = '' OR ($5 <> '' AND state_abbr = $5))
		ORDER BY (state_abbr = '') ASC, carrier, locality
	`, q.Year, q.HCPCS, q.Modifier, q.QPStatus, q.State)
}

func (s *Store) queryMPFS(ctx context.Context, query string, args ...any) ([]types.MPFSRow, error) {
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mpfs: %w", err)
	}
	defer rows.Close()

	var out []types.MPFSRow
	for rows.Next() {
		var r types.MPFSRow
		var work, nonfacPE, facPE, mp, nonfacFee, facFee, cf *string
		if err := rows.Scan(
			&r.Year, &r.HCPCS, &r.Modifier, &r.QPStatus, &r.Carrier, &r.Locality, &r.State,
			&work, &nonfacPE, &facPE, &mp, &nonfacFee, &facFee, &cf,
			&r.Status, &r.PCTCIndicator,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mpfs row: %w", err)
		}
		r.WorkRVU = numeric(work)
		r.NonfacPERVU = numeric(nonfacPE)
		r.FacPERVU = numeric(facPE)
		r.MPRVU = numeric(mp)
		r.NonfacFee = numeric(nonfacFee)
		r.FacFee = numeric(facFee)
		r.ConversionFactor = numeric(cf)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) OPPS(ctx context.Context, hcpcs string, year int) (types.OPPSRow, error) {
	r := types.OPPSRow{}
	var rate *string
	err := s.db.Pool.QueryRow(ctx, `
		SELECT year, hcpcs, apc, status_indicator, payment_rate::text, description
		FROM opps_addendum_b
		WHERE year = $1 AND hcpcs = $2
	`, year, hcpcs).Scan(&r.Year, &r.HCPCS, &r.APC, &r.StatusIndicator, &rate, &r.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, refdata.ErrNotFound
		}
		return r, fmt.Errorf("failed to query opps: %w", err)
	}
	r.PaymentRate = numeric(rate)
	return r, nil
}

func (s *Store) DME(ctx context.Context, q refdata.DMEQuery) ([]types.DMERow, error) {
	query := `
		SELECT dataset, year, hcpcs, modifier, state_abbr,
		       fee::text, fee_rental::text, ceiling::text, floor::text
		FROM dme_fee_schedule
		WHERE dataset = $1 AND year = $2 AND hcpcs = $3`
	args := []any{string(q.Table), q.Year, q.HCPCS}
	if q.AnyRow {
		query += ` ORDER BY state_abbr, modifier`
	} else {
		query += ` AND modifier = $4 AND state_abbr = $5`
		args = append(args, q.Modifier, q.State)
	}

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	defer rows.Close()

	var out []types.DMERow
	for rows.Next() {
		var r types.DMERow
		var table string
		var fee, rental, ceiling, floor *string
		if err := rows.Scan(&table, &r.Year, &r.HCPCS, &r.Modifier, &r.State, &fee, &rental, &ceiling, &floor); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Table, err)
		}
		r.Table = types.Dataset(table)
		r.Fee = numeric(fee)
		r.FeeRental = numeric(rental)
		r.Ceiling = numeric(ceiling)
		r.Floor = numeric(floor)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Crosswalk(ctx context.Context, zip string) (types.CrosswalkRow, error) {
	var r types.CrosswalkRow
	err := s.db.Pool.QueryRow(ctx, `
		SELECT zip5, carrier, locality_num, state_abbr, county_name
		FROM zip_locality
		WHERE zip5 = $1
	`, zip).Scan(&r.Zip, &r.Carrier, &r.Locality, &r.State, &r.County)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, refdata.ErrNotFound
		}
		return r, fmt.Errorf("failed to query crosswalk: %w", err)
	}
	return r, nil
}

const gpciColumns = `carrier, locality_num, locality_name, state_abbr, zip_code, work_gpci, pe_gpci, mp_gpci`

func scanGPCI(row pgx.Row) (types.GPCIRow, error) {
	var r types.GPCIRow
	if err := row.Scan(&r.Carrier, &r.Locality, &r.LocalityName, &r.State, &r.Zip, &r.Work, &r.PE, &r.MP); err != nil {
		return r, err
	}
	r.Work, r.PE, r.MP = finite(r.Work), finite(r.PE), finite(r.MP)
	return r, nil
}

func (s *Store) GPCIByLocality(ctx context.Context, locality, state string) (types.GPCIRow, error) {
	r, err := scanGPCI(s.db.Pool.QueryRow(ctx, `
		SELECT `+gpciColumns+`
		FROM gpci
		WHERE locality_num = $1 AND ($2 = '' OR state_abbr = $2 OR state_abbr = '')
		ORDER BY (state_abbr = $2) DESC, carrier
		LIMIT 1
	`, locality, state))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, refdata.ErrNotFound
		}
		return r, fmt.Errorf("failed to query gpci: %w", err)
	}
	return r, nil
}

func (s *Store) GPCIByZip(ctx context.Context, zip string) (types.GPCIRow, error) {
	r, err := scanGPCI(s.db.Pool.QueryRow(ctx, `
		SELECT `+gpciColumns+`
		FROM gpci
		WHERE zip_code = $1
		LIMIT 1
	`, zip))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, refdata.ErrNotFound
		}
		return r, fmt.Errorf("failed to query gpci by zip: %w", err)
	}
	return r, nil
}

func (s *Store) GPCIStateAverage(ctx context.Context, state string) (types.GPCIStateAverage, error) {
	a := types.GPCIStateAverage{}
	var n int64
	err := s.db.Pool.QueryRow(ctx, `
		SELECT state_abbr, avg_work_gpci, avg_pe_gpci, avg_mp_gpci, n_rows
		FROM gpci_state_avg
		WHERE state_abbr = $1
	`, state).Scan(&a.State, &a.Work, &a.PE, &a.MP, &n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, refdata.ErrNotFound
		}
		return a, fmt.Errorf("failed to query gpci state average: %w", err)
	}
	a.Work, a.PE, a.MP = finite(a.Work), finite(a.PE), finite(a.MP)
	a.Rows = int(n)
	return a, nil
}

func (s *Store) GPCIByState(ctx context.Context, state string) ([]types.GPCIRow, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+gpciColumns+`
		FROM gpci
		WHERE state_abbr = $1
		ORDER BY locality_num, carrier
	`, state)
	if err != nil {
		return nil, fmt.Errorf("failed to query gpci by state: %w", err)
	}
	defer rows.Close()

	var out []types.GPCIRow
	for rows.Next() {
		r, err := scanGPCI(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gpci row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// numeric converts a NUMERIC column read as text. NULL, NaN and
// unparsable values are absent.
func numeric(s *string) decimal.NullDecimal {
	if s == nil {
		return decimal.NullDecimal{}
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "NaN") || strings.Contains(strings.ToLower(v), "infinity") {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return types.Amount(d)
}

// finite maps NaN and infinities to zero so the index is rejected as invalid
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
