// Package types - Reference table rows
package types

import "github.com/shopspring/decimal"

// Present reports whether d carries a positive amount.
// Absent and zero are treated alike.
func Present(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}

// Amount wraps a decimal as a present value
func Amount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// MPFSRow is one Medicare Physician Fee Schedule benchmark row
type MPFSRow struct {
	Year     int    `json:"year"`
	HCPCS    string `json:"hcpcs"`
	Modifier string `json:"modifier"`
	QPStatus string `json:"qp_status,omitempty"`

	// Carrier, Locality and State are set for locality-specific rows
	// from the raw feed; national benchmark rows leave them blank.
	Carrier  string `json:"carrier,omitempty"`
	Locality string `json:"locality,omitempty"`
	State    string `json:"state,omitempty"`

	WorkRVU          decimal.NullDecimal `json:"work_rvu"`
	NonfacPERVU      decimal.NullDecimal `json:"nonfac_pe_rvu"`
	FacPERVU         decimal.NullDecimal `json:"fac_pe_rvu"`
	MPRVU            decimal.NullDecimal `json:"mp_rvu"`
	NonfacFee        decimal.NullDecimal `json:"nonfac_fee"`
	FacFee           decimal.NullDecimal `json:"fac_fee"`
	ConversionFactor decimal.NullDecimal `json:"conversion_factor"`

	Status        string `json:"status"`
	PCTCIndicator string `json:"pctc_indicator,omitempty"`
}

// PERVU returns the practice expense RVU for the setting
func (r *MPFSRow) PERVU(isFacility bool) decimal.NullDecimal {
	if isFacility {
		return r.FacPERVU
	}
	return r.NonfacPERVU
}

// DirectFee returns the published fee column for the setting
func (r *MPFSRow) DirectFee(isFacility bool) decimal.NullDecimal {
	if isFacility {
		return r.FacFee
	}
	return r.NonfacFee
}

// HasRVUs reports whether any RVU component is present
func (r *MPFSRow) HasRVUs(isFacility bool) bool {
	return Present(r.WorkRVU) || Present(r.PERVU(isFacility)) || Present(r.MPRVU)
}

// OPPSRow is one OPPS Addendum B row
type OPPSRow struct {
	Year            int                 `json:"year"`
	HCPCS           string              `json:"hcpcs"`
	APC             string              `json:"apc,omitempty"`
	StatusIndicator string              `json:"status_indicator"`
	PaymentRate     decimal.NullDecimal `json:"payment_rate"`
	Description     string              `json:"description,omitempty"`
}

// DMERow is one DMEPOS or DMEPEN fee schedule row.
// State is blank for national rows.
type DMERow struct {
	Table     Dataset             `json:"table"`
	Year      int                 `json:"year"`
	HCPCS     string              `json:"hcpcs"`
	Modifier  string              `json:"modifier"`
	State     string              `json:"state,omitempty"`
	Fee       decimal.NullDecimal `json:"fee"`
	FeeRental decimal.NullDecimal `json:"fee_rental"`
	Ceiling   decimal.NullDecimal `json:"ceiling"`
	Floor     decimal.NullDecimal `json:"floor"`
}

// CrosswalkRow maps a ZIP to its Medicare locality
type CrosswalkRow struct {
	Zip      string `json:"zip5"`
	Carrier  string `json:"carrier,omitempty"`
	Locality string `json:"locality_num"`
	State    string `json:"state_abbr"`
	County   string `json:"county_name,omitempty"`
}

// GPCIRow is the GPCI triple for one locality
type GPCIRow struct {
	Carrier      string  `json:"carrier,omitempty"`
	Locality     string  `json:"locality_num"`
	LocalityName string  `json:"locality_name"`
	State        string  `json:"state_abbr"`
	Zip          string  `json:"zip_code,omitempty"`
	Work         float64 `json:"work_gpci"`
	PE           float64 `json:"pe_gpci"`
	MP           float64 `json:"mp_gpci"`
}

// GPCI returns the row's indices
func (r GPCIRow) GPCI() GpciIndices {
	return GpciIndices{Work: r.Work, PE: r.PE, MP: r.MP}
}

// GPCIStateAverage is the precomputed per-state GPCI mean
type GPCIStateAverage struct {
	State string  `json:"state_abbr"`
	Work  float64 `json:"avg_work_gpci"`
	PE    float64 `json:"avg_pe_gpci"`
	MP    float64 `json:"avg_mp_gpci"`
	Rows  int     `json:"n_rows"`
}

// GPCI returns the averaged indices
func (a GPCIStateAverage) GPCI() GpciIndices {
	return GpciIndices{Work: a.Work, PE: a.PE, MP: a.MP}
}
