// Package fee - MPFS fee computation
// All money math is decimal; floats only enter through GPCI multipliers.
package fee

import (
	"strings"

	"github.com/shopspring/decimal"

	"medicare-refprice/core/types"
)

// DefaultConversionFactor is the CY2025 MPFS conversion factor used when a
// row carries none
var DefaultConversionFactor = decimal.RequireFromString("34.6062")

// Basis names how a fee was derived
type Basis string

const (
	BasisRVUGPCI           Basis = "rvu_gpci"
	BasisRVUNational       Basis = "rvu_national"
	BasisDirectFacility    Basis = "direct_fee_facility"
	BasisDirectNonfacility Basis = "direct_fee_nonfacility"
	BasisNonPayable        Basis = "non_payable_status"
	BasisNoFee             Basis = "no_fee"
)

// nonPayableStatus are MPFS status codes for which Medicare pays no fee
// under the schedule
var nonPayableStatus = map[string]bool{
	"B": true, "P": true, "N": true, "I": true, "X": true, "E": true, "M": true,
}

// IsNonPayableStatus reports whether an MPFS status code bars payment
func IsNonPayableStatus(status string) bool {
	return nonPayableStatus[strings.ToUpper(strings.TrimSpace(status))]
}

// Result is the outcome of one fee computation
type Result struct {
	Fee              decimal.NullDecimal
	Basis            Basis
	ConversionFactor decimal.Decimal
	GPCIApplied      bool
	Reason           string
}

// HasFee reports whether a positive fee was produced
func (r Result) HasFee() bool {
	return types.Present(r.Fee)
}

// Calculator computes MPFS fees with a fallback conversion factor
type Calculator struct {
	conversionFactor decimal.Decimal
}

// NewCalculator creates a calculator. A non-positive cf selects the default.
func NewCalculator(cf decimal.Decimal) *Calculator {
	if !cf.IsPositive() {
		cf = DefaultConversionFactor
	}
	return &Calculator{conversionFactor: cf}
}

var defaultCalculator = NewCalculator(decimal.Zero)

// Calculate uses the default conversion factor
func Calculate(row types.MPFSRow, gpci *types.GpciIndices, isFacility bool) Result {
	return defaultCalculator.Calculate(row, gpci, isFacility)
}

// Calculate computes the fee for row. gpci is nil when no real locality
// GPCI is available; the national sentinel is never passed as real.
func (c *Calculator) Calculate(row types.MPFSRow, gpci *types.GpciIndices, isFacility bool) Result {
	cf := c.conversionFactor
	if types.Present(row.ConversionFactor) {
		cf = row.ConversionFactor.Decimal
	}
	res := Result{Basis: BasisNoFee, ConversionFactor: cf}

	if IsNonPayableStatus(row.Status) {
		res.Basis = BasisNonPayable
		res.Reason = "status " + strings.ToUpper(strings.TrimSpace(row.Status)) + " is not payable under the MPFS"
		return res
	}

	if row.HasRVUs(isFacility) {
		work := rvu(row.WorkRVU)
		pe := rvu(row.PERVU(isFacility))
		mp := rvu(row.MPRVU)

		var total decimal.Decimal
		if gpci != nil && gpci.IsValid() {
			total = work.Mul(decimal.NewFromFloat(gpci.Work)).
				Add(pe.Mul(decimal.NewFromFloat(gpci.PE))).
				Add(mp.Mul(decimal.NewFromFloat(gpci.MP)))
			res.Basis = BasisRVUGPCI
			res.GPCIApplied = true
		} else {
			total = work.Add(pe).Add(mp)
			res.Basis = BasisRVUNational
		}

		amount := total.Mul(cf).Round(2)
		if amount.IsPositive() {
			res.Fee = types.Amount(amount)
			return res
		}
		res.Reason = "computed RVU fee is not positive"
	}

	direct := row.DirectFee(isFacility)
	if types.Present(direct) {
		res.Fee = types.Amount(direct.Decimal.Round(2))
		res.GPCIApplied = false
		if isFacility {
			res.Basis = BasisDirectFacility
		} else {
			res.Basis = BasisDirectNonfacility
		}
		res.Reason = ""
		return res
	}

	res.Basis = BasisNoFee
	res.GPCIApplied = false
	if res.Reason == "" {
		res.Reason = "row has no RVUs and no " + columnName(isFacility) + " fee"
	}
	return res
}

func rvu(d decimal.NullDecimal) decimal.Decimal {
	if types.Present(d) {
		return d.Decimal
	}
	return decimal.Zero
}

func columnName(isFacility bool) string {
	if isFacility {
		return "facility"
	}
	return "non-facility"
}
