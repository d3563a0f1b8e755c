// Package ingestion - Load-time governance and validation
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"medicare-refprice/core/location"
	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

// IngestionContract is the minimum a loaded fee schedule should carry
type IngestionContract struct {
	Dataset          types.Dataset
	MinDistinctCodes int
}

// DefaultContracts returns the default ingestion contracts
func DefaultContracts() []IngestionContract {
	return []IngestionContract{
		{types.DatasetMPFS, 1000},
		{types.DatasetOPPS, 1000},
		{types.DatasetDMEPOS, 100},
		{types.DatasetDMEPEN, 10},
	}
}

// TableValidation is the outcome for one table
type TableValidation struct {
	Table         string
	Loaded        int
	Rejected      int
	DistinctCodes int
	RequiredCodes int
	Years         []int
}

// ValidationResult contains the governance outcome of one load.
// Rejected rows never reach the store; warnings never block a load.
type ValidationResult struct {
	IsValid  bool
	Tables   map[string]*TableValidation
	Errors   []string
	Warnings []string
	Checksum string
}

func (r *ValidationResult) table(name string) *TableValidation {
	tv, ok := r.Tables[name]
	if !ok {
		tv = &TableValidation{Table: name}
		r.Tables[name] = tv
	}
	return tv
}

func (r *ValidationResult) reject(table, format string, args ...interface{}) {
	r.table(table).Rejected++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: ", table)+fmt.Sprintf(format, args...))
}

// Validator checks loaded tables against contracts
type Validator struct {
	contracts map[types.Dataset]IngestionContract
	logger    *zap.Logger

	// maxErrors caps how many row errors are kept on a result
	maxErrors int
}

// NewValidator creates a validator with default contracts
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{
		contracts: make(map[types.Dataset]IngestionContract),
		logger:    logger,
		maxErrors: 50,
	}
	for _, c := range DefaultContracts() {
		v.contracts[c.Dataset] = c
	}
	return v
}

// AddContract adds or replaces a contract
func (v *Validator) AddContract(contract IngestionContract) {
	v.contracts[contract.Dataset] = contract
}

// Validate drops rows that must never be served and reports the rest.
// The returned tables carry only accepted rows.
func (v *Validator) Validate(t refdata.Tables) (refdata.Tables, *ValidationResult) {
	result := &ValidationResult{
		IsValid: true,
		Tables:  make(map[string]*TableValidation),
	}
	var out refdata.Tables

	for _, r := range t.MPFS {
		if r.HCPCS == "" {
			result.reject(string(types.DatasetMPFS), "row with empty hcpcs (year %d)", r.Year)
			continue
		}
		out.MPFS = append(out.MPFS, r)
	}
	for _, r := range t.OPPS {
		if r.HCPCS == "" {
			result.reject(string(types.DatasetOPPS), "row with empty hcpcs (year %d)", r.Year)
			continue
		}
		out.OPPS = append(out.OPPS, r)
	}
	for _, r := range t.DME {
		if r.HCPCS == "" {
			result.reject(string(r.Table), "row with empty hcpcs (year %d)", r.Year)
			continue
		}
		if r.State != "" && !location.IsValidState(r.State) {
			result.reject(string(r.Table), "%s has unknown state %q", r.HCPCS, r.State)
			continue
		}
		out.DME = append(out.DME, r)
	}
	for _, r := range t.Crosswalk {
		if zip, ok := location.NormalizeZip(r.Zip); !ok || zip != r.Zip {
			result.reject("crosswalk", "bad zip5 %q", r.Zip)
			continue
		}
		if r.Locality == "" || !location.IsValidState(r.State) {
			result.reject("crosswalk", "zip %s has no locality or state", r.Zip)
			continue
		}
		out.Crosswalk = append(out.Crosswalk, r)
	}
	for _, r := range t.GPCI {
		if r.Locality == "" {
			result.reject("gpci", "row with empty locality_num")
			continue
		}
		if !r.GPCI().IsValid() {
			result.reject("gpci", "locality %s %s has non-positive indices %v/%v/%v",
				r.State, r.Locality, r.Work, r.PE, r.MP)
			continue
		}
		out.GPCI = append(out.GPCI, r)
	}
	out.StateAverages = t.StateAverages

	v.checkContracts(out, result)
	result.table("crosswalk").Loaded = len(out.Crosswalk)
	result.table("gpci").Loaded = len(out.GPCI)

	if len(result.Errors) > v.maxErrors {
		dropped := len(result.Errors) - v.maxErrors
		result.Errors = append(result.Errors[:v.maxErrors], fmt.Sprintf("... %d more", dropped))
	}
	if len(out.GPCI) == 0 && len(t.GPCI) > 0 {
		// every locality was rejected; geography would silently go national
		result.IsValid = false
	}
	result.Checksum = CalculateChecksum(out)

	for _, w := range result.Warnings {
		v.logger.Warn("reference data governance", zap.String("warning", w))
	}
	if len(result.Errors) > 0 {
		v.logger.Warn("rejected reference rows", zap.Int("count", len(result.Errors)), zap.Strings("sample", sample(result.Errors, 5)))
	}
	return out, result
}

// checkContracts warns about loaded schedules with suspiciously few codes
func (v *Validator) checkContracts(t refdata.Tables, result *ValidationResult) {
	codes := make(map[types.Dataset]map[string]bool)
	years := make(map[types.Dataset]map[int]bool)
	loaded := make(map[types.Dataset]int)
	note := func(d types.Dataset, code string, year int) {
		if codes[d] == nil {
			codes[d] = make(map[string]bool)
			years[d] = make(map[int]bool)
		}
		codes[d][code] = true
		years[d][year] = true
		loaded[d]++
	}
	for _, r := range t.MPFS {
		note(types.DatasetMPFS, r.HCPCS, r.Year)
	}
	for _, r := range t.OPPS {
		note(types.DatasetOPPS, r.HCPCS, r.Year)
	}
	for _, r := range t.DME {
		note(r.Table, r.HCPCS, r.Year)
	}

	for _, d := range types.AllDatasets {
		tv := result.table(string(d))
		tv.Loaded = loaded[d]
		tv.DistinctCodes = len(codes[d])
		for y := range years[d] {
			tv.Years = append(tv.Years, y)
		}
		sort.Ints(tv.Years)

		c, ok := v.contracts[d]
		if !ok {
			continue
		}
		tv.RequiredCodes = c.MinDistinctCodes
		if tv.Loaded == 0 {
			continue
		}
		if tv.DistinctCodes < c.MinDistinctCodes {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: only %d distinct codes loaded, expected at least %d", d, tv.DistinctCodes, c.MinDistinctCodes))
		}
	}
}

func sample(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CalculateChecksum fingerprints the accepted tables so operators can tell two loads apart
func CalculateChecksum(t refdata.Tables) string {
	hasher := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			hasher.Write([]byte(p))
			hasher.Write([]byte{0})
		}
	}
	for _, r := range t.MPFS {
		write("mpfs", strconv.Itoa(r.Year), r.HCPCS, r.Modifier, r.State, r.Locality,
			r.NonfacFee.Decimal.String(), r.FacFee.Decimal.String(), r.Status)
	}
	for _, r := range t.OPPS {
		write("opps", strconv.Itoa(r.Year), r.HCPCS, r.StatusIndicator, r.PaymentRate.Decimal.String())
	}
	for _, r := range t.DME {
		write(string(r.Table), strconv.Itoa(r.Year), r.HCPCS, r.Modifier, r.State, r.Fee.Decimal.String())
	}
	for _, r := range t.Crosswalk {
		write("crosswalk", r.Zip, r.Locality, r.State)
	}
	for _, r := range t.GPCI {
		write("gpci", r.Locality, r.State, r.Zip,
			strconv.FormatFloat(r.Work, 'f', -1, 64),
			strconv.FormatFloat(r.PE, 'f', -1, 64),
			strconv.FormatFloat(r.MP, 'f', -1, 64))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
