// Package types - Resolution request and result types
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CodeInput is one billed line submitted for resolution
type CodeInput struct {
	HCPCS    string `json:"hcpcs"`
	Modifier string `json:"modifier,omitempty"`

	// BilledAmount is what the patient was charged, if known
	BilledAmount *decimal.Decimal `json:"billedAmount,omitempty"`

	// IsFacility overrides the request care setting for MPFS column selection
	IsFacility *bool `json:"isFacility,omitempty"`
}

// ResolveRequest is the input of one resolve call
type ResolveRequest struct {
	Codes       []CodeInput `json:"codes"`
	CareSetting CareSetting `json:"careSetting"`
	Zip         string      `json:"zip,omitempty"`
	State       string      `json:"state,omitempty"`

	// Year pins every schedule to one year; nil uses the latest loaded
	Year *int `json:"year,omitempty"`
}

// LadderStep records one attempted data-source probe
type LadderStep struct {
	Source    LadderSource `json:"source"`
	Attempted bool         `json:"attempted"`
	FoundRow  bool         `json:"foundRow"`
	HasFee    bool         `json:"hasFee"`
	Reason    string       `json:"reason,omitempty"`
}

// ResolutionDebug carries the machine-readable derivation details
type ResolutionDebug struct {
	// TableMatched names the table or row selection that produced the price
	TableMatched string `json:"tableMatched,omitempty"`

	// ModifierFallback is true when the base code row stood in for code+modifier
	ModifierFallback bool   `json:"modifierFallback,omitempty"`
	MatchedModifier  string `json:"matchedModifier,omitempty"`

	// DMERung names the DMEPOS/DMEPEN sub-ladder rung that matched
	DMERung string `json:"dmeRung,omitempty"`

	// FeeBasis explains how the amount was computed
	FeeBasis         string `json:"feeBasis,omitempty"`
	ConversionFactor string `json:"conversionFactor,omitempty"`
	GPCIApplied      bool   `json:"gpciApplied,omitempty"`

	StatusIndicator string    `json:"statusIndicator,omitempty"`
	YearUsed        int       `json:"yearUsed,omitempty"`
	IsFacility      bool      `json:"isFacility"`
	GeoMethod       GeoMethod `json:"geoMethod,omitempty"`

	// LookupErrors lists lookups that failed and were treated as misses
	LookupErrors []string `json:"lookupErrors,omitempty"`

	// TimedOut is true when the request deadline cut the walk short
	TimedOut bool `json:"timedOut,omitempty"`
}

// CodeResolution is the outcome of one code's ladder walk
type CodeResolution struct {
	HCPCS           string              `json:"hcpcs"`
	Modifier        string              `json:"modifier,omitempty"`
	ReferencePrice  decimal.NullDecimal `json:"referencePrice"`
	ReferenceSource ReferenceSource     `json:"referenceSource"`
	MatchStatus     MatchStatus         `json:"matchStatus"`
	Confidence      Confidence          `json:"confidence"`
	Explanation     string              `json:"explanation"`
	LadderPath      []LadderStep        `json:"ladderPath"`
	Debug           ResolutionDebug     `json:"debug"`

	BilledAmount     decimal.NullDecimal `json:"billedAmount"`
	MedicareMultiple decimal.NullDecimal `json:"medicareMultiple"`
}

// Summary aggregates all code resolutions of one call
type Summary struct {
	TotalCodes           int                     `json:"totalCodes"`
	TotalPriced          int                     `json:"totalPriced"`
	TotalExistsNotPriced int                     `json:"totalExistsNotPriced"`
	TotalMissing         int                     `json:"totalMissing"`
	TotalReferencePrice  decimal.NullDecimal     `json:"totalReferencePrice"`
	TotalBilledPriced    decimal.NullDecimal     `json:"totalBilledPriced"`
	SourceCounts         map[ReferenceSource]int `json:"sourceCounts"`
	PrimarySource        ReferenceSource         `json:"primarySource"`
}

// YearsUsed records the schedule year consulted per dataset
type YearsUsed struct {
	MPFS   int `json:"mpfs,omitempty"`
	OPPS   int `json:"opps,omitempty"`
	DMEPOS int `json:"dmepos,omitempty"`
	DMEPEN int `json:"dmepen,omitempty"`
}

// For returns the year used for a dataset
func (y YearsUsed) For(d Dataset) int {
	switch d {
	case DatasetMPFS:
		return y.MPFS
	case DatasetOPPS:
		return y.OPPS
	case DatasetDMEPOS:
		return y.DMEPOS
	case DatasetDMEPEN:
		return y.DMEPEN
	default:
		return 0
	}
}

// Metadata describes how a resolve call ran
type Metadata struct {
	RequestID        string      `json:"requestId"`
	CareSetting      CareSetting `json:"careSetting"`
	YearsUsed        YearsUsed   `json:"yearsUsed"`
	QPStatus         string      `json:"qpStatus,omitempty"`
	GeneratedAt      time.Time   `json:"generatedAt"`
	DurationMs       int64       `json:"durationMs"`
	DeadlineExceeded bool        `json:"deadlineExceeded,omitempty"`
}

// ResolverOutput is the sole externally visible artifact of a resolve call
type ResolverOutput struct {
	Results  []CodeResolution `json:"results"`
	Summary  Summary          `json:"summary"`
	Geo      *GeoResolution   `json:"geo"`
	Metadata Metadata         `json:"metadata"`
}
