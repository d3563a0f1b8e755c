// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions.
package types

// CareSetting is where the service was rendered
type CareSetting string

const (
	CareOffice   CareSetting = "office"
	CareFacility CareSetting = "facility"
)

// String returns the string representation of the care setting
func (c CareSetting) String() string {
	return string(c)
}

// IsValid checks if the care setting is known
func (c CareSetting) IsValid() bool {
	switch c {
	case CareOffice, CareFacility:
		return true
	default:
		return false
	}
}

// Confidence is the coarse grade attached to geography and prices
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// GeoMethod names the rung of the geography ladder that produced a GPCI
type GeoMethod string

const (
	MethodZipExact        GeoMethod = "zip_exact"
	MethodZipToStateAvg   GeoMethod = "zip_to_state_avg"
	MethodStateAvg        GeoMethod = "state_avg"
	MethodNationalDefault GeoMethod = "national_default"
)

// MatchStatus is the terminal outcome of one code's ladder walk
type MatchStatus string

const (
	StatusPriced          MatchStatus = "priced"
	StatusExistsNotPriced MatchStatus = "exists_not_priced"
	StatusMissing         MatchStatus = "missing_from_dataset"
)

// ReferenceSource names the fee schedule a reference price came from
type ReferenceSource string

const (
	SourceMPFS   ReferenceSource = "mpfs_fee"
	SourceOPPS   ReferenceSource = "opps_payment"
	SourceDMEPOS ReferenceSource = "dmepos_fee"
	SourceDMEPEN ReferenceSource = "dmepen_fee"
	SourceNone   ReferenceSource = "none"
)

// SourcePriority is the fixed order used to break primary-source ties
var SourcePriority = []ReferenceSource{SourceMPFS, SourceOPPS, SourceDMEPOS, SourceDMEPEN}

// LadderSource names one rung a ladder walk can attempt
type LadderSource string

const (
	LadderMPFS         LadderSource = "mpfs"
	LadderOPPS         LadderSource = "opps"
	LadderOPPSFallback LadderSource = "opps_ed_fallback"
	LadderDMEPOS       LadderSource = "dmepos"
	LadderDMEPEN       LadderSource = "dmepen"

	// LadderDeadline marks where the request deadline ended a walk
	LadderDeadline LadderSource = "deadline"
)

// Dataset is one of the fee schedule tables behind the reference store
type Dataset string

const (
	DatasetMPFS   Dataset = "mpfs"
	DatasetOPPS   Dataset = "opps"
	DatasetDMEPOS Dataset = "dmepos"
	DatasetDMEPEN Dataset = "dmepen"
)

// AllDatasets lists the fee schedules in ladder order
var AllDatasets = []Dataset{DatasetMPFS, DatasetOPPS, DatasetDMEPOS, DatasetDMEPEN}
