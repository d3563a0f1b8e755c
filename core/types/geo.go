// Package types - Geography types
package types

// GpciIndices is the (work, practice expense, malpractice) multiplier triple
type GpciIndices struct {
	Work float64 `json:"work"`
	PE   float64 `json:"pe"`
	MP   float64 `json:"mp"`
}

// NationalGPCI is the unadjusted sentinel used when no locality resolves
func NationalGPCI() GpciIndices {
	return GpciIndices{Work: 1.0, PE: 1.0, MP: 1.0}
}

// IsValid reports whether all three multipliers are positive
func (g GpciIndices) IsValid() bool {
	return g.Work > 0 && g.PE > 0 && g.MP > 0
}

// GeoResolution is the outcome of one geography lookup
type GeoResolution struct {
	// InputZip echoes the caller's ZIP verbatim, even when malformed
	InputZip string `json:"inputZip,omitempty"`

	// InputState echoes the caller's state verbatim
	InputState string `json:"inputState,omitempty"`

	// ZipProvided is true whenever the caller sent a non-blank ZIP
	ZipProvided bool `json:"zipProvided"`

	ResolvedZip   string `json:"resolvedZip,omitempty"`
	ResolvedState string `json:"resolvedState,omitempty"`
	Carrier       string `json:"carrier,omitempty"`
	Locality      string `json:"locality,omitempty"`
	LocalityName  string `json:"localityName,omitempty"`

	Method     GeoMethod   `json:"method"`
	Confidence Confidence  `json:"confidence"`
	GPCI       GpciIndices `json:"gpci"`

	// Notes is the ordered audit trail of every attempted step
	Notes []string `json:"notes"`

	// UserMessage is the one-line summary shown to patients
	UserMessage string `json:"userMessage"`
}

// HasLocalityGPCI reports whether GPCI came from real locality data
func (g *GeoResolution) HasLocalityGPCI() bool {
	return g != nil && g.Method != MethodNationalDefault
}

// IsExactLocality reports whether GPCI is the caller's own locality
func (g *GeoResolution) IsExactLocality() bool {
	return g != nil && g.Method == MethodZipExact
}
