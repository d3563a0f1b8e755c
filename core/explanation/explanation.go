// Package explanation - Reference price explanations
// Every resolution says which tier produced its number, or why none did.
package explanation

import (
	"fmt"
	"strings"
)

// Explanation is the derivation of one code's reference price
type Explanation struct {
	Code string `json:"code"`

	// Tier is the fee schedule that produced the price
	Tier    string  `json:"tier,omitempty"`
	Formula string  `json:"formula,omitempty"`
	Inputs  []Input `json:"inputs,omitempty"`
	Amount  string  `json:"amount,omitempty"`

	// Unpriced explanations carry a reason and the tiers that were tried
	Unpriced bool     `json:"unpriced,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Chain    []string `json:"chain,omitempty"`
}

// Input is one named value that fed the formula
type Input struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"` // "mpfs", "gpci", "default", ...
}

// New creates an explanation for a code
func New(code string) *Explanation {
	return &Explanation{Code: code, Inputs: make([]Input, 0)}
}

// WithTier sets the producing tier
func (e *Explanation) WithTier(tier string) *Explanation {
	e.Tier = tier
	return e
}

// WithFormula sets the formula description
func (e *Explanation) WithFormula(formula string) *Explanation {
	e.Formula = formula
	return e
}

// WithAmount sets the resulting amount
func (e *Explanation) WithAmount(amount string) *Explanation {
	e.Amount = amount
	return e
}

// AddInput adds an input to the explanation
func (e *Explanation) AddInput(name, value, source string) *Explanation {
	e.Inputs = append(e.Inputs, Input{Name: name, Value: value, Source: source})
	return e
}

// AsUnpriced marks the code as unpriced
func (e *Explanation) AsUnpriced(reason string, chain []string) *Explanation {
	e.Unpriced = true
	e.Reason = reason
	e.Chain = chain
	return e
}

// ToNarrative returns a one-line human-readable explanation
func (e *Explanation) ToNarrative() string {
	if e.Unpriced {
		if len(e.Chain) == 0 {
			return fmt.Sprintf("%s has no reference price: %s", e.Code, e.Reason)
		}
		return fmt.Sprintf("%s has no reference price after trying %s: %s",
			e.Code, strings.Join(e.Chain, ", "), e.Reason)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s priced at $%s from %s", e.Code, e.Amount, e.Tier))
	if e.Formula != "" {
		sb.WriteString(" as " + e.Formula)
	}
	if len(e.Inputs) > 0 {
		parts := make([]string, len(e.Inputs))
		for i, in := range e.Inputs {
			parts[i] = fmt.Sprintf("%s=%s", in.Name, in.Value)
		}
		sb.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	return sb.String()
}
