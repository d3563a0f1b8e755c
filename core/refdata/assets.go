package refdata

import (
	"embed"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/shopspring/decimal"

	"medicare-refprice/core/types"
	apperrors "medicare-refprice/internal/errors"
)

//go:embed assets/*.hcl
var assetFS embed.FS

type carrierFile struct {
	Carriers []carrierBlock `hcl:"carrier,block"`
}

type carrierBlock struct {
	Number     string          `hcl:"number,label"`
	State      string          `hcl:"state"`
	Localities []localityBlock `hcl:"locality,block"`
}

type localityBlock struct {
	Number string `hcl:"number,label"`
	Name   string `hcl:"name"`
}

type zipPrefixFile struct {
	Ranges []zipRangeBlock `hcl:"range,block"`
}

type zipRangeBlock struct {
	From  string `hcl:"from,label"`
	To    string `hcl:"to,label"`
	State string `hcl:"state"`
}

type fallbackFile struct {
	Label string          `hcl:"label"`
	Year  int             `hcl:"year"`
	Rates []fallbackBlock `hcl:"rate,block"`
}

type fallbackBlock struct {
	HCPCS           string `hcl:"hcpcs,label"`
	APC             string `hcl:"apc"`
	StatusIndicator string `hcl:"status_indicator"`
	PaymentRate     string `hcl:"payment_rate"`
	Description     string `hcl:"description,optional"`
}

func decodeAsset(name string, target interface{}) error {
	src, err := assetFS.ReadFile("assets/" + name)
	if err != nil {
		return apperrors.Internal("missing embedded asset "+name, err)
	}
	if err := hclsimple.Decode(name, src, nil, target); err != nil {
		return apperrors.Parsing("decoding "+name, err)
	}
	return nil
}

// Geography holds the static carrier, locality and ZIP prefix tables
type Geography struct {
	carrierState map[string]string
	// "carrier|locality" -> name
	localityName map[string]string
	zipRanges    []zipRangeBlock
}

// LoadGeography decodes the embedded geography assets
func LoadGeography() (*Geography, error) {
	var carriers carrierFile
	if err := decodeAsset("carriers.hcl", &carriers); err != nil {
		return nil, err
	}
	var prefixes zipPrefixFile
	if err := decodeAsset("zip_prefixes.hcl", &prefixes); err != nil {
		return nil, err
	}

	g := &Geography{
		carrierState: make(map[string]string, len(carriers.Carriers)),
		localityName: make(map[string]string),
		zipRanges:    prefixes.Ranges,
	}
	for _, c := range carriers.Carriers {
		g.carrierState[c.Number] = c.State
		for _, l := range c.Localities {
			g.localityName[localityKey(c.Number, l.Number)] = l.Name
		}
	}
	for _, r := range g.zipRanges {
		if len(r.From) != 3 || len(r.To) != 3 || r.From > r.To {
			return nil, apperrors.Parsing(fmt.Sprintf("bad zip prefix range %s-%s", r.From, r.To), nil)
		}
	}
	sort.Slice(g.zipRanges, func(i, j int) bool { return g.zipRanges[i].From < g.zipRanges[j].From })
	return g, nil
}

// MustLoadGeography panics if the embedded assets are broken
func MustLoadGeography() *Geography {
	g, err := LoadGeography()
	if err != nil {
		panic(err)
	}
	return g
}

func localityKey(carrier, locality string) string {
	return carrier + "|" + locality
}

// CarrierState maps an MPFS carrier number to its state
func (g *Geography) CarrierState(carrier string) (string, bool) {
	st, ok := g.carrierState[carrier]
	return st, ok
}

// LocalityName returns the published name of a carrier locality
func (g *Geography) LocalityName(carrier, locality string) (string, bool) {
	name, ok := g.localityName[localityKey(carrier, locality)]
	return name, ok
}

// StateForZip derives a state from a 5-digit ZIP's three-digit prefix
func (g *Geography) StateForZip(zip string) (string, bool) {
	if len(zip) < 3 {
		return "", false
	}
	prefix := zip[:3]
	i := sort.Search(len(g.zipRanges), func(i int) bool { return g.zipRanges[i].To >= prefix })
	if i < len(g.zipRanges) && g.zipRanges[i].From <= prefix {
		return g.zipRanges[i].State, true
	}
	return "", false
}

// FallbackTable is the labeled secondary OPPS table for ED codes
type FallbackTable struct {
	Label string
	Year  int
	rates map[string]types.OPPSRow
}

// LoadEDFallback decodes the embedded emergency department fallback table
func LoadEDFallback() (*FallbackTable, error) {
	var f fallbackFile
	if err := decodeAsset("opps_ed_fallback.hcl", &f); err != nil {
		return nil, err
	}

	t := &FallbackTable{
		Label: f.Label,
		Year:  f.Year,
		rates: make(map[string]types.OPPSRow, len(f.Rates)),
	}
	for _, r := range f.Rates {
		rate, err := decimal.NewFromString(r.PaymentRate)
		if err != nil {
			return nil, apperrors.Parsing("payment_rate for "+r.HCPCS, err)
		}
		t.rates[r.HCPCS] = types.OPPSRow{
			Year:            f.Year,
			HCPCS:           r.HCPCS,
			APC:             r.APC,
			StatusIndicator: r.StatusIndicator,
			PaymentRate:     types.Amount(rate),
			Description:     r.Description,
		}
	}
	return t, nil
}

// MustLoadEDFallback panics if the embedded table is broken
func MustLoadEDFallback() *FallbackTable {
	t, err := LoadEDFallback()
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the fallback row for a code
func (t *FallbackTable) Lookup(hcpcs string) (types.OPPSRow, bool) {
	if t == nil {
		return types.OPPSRow{}, false
	}
	r, ok := t.rates[hcpcs]
	return r, ok
}
