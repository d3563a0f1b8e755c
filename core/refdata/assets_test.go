package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGeography(t *testing.T) {
	g, err := LoadGeography()
	require.NoError(t, err)

	st, ok := g.CarrierState("01112")
	assert.True(t, ok)
	assert.Equal(t, "CA", st)

	name, ok := g.LocalityName("13282", "01")
	assert.True(t, ok)
	assert.Contains(t, name, "MANHATTAN")

	_, ok = g.CarrierState("99999")
	assert.False(t, ok)
}

func TestStateForZip(t *testing.T) {
	g := MustLoadGeography()

	tests := []struct {
		zip   string
		state string
		ok    bool
	}{
		{"35203", "AL", true},
		{"10001", "NY", true},
		{"94103", "CA", true},
		{"77030", "TX", true},
		{"00000", "", false},
		{"1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.zip, func(t *testing.T) {
			st, ok := g.StateForZip(tt.zip)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.state, st)
		})
	}
}

func TestLoadEDFallback(t *testing.T) {
	tbl, err := LoadEDFallback()
	require.NoError(t, err)

	assert.NotEmpty(t, tbl.Label)
	for _, code := range []string{"99281", "99282", "99283", "99284", "99285", "99291"} {
		_, ok := tbl.Lookup(code)
		assert.True(t, ok, code)
	}
	_, ok := tbl.Lookup("99213")
	assert.False(t, ok)

	row, ok := tbl.Lookup("99284")
	require.True(t, ok)
	assert.Equal(t, "425.82", row.PaymentRate.Decimal.StringFixed(2))
	assert.Equal(t, "J2", row.StatusIndicator)
	assert.Equal(t, tbl.Year, row.Year)

	_, ok = tbl.Lookup("99213")
	assert.False(t, ok)

	var empty *FallbackTable
	_, ok = empty.Lookup("99284")
	assert.False(t, ok)
}
