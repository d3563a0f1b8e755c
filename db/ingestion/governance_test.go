package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

func TestValidateLowDistinctCodes(t *testing.T) {
	v := NewValidator(nil)
	v.AddContract(IngestionContract{Dataset: types.DatasetOPPS, MinDistinctCodes: 3})

	tables := refdata.Tables{
		OPPS: []types.OPPSRow{
			{Year: 2024, HCPCS: "99284", StatusIndicator: "J2"},
			{Year: 2025, HCPCS: "99284", StatusIndicator: "J2"},
			{Year: 2025, HCPCS: "36415", StatusIndicator: "N"},
		},
	}
	out, result := v.Validate(tables)

	assert.Len(t, out.OPPS, 3)
	assert.True(t, result.IsValid)
	opps := result.Tables["opps"]
	assert.Equal(t, 2, opps.DistinctCodes)
	assert.Equal(t, []int{2024, 2025}, opps.Years)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "only 2 distinct codes")

	// empty schedules are not flagged
	assert.Equal(t, 0, result.Tables["mpfs"].Loaded)
}

func TestValidateAllGPCIRejected(t *testing.T) {
	v := NewValidator(nil)
	_, result := v.Validate(refdata.Tables{
		GPCI: []types.GPCIRow{{Locality: "01", State: "AL", Work: 1, PE: -1, MP: 1}},
	})
	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 1)
}

func TestValidateCapsErrors(t *testing.T) {
	v := NewValidator(nil)
	var rows []types.CrosswalkRow
	for i := 0; i < 80; i++ {
		rows = append(rows, types.CrosswalkRow{Zip: "1"})
	}
	_, result := v.Validate(refdata.Tables{Crosswalk: rows})
	assert.Len(t, result.Errors, 51)
	assert.Equal(t, "... 30 more", result.Errors[50])
	assert.Equal(t, 80, result.Tables["crosswalk"].Rejected)
}

func TestChecksumIsStable(t *testing.T) {
	a := refdata.Tables{OPPS: []types.OPPSRow{{Year: 2025, HCPCS: "99284"}}}
	b := refdata.Tables{OPPS: []types.OPPSRow{{Year: 2025, HCPCS: "99285"}}}
	assert.Equal(t, CalculateChecksum(a), CalculateChecksum(a))
	assert.NotEqual(t, CalculateChecksum(a), CalculateChecksum(b))
}
