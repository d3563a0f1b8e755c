package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicare-refprice/core/refdata"
	"medicare-refprice/core/types"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

var sampleTables = map[string]string{
	FileMPFS: "\ufeffyear,hcpcs,modifier,qp_status,work_rvu,nonfac_pe_rvu,fac_pe_rvu,mp_rvu,nonfac_fee,fac_fee,conversion_factor,status\n" +
		"2025,99213,,nonQP,1.3,1.2,0.5,0.1,,,34.6062,A\n" +
		"2025,99214,,nonQP,1.92,1.56,0.71,0.13,,,,A\n" +
		"2025,,,,1,1,1,1,,,,A\n" +
		"bad,99215,,,1,1,1,1,,,,A\n",
	FileOPPS: "year,hcpcs,apc,status_indicator,payment_rate,description\n" +
		"2025,99284,5024,j2,$425.82,Level 4 ED visit\n" +
		"2025,36415,,N,,Venipuncture\n",
	FileDMEPOS: "year,hcpcs,modifier,state_abbr,fee,fee_rental,ceiling,floor\n" +
		"2025,e0100,,CA,45.00,,50.00,38.25\n" +
		"2025,E0100,NU,,NaN,,,\n" +
		"2025,E0100,,ZZ,10,,,\n",
	FileCrosswalk: "zip5,carrier,locality_num,state_abbr,county_name\n" +
		"94103,01112,05,ca,SAN FRANCISCO\n" +
		"9410,01112,05,CA,BAD\n",
	FileGPCI: "carrier,locality_num,locality_name,state_abbr,work_gpci,pe_gpci,mp_gpci\n" +
		"01112,05,SAN FRANCISCO,CA,1.1,1.5,0.6\n" +
		"01182,18,LOS ANGELES,CA,1.05,1.2,0.7\n" +
		"01182,99,BROKEN,CA,0,1.2,0.7\n",
}

func TestLoadDir(t *testing.T) {
	dir := writeFiles(t, sampleTables)
	l := NewLoader(refdata.MustLoadGeography(), nil)

	tables, result, err := l.LoadDir(dir, "")
	require.NoError(t, err)
	require.NotNil(t, result)

	// the blank hcpcs row parses but is rejected by governance; "bad" never parses
	assert.Len(t, tables.MPFS, 2)
	assert.Equal(t, "34.6062", tables.MPFS[0].ConversionFactor.Decimal.String())
	assert.False(t, tables.MPFS[0].NonfacFee.Valid)
	assert.False(t, tables.MPFS[1].ConversionFactor.Valid)

	require.Len(t, tables.OPPS, 2)
	assert.Equal(t, "J2", tables.OPPS[0].StatusIndicator)
	assert.Equal(t, "425.82", tables.OPPS[0].PaymentRate.Decimal.StringFixed(2))
	assert.False(t, tables.OPPS[1].PaymentRate.Valid)

	require.Len(t, tables.DME, 2)
	assert.Equal(t, types.DatasetDMEPOS, tables.DME[0].Table)
	assert.Equal(t, "E0100", tables.DME[0].HCPCS)
	assert.False(t, tables.DME[1].Fee.Valid)

	require.Len(t, tables.Crosswalk, 1)
	assert.Equal(t, "CA", tables.Crosswalk[0].State)

	assert.Len(t, tables.GPCI, 2)
	require.Len(t, tables.StateAverages, 1)
	assert.InDelta(t, 1.075, tables.StateAverages[0].Work, 1e-9)
	assert.Equal(t, 2, tables.StateAverages[0].Rows)

	assert.True(t, result.IsValid)
	assert.NotEmpty(t, result.Checksum)
	assert.Equal(t, 1, result.Tables["gpci"].Rejected)
	assert.Equal(t, 1, result.Tables["crosswalk"].Rejected)
	assert.Equal(t, 1, result.Tables["dmepos"].Rejected)

	// loaded tables serve the engine directly
	store := refdata.NewMemoryStore(tables)
	row, err := store.OPPS(context.Background(), "99284", 2025)
	require.NoError(t, err)
	assert.Equal(t, "5024", row.APC)
}

func TestLoadDirMissingFiles(t *testing.T) {
	l := NewLoader(refdata.MustLoadGeography(), nil)
	tables, result, err := l.LoadDir(t.TempDir(), "")
	require.NoError(t, err)
	assert.Empty(t, tables.MPFS)
	assert.Empty(t, tables.GPCI)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Warnings)
}

func TestLoadDirWithFeed(t *testing.T) {
	dir := writeFiles(t, map[string]string{"feed.csv": sampleFeed})
	l := NewLoader(refdata.MustLoadGeography(), nil)

	tables, _, err := l.LoadDir(dir, filepath.Join(dir, "feed.csv"))
	require.NoError(t, err)
	require.Len(t, tables.MPFS, 3)
	assert.Equal(t, "CA", tables.MPFS[0].State)
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, _, err := readCSV(strings.NewReader("year,apc\n2025,5024\n"), oppsColumns, parseOPPSRow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hcpcs")
}

func TestReadCSVEmpty(t *testing.T) {
	rows, skipped, err := readCSV(strings.NewReader(""), oppsColumns, parseOPPSRow)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, skipped)
}
