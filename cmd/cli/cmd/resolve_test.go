package cmd

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicare-refprice/core/output"
	"medicare-refprice/core/types"
)

func TestParseCodeArg(t *testing.T) {
	tests := []struct {
		arg      string
		hcpcs    string
		modifier string
		billed   string
		wantErr  bool
	}{
		{"99213", "99213", "", "", false},
		{"e0100:nu", "E0100", "NU", "", false},
		{"99214=250.00", "99214", "", "250", false},
		{"36415:QW=$12.50", "36415", "QW", "12.5", false},
		{"99213=abc", "", "", "", true},
		{":26", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseCodeArg(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hcpcs, got.HCPCS)
			assert.Equal(t, tt.modifier, got.Modifier)
			if tt.billed == "" {
				assert.Nil(t, got.BilledAmount)
			} else {
				require.NotNil(t, got.BilledAmount)
				assert.Equal(t, tt.billed, got.BilledAmount.String())
			}
		})
	}
}

func TestBuildRequestFromFlags(t *testing.T) {
	resolveInput = ""
	resolveSetting = "Facility"
	resolveZip = "94103"
	resolveState = ""
	resolveYear = 2024
	defer func() { resolveSetting, resolveZip, resolveYear = "office", "", 0 }()

	req, err := buildRequest(nil, []string{"99284", "J1100:JW"})
	require.NoError(t, err)
	assert.Equal(t, types.CareFacility, req.CareSetting)
	assert.Equal(t, "94103", req.Zip)
	require.NotNil(t, req.Year)
	assert.Equal(t, 2024, *req.Year)
	assert.Len(t, req.Codes, 2)

	_, err = buildRequest(nil, nil)
	assert.Error(t, err)
}

func TestBuildRequestFromStdin(t *testing.T) {
	resolveInput = "-"
	defer func() { resolveInput = "" }()

	req, err := buildRequest(strings.NewReader(`{"careSetting":"office","codes":[{"hcpcs":"99213","billedAmount":120}]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, types.CareOffice, req.CareSetting)
	require.Len(t, req.Codes, 1)
	assert.True(t, req.Codes[0].BilledAmount.Equal(decimal.NewFromInt(120)))
}

func TestFormatterFollowsFlag(t *testing.T) {
	defer func() { outputFormat = "text" }()

	outputFormat = "markdown"
	f, err := formatter()
	require.NoError(t, err)
	assert.Equal(t, output.FormatMarkdown, f.Format())

	outputFormat = "yaml"
	_, err = formatter()
	assert.Error(t, err)
}
