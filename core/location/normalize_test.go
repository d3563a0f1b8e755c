package location

import "testing"

func TestNormalizeZip(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain five digits", "94110", "94110", true},
		{"zip plus four with dash", "94110-1234", "94110", true},
		{"zip plus four run together", "941101234", "94110", true},
		{"surrounding whitespace", "  10001 ", "10001", true},
		{"leading zero kept", "02139", "02139", true},
		{"too short", "9411", "", false},
		{"too long", "9411012", "", false},
		{"letters only", "abcde", "", false},
		{"empty", "", "", false},
		{"mixed noise", "zip: 60614", "60614", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeZip(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeZip(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"ca", "CA", true},
		{" ny ", "NY", true},
		{"PR", "PR", true},
		{"DC", "DC", true},
		{"XX", "", false},
		{"C1", "", false},
		{"CAL", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeState(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeState(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestProvided(t *testing.T) {
	if Provided("   ") {
		t.Error("blank input should not count as provided")
	}
	if !Provided("abc") {
		t.Error("malformed input still counts as provided")
	}
}
