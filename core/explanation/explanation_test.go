package explanation

import (
	"strings"
	"testing"
)

func TestNarrativePriced(t *testing.T) {
	e := New("99213").
		WithTier("MPFS").
		WithFormula("(work·gW + pe·gPE + mp·gMP) · CF").
		AddInput("work_rvu", "1.30", "mpfs").
		AddInput("cf", "34.6062", "default").
		WithAmount("103.82")

	got := e.ToNarrative()
	for _, want := range []string{"99213", "$103.82", "MPFS", "work_rvu=1.30", "cf=34.6062"} {
		if !strings.Contains(got, want) {
			t.Errorf("narrative %q missing %q", got, want)
		}
	}
}

func TestNarrativeUnpriced(t *testing.T) {
	e := New("99284").AsUnpriced("OPPS status indicator N (packaged)", []string{"OPPS", "MPFS"})

	got := e.ToNarrative()
	if !strings.Contains(got, "after trying OPPS, MPFS") {
		t.Errorf("unexpected narrative %q", got)
	}

	bare := New("X9999").AsUnpriced("no HCPCS code supplied", nil)
	if got := bare.ToNarrative(); got != "X9999 has no reference price: no HCPCS code supplied" {
		t.Errorf("unexpected narrative %q", got)
	}
}
