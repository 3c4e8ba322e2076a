package silver

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGuildCut(t *testing.T) {
	tests := []struct {
		name     string
		gross    string
		modifier string
		want     string
	}{
		{name: "exact", gross: "1000", modifier: "0.7", want: "700"},
		{name: "floors fraction", gross: "999", modifier: "0.7", want: "699"},
		{name: "zero modifier", gross: "1000", modifier: "0", want: "0"},
		{name: "full modifier", gross: "1234.56", modifier: "1", want: "1234"},
		{name: "zero gross", gross: "0", modifier: "0.5", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GuildCut(d(tt.gross), d(tt.modifier))
			if !got.Equal(d(tt.want)) {
				t.Errorf("GuildCut(%s, %s) = %s, want %s", tt.gross, tt.modifier, got, tt.want)
			}
		})
	}
}

func TestGuildCutBoundedAndMonotonic(t *testing.T) {
	modifiers := []string{"0", "0.1", "0.33", "0.5", "0.7", "0.99", "1"}
	for _, m := range modifiers {
		mod := d(m)
		prev := decimal.Zero
		for gross := int64(0); gross <= 2000; gross += 7 {
			g := decimal.NewFromInt(gross).Add(d("0.25"))
			cut := GuildCut(g, mod)
			if cut.GreaterThan(g) {
				t.Fatalf("cut %s exceeds gross %s (modifier %s)", cut, g, m)
			}
			if cut.LessThan(prev) {
				t.Fatalf("cut decreased from %s to %s at gross %s (modifier %s)", prev, cut, g, m)
			}
			prev = cut
		}
	}
}

func TestPerParticipantShare(t *testing.T) {
	share, err := PerParticipantShare(d("1000"), d("100"), d("0.7"), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !share.Equal(d("450")) {
		t.Errorf("share = %s, want 450", share)
	}
}

func TestPerParticipantShareRejectsEmptyGroup(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := PerParticipantShare(d("1000"), d("0"), d("0.5"), n); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("n=%d: err = %v, want ErrInvalidInput", n, err)
		}
	}
}

func TestPerParticipantShareRoundingBound(t *testing.T) {
	cases := []struct {
		gross, donated, modifier string
	}{
		{"1000", "100", "0.7"},
		{"1", "1", "0.33"},
		{"987654.321", "12.5", "0.61"},
		{"10", "0", "1"},
	}
	for _, c := range cases {
		for n := 1; n <= 25; n++ {
			share, err := PerParticipantShare(d(c.gross), d(c.donated), d(c.modifier), n)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			total := GuildCut(d(c.gross), d(c.modifier)).Add(d(c.donated))
			diff := share.Mul(decimal.NewFromInt(int64(n))).Sub(total).Abs()
			if diff.GreaterThanOrEqual(decimal.NewFromInt(int64(n))) {
				t.Errorf("%+v n=%d: share*n deviates by %s", c, n, diff)
			}
		}
	}
}

func TestRegearShare(t *testing.T) {
	tests := []struct {
		name  string
		total string
		tier  Tier
		want  string
	}{
		{name: "full", total: "1000", tier: TierFull, want: "1000"},
		{name: "reduced", total: "1000", tier: TierReduced, want: "700"},
		{name: "reduced floors", total: "1001", tier: TierReduced, want: "700"},
		{name: "full keeps fraction", total: "10.5", tier: TierFull, want: "10.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RegearShare(d(tt.total), tt.tier)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("RegearShare = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := RegearShare(d("1"), Tier(9)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown tier: err = %v", err)
	}
}

func TestValidModifier(t *testing.T) {
	for s, want := range map[string]bool{"0": true, "0.7": true, "1": true, "1.01": false, "-0.1": false} {
		if got := ValidModifier(d(s)); got != want {
			t.Errorf("ValidModifier(%s) = %v, want %v", s, got, want)
		}
	}
}
