// Package silver holds the pure arithmetic behind loot splits, regears and buybacks.
package silver

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid split input")

// Tier selects the reimbursement rate of a regear.
type Tier int

const (
	TierFull Tier = iota
	TierReduced
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierReduced:
		return "reduced"
	default:
		return "unknown"
	}
}

// ReducedRate is the fraction paid out by a reduced regear.
var ReducedRate = decimal.RequireFromString("0.7")

// GuildCut returns floor(gross * modifier).
func GuildCut(gross, modifier decimal.Decimal) decimal.Decimal {
	return gross.Mul(modifier).Floor()
}

// PerParticipantShare splits the guild cut and the donated silver evenly. The result is
// not rounded.
func PerParticipantShare(gross, donated, modifier decimal.Decimal, participants int) (decimal.Decimal, error) {
	if participants <= 0 {
		return decimal.Zero, ErrInvalidInput
	}
	n := decimal.NewFromInt(int64(participants))
	return GuildCut(gross, modifier).Div(n).Add(donated.Div(n)), nil
}

// RegearShare returns the amount credited for a regear settled at the given tier.
func RegearShare(totalCost decimal.Decimal, tier Tier) (decimal.Decimal, error) {
	switch tier {
	case TierFull:
		return totalCost, nil
	case TierReduced:
		return totalCost.Mul(ReducedRate).Floor(), nil
	default:
		return decimal.Zero, ErrInvalidInput
	}
}

// BuybackValue returns floor(silver * modifier).
func BuybackValue(amount, modifier decimal.Decimal) decimal.Decimal {
	return amount.Mul(modifier).Floor()
}

// ValidModifier reports whether m lies in [0,1].
func ValidModifier(m decimal.Decimal) bool {
	return !m.IsNegative() && m.LessThanOrEqual(decimal.NewFromInt(1))
}
