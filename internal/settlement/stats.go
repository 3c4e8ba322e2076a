package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/susu3304/guildbank/internal/silver"
)

// ParticipantStats summarizes a member's part in the guild's approved loot splits.
type ParticipantStats struct {
	GuildID string
	UserID  string
	Splits  int
	// Gross is the silver plus donations of every counted split.
	Gross decimal.Decimal
	// Earned is what the member was credited across those splits.
	Earned decimal.Decimal
}

// ParticipantStats totals the approved splits that include userID. Earnings use the share
// recorded at approval; splits approved without one are priced at the current modifier.
func (e *Engine) ParticipantStats(ctx context.Context, guildID, userID string) (ParticipantStats, error) {
	stats := ParticipantStats{GuildID: guildID, UserID: userID, Gross: decimal.Zero, Earned: decimal.Zero}
	if guildID == "" || userID == "" {
		return stats, fmt.Errorf("%w: guild and user are required", ErrInvalidInput)
	}

	splits, err := e.store.ParticipantLootSplits(ctx, guildID, userID)
	if err != nil {
		return stats, fmt.Errorf("list loot splits of %s: %w", userID, err)
	}

	var current *decimal.Decimal
	for _, s := range splits {
		share := s.Share
		if share == nil {
			if current == nil {
				cfg, err := e.configuration(ctx, guildID)
				if err != nil {
					return stats, err
				}
				if cfg.LootSplitPercentModifier == nil {
					return stats, ErrConfigurationMissing
				}
				current = cfg.LootSplitPercentModifier
			}
			v, err := silver.PerParticipantShare(s.Silver, s.Donated, *current, len(s.Participants))
			if err != nil {
				return stats, fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			share = &v
		}
		stats.Splits++
		stats.Gross = stats.Gross.Add(s.Silver).Add(s.Donated)
		stats.Earned = stats.Earned.Add(*share)
	}
	return stats, nil
}
