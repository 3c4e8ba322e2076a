// Package guildconfig holds per-guild settings read by the settlement engine.
package guildconfig

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("guild configuration not found")
	ErrInvalidModifier = errors.New("modifier must be between 0 and 1")
)

type Configuration struct {
	GuildID                  string           `json:"guild_id"`
	LootSplitPercentModifier *decimal.Decimal `json:"lootsplit_percent_modifier,omitempty"`
	LootSplitAuthRoleID      string           `json:"lootsplit_auth_role_id,omitempty"`
	BuybackPercentModifier   *decimal.Decimal `json:"buyback_percent_modifier,omitempty"`
}

// CanSettleSplits reports whether both the split modifier and the approver role are set.
func (c *Configuration) CanSettleSplits() bool {
	return c != nil && c.LootSplitPercentModifier != nil && c.LootSplitAuthRoleID != ""
}

// HasAuthRole reports whether the approver role is set.
func (c *Configuration) HasAuthRole() bool {
	return c != nil && c.LootSplitAuthRoleID != ""
}

// Reader loads a guild's configuration. A guild that never configured anything yields
// ErrNotFound.
type Reader interface {
	Configuration(ctx context.Context, guildID string) (*Configuration, error)
}

// Store is a Reader that can also update individual settings, creating the row on demand.
type Store interface {
	Reader
	SetLootSplitModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error
	SetLootSplitAuthRole(ctx context.Context, guildID, roleID string) error
	SetBuybackModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error
}
