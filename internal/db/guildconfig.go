package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/susu3304/guildbank/internal/guildconfig"
)

func (db *DB) Configuration(ctx context.Context, guildID string) (*guildconfig.Configuration, error) {
	var (
		cfg             guildconfig.Configuration
		lootSplit, buyb decimal.NullDecimal
	)
	err := db.pool.QueryRow(ctx,
		`SELECT guild_id, lootsplit_percent_modifier, lootsplit_auth_role_id, buyback_percent_modifier
		 FROM guild_configurations WHERE guild_id = $1`,
		guildID,
	).Scan(&cfg.GuildID, &lootSplit, &cfg.LootSplitAuthRoleID, &buyb)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, guildconfig.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lootSplit.Valid {
		cfg.LootSplitPercentModifier = &lootSplit.Decimal
	}
	if buyb.Valid {
		cfg.BuybackPercentModifier = &buyb.Decimal
	}
	return &cfg, nil
}

func (db *DB) SetLootSplitModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO guild_configurations (guild_id, lootsplit_percent_modifier) VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET lootsplit_percent_modifier = EXCLUDED.lootsplit_percent_modifier`,
		guildID, modifier,
	)
	return err
}

func (db *DB) SetLootSplitAuthRole(ctx context.Context, guildID, roleID string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO guild_configurations (guild_id, lootsplit_auth_role_id) VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET lootsplit_auth_role_id = EXCLUDED.lootsplit_auth_role_id`,
		guildID, roleID,
	)
	return err
}

func (db *DB) SetBuybackModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO guild_configurations (guild_id, buyback_percent_modifier) VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET buyback_percent_modifier = EXCLUDED.buyback_percent_modifier`,
		guildID, modifier,
	)
	return err
}
