package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/susu3304/guildbank/internal/ledger"
)

const accountColumns = `guild_id, user_id, balance, updated_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.GuildID, &a.UserID, &a.Balance, &a.UpdatedAt)
	return a, err
}

func collectAccounts(rows pgx.Rows, err error) ([]ledger.Account, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// nonNil keeps `= ANY($n)` from comparing against NULL.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (s *store) Account(ctx context.Context, key ledger.Key) (ledger.Account, error) {
	a, err := scanAccount(s.q.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM payout_accounts WHERE guild_id = $1 AND user_id = $2`,
		key.GuildID, key.UserID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, err
}

func (s *store) add(ctx context.Context, q querier, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	return scanAccount(q.QueryRow(ctx,
		`INSERT INTO payout_accounts (guild_id, user_id, balance, updated_at)
		 VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		 ON CONFLICT (guild_id, user_id) DO UPDATE
		 SET balance = payout_accounts.balance + EXCLUDED.balance,
			 updated_at = EXCLUDED.updated_at
		 RETURNING `+accountColumns,
		key.GuildID, key.UserID, amount,
	))
}

func (s *store) Credit(ctx context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	return s.add(ctx, s.q, key, amount)
}

func (s *store) Debit(ctx context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	return s.add(ctx, s.q, key, amount.Neg())
}

func (s *store) SetBalance(ctx context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	return scanAccount(s.q.QueryRow(ctx,
		`INSERT INTO payout_accounts (guild_id, user_id, balance, updated_at)
		 VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		 ON CONFLICT (guild_id, user_id) DO UPDATE
		 SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		 RETURNING `+accountColumns,
		key.GuildID, key.UserID, amount,
	))
}

// BatchApply applies every delta in its own transaction, or in a savepoint when the store
// is already inside one.
func (s *store) BatchApply(ctx context.Context, deltas []ledger.Delta) error {
	if len(deltas) == 0 {
		return nil
	}
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Fixed row order so concurrent batches lock accounts in the same sequence.
	ordered := append([]ledger.Delta(nil), deltas...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Key.GuildID != ordered[j].Key.GuildID {
			return ordered[i].Key.GuildID < ordered[j].Key.GuildID
		}
		return ordered[i].Key.UserID < ordered[j].Key.UserID
	})

	for _, d := range ordered {
		if _, err := s.add(ctx, tx, d.Key, d.Amount); err != nil {
			return fmt.Errorf("apply %s to %s: %w", d.Amount, d.Key.UserID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *store) Accounts(ctx context.Context, guildID string) ([]ledger.Account, error) {
	return collectAccounts(s.q.Query(ctx,
		`SELECT `+accountColumns+` FROM payout_accounts
		 WHERE guild_id = $1
		 ORDER BY balance DESC, user_id`,
		guildID,
	))
}

func (s *store) TotalBalance(ctx context.Context, guildID string, exclude []string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM payout_accounts
		 WHERE guild_id = $1 AND NOT (user_id = ANY($2))`,
		guildID, nonNil(exclude),
	).Scan(&total)
	return total, err
}

func (s *store) StaleAccounts(ctx context.Context, guildID string, keep []string) ([]ledger.Account, error) {
	return collectAccounts(s.q.Query(ctx,
		`SELECT `+accountColumns+` FROM payout_accounts
		 WHERE guild_id = $1 AND NOT (user_id = ANY($2))
		 ORDER BY balance DESC, user_id`,
		guildID, nonNil(keep),
	))
}

func (s *store) DeleteStaleAccounts(ctx context.Context, guildID string, keep []string) ([]ledger.Account, error) {
	return collectAccounts(s.q.Query(ctx,
		`WITH deleted AS (
			DELETE FROM payout_accounts
			WHERE guild_id = $1 AND NOT (user_id = ANY($2))
			RETURNING `+accountColumns+`
		)
		SELECT `+accountColumns+` FROM deleted ORDER BY balance DESC, user_id`,
		guildID, nonNil(keep),
	))
}

func (s *store) DeleteAccount(ctx context.Context, key ledger.Key) (ledger.Account, error) {
	a, err := scanAccount(s.q.QueryRow(ctx,
		`DELETE FROM payout_accounts WHERE guild_id = $1 AND user_id = $2 RETURNING `+accountColumns,
		key.GuildID, key.UserID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, err
}
