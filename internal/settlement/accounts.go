package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/guildconfig"
	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/silver"
)

// PurgeSummary describes the accounts a purge removes (or removed).
type PurgeSummary struct {
	Accounts []ledger.Account
	Deleted  int
	Total    decimal.Decimal
}

func summarize(accounts []ledger.Account) PurgeSummary {
	return PurgeSummary{Accounts: accounts, Deleted: len(accounts), Total: ledger.Sum(accounts)}
}

func mapAccountErr(err error) error {
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	return err
}

func (e *Engine) Balance(ctx context.Context, key ledger.Key) (ledger.Account, error) {
	a, err := e.store.Account(ctx, key)
	if err != nil {
		return ledger.Account{}, mapAccountErr(err)
	}
	return a, nil
}

func (e *Engine) TotalBalance(ctx context.Context, guildID string, exclude ...string) (decimal.Decimal, error) {
	return e.store.TotalBalance(ctx, guildID, exclude)
}

// Leaderboard returns the guild's highest balances. limit <= 0 returns every account.
func (e *Engine) Leaderboard(ctx context.Context, guildID string, limit int) ([]ledger.Account, error) {
	accounts, err := e.store.Accounts(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// Deposit credits an account, creating it when missing.
func (e *Engine) Deposit(ctx context.Context, key ledger.Key, amount decimal.Decimal, actorID string) (ledger.Account, error) {
	if !key.Valid() || !amount.IsPositive() {
		return ledger.Account{}, fmt.Errorf("%w: deposit needs an account and a positive amount", ErrInvalidInput)
	}
	if _, err := e.authorize(ctx, key.GuildID, actorID, false); err != nil {
		return ledger.Account{}, err
	}
	a, err := e.store.Credit(ctx, key, amount)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("deposit: %w", err)
	}
	e.log.Info("deposit",
		zap.String("guild_id", key.GuildID),
		zap.String("user_id", key.UserID),
		zap.String("actor_id", actorID),
		zap.Stringer("amount", amount))
	return a, nil
}

// Withdraw debits an existing account. The balance may go negative.
func (e *Engine) Withdraw(ctx context.Context, key ledger.Key, amount decimal.Decimal, actorID string) (ledger.Account, error) {
	if !key.Valid() || !amount.IsPositive() {
		return ledger.Account{}, fmt.Errorf("%w: withdrawal needs an account and a positive amount", ErrInvalidInput)
	}
	if _, err := e.authorize(ctx, key.GuildID, actorID, false); err != nil {
		return ledger.Account{}, err
	}

	var a ledger.Account
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.Account(ctx, key); err != nil {
			return mapAccountErr(err)
		}
		var err error
		a, err = tx.Debit(ctx, key, amount)
		return err
	})
	if err != nil {
		return ledger.Account{}, err
	}
	e.log.Info("withdrawal",
		zap.String("guild_id", key.GuildID),
		zap.String("user_id", key.UserID),
		zap.String("actor_id", actorID),
		zap.Stringer("amount", amount))
	return a, nil
}

// Payout empties an existing account and returns the amount paid out.
func (e *Engine) Payout(ctx context.Context, key ledger.Key, actorID string) (decimal.Decimal, error) {
	if !key.Valid() {
		return decimal.Zero, fmt.Errorf("%w: payout needs an account", ErrInvalidInput)
	}
	if _, err := e.authorize(ctx, key.GuildID, actorID, false); err != nil {
		return decimal.Zero, err
	}

	var paid decimal.Decimal
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		a, err := tx.Account(ctx, key)
		if err != nil {
			return mapAccountErr(err)
		}
		if _, err := tx.SetBalance(ctx, key, decimal.Zero); err != nil {
			return err
		}
		paid = a.Balance
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	e.log.Info("payout",
		zap.String("guild_id", key.GuildID),
		zap.String("user_id", key.UserID),
		zap.String("actor_id", actorID),
		zap.Stringer("amount", paid))
	return paid, nil
}

// PreviewPurge lists the accounts PurgeAccounts would delete for the same member list.
func (e *Engine) PreviewPurge(ctx context.Context, guildID string, validMembers []string, approverID string) (PurgeSummary, error) {
	if len(validMembers) == 0 {
		return PurgeSummary{}, fmt.Errorf("%w: member list is empty", ErrInvalidInput)
	}
	if _, err := e.authorize(ctx, guildID, approverID, false); err != nil {
		return PurgeSummary{}, err
	}
	stale, err := e.store.StaleAccounts(ctx, guildID, validMembers)
	if err != nil {
		return PurgeSummary{}, fmt.Errorf("list stale accounts: %w", err)
	}
	return summarize(stale), nil
}

// PurgeAccounts deletes every account in the guild whose user is not a valid member.
// Balances are discarded, not transferred.
func (e *Engine) PurgeAccounts(ctx context.Context, guildID string, validMembers []string, approverID string) (PurgeSummary, error) {
	if len(validMembers) == 0 {
		return PurgeSummary{}, fmt.Errorf("%w: member list is empty", ErrInvalidInput)
	}
	if _, err := e.authorize(ctx, guildID, approverID, false); err != nil {
		return PurgeSummary{}, err
	}

	var deleted []ledger.Account
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		deleted, err = tx.DeleteStaleAccounts(ctx, guildID, validMembers)
		return err
	})
	if err != nil {
		return PurgeSummary{}, fmt.Errorf("purge accounts: %w", err)
	}

	sum := summarize(deleted)
	e.log.Info("accounts purged",
		zap.String("guild_id", guildID),
		zap.String("approver_id", approverID),
		zap.Int("deleted", sum.Deleted),
		zap.Stringer("total", sum.Total))
	return sum, nil
}

// PurgeAccount deletes a single member's account.
func (e *Engine) PurgeAccount(ctx context.Context, key ledger.Key, approverID string) (ledger.Account, error) {
	if _, err := e.authorize(ctx, key.GuildID, approverID, false); err != nil {
		return ledger.Account{}, err
	}
	a, err := e.store.DeleteAccount(ctx, key)
	if err != nil {
		return ledger.Account{}, mapAccountErr(err)
	}
	e.log.Info("account purged",
		zap.String("guild_id", key.GuildID),
		zap.String("user_id", key.UserID),
		zap.String("approver_id", approverID),
		zap.Stringer("balance", a.Balance))
	return a, nil
}

// CancelPurge checks that actorID may dismiss a purge proposal. Nothing is stored.
func (e *Engine) CancelPurge(ctx context.Context, guildID, actorID string) error {
	if _, err := e.authorize(ctx, guildID, actorID, false); err != nil {
		return err
	}
	e.log.Info("purge canceled",
		zap.String("guild_id", guildID),
		zap.String("actor_id", actorID))
	return nil
}

func (e *Engine) Configuration(ctx context.Context, guildID string) (*guildconfig.Configuration, error) {
	return e.configuration(ctx, guildID)
}

func (e *Engine) SetLootSplitModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error {
	if !silver.ValidModifier(modifier) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, guildconfig.ErrInvalidModifier)
	}
	return e.configs.SetLootSplitModifier(ctx, guildID, modifier)
}

func (e *Engine) SetLootSplitAuthRole(ctx context.Context, guildID, roleID string) error {
	if roleID == "" {
		return fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	return e.configs.SetLootSplitAuthRole(ctx, guildID, roleID)
}

func (e *Engine) SetBuybackModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error {
	if !silver.ValidModifier(modifier) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, guildconfig.ErrInvalidModifier)
	}
	return e.configs.SetBuybackModifier(ctx, guildID, modifier)
}

// BuybackQuote prices a buyback with the guild's buyback modifier.
func (e *Engine) BuybackQuote(ctx context.Context, guildID string, amount decimal.Decimal) (value, modifier decimal.Decimal, err error) {
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	cfg, err := e.configuration(ctx, guildID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if cfg.BuybackPercentModifier == nil {
		return decimal.Zero, decimal.Zero, ErrConfigurationMissing
	}
	return silver.BuybackValue(amount, *cfg.BuybackPercentModifier), *cfg.BuybackPercentModifier, nil
}
