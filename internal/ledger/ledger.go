// Package ledger defines payout accounts and the operations that move silver between them.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrAccountNotFound = errors.New("payout account not found")

// Key identifies a payout account.
type Key struct {
	GuildID string
	UserID  string
}

func (k Key) Valid() bool {
	return k.GuildID != "" && k.UserID != ""
}

type Account struct {
	GuildID   string          `json:"guild_id"`
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a Account) Key() Key {
	return Key{GuildID: a.GuildID, UserID: a.UserID}
}

// Delta is one signed balance change applied by BatchApply.
type Delta struct {
	Key    Key
	Amount decimal.Decimal
}

// Credits builds one delta of amount per user in the guild.
func Credits(guildID string, userIDs []string, amount decimal.Decimal) []Delta {
	out := make([]Delta, 0, len(userIDs))
	for _, uid := range userIDs {
		out = append(out, Delta{Key: Key{GuildID: guildID, UserID: uid}, Amount: amount})
	}
	return out
}

// Debits is Credits with the amount negated.
func Debits(guildID string, userIDs []string, amount decimal.Decimal) []Delta {
	return Credits(guildID, userIDs, amount.Neg())
}

// Ledger stores payout account balances.
//
// Credit and Debit upsert: a missing account is created holding the delta, so a debit may
// leave a negative balance. BatchApply commits every delta or none of them.
type Ledger interface {
	Account(ctx context.Context, key Key) (Account, error)
	Credit(ctx context.Context, key Key, amount decimal.Decimal) (Account, error)
	Debit(ctx context.Context, key Key, amount decimal.Decimal) (Account, error)
	SetBalance(ctx context.Context, key Key, amount decimal.Decimal) (Account, error)
	BatchApply(ctx context.Context, deltas []Delta) error

	// Accounts lists the guild's accounts, highest balance first.
	Accounts(ctx context.Context, guildID string) ([]Account, error)
	TotalBalance(ctx context.Context, guildID string, exclude []string) (decimal.Decimal, error)
	// StaleAccounts lists the guild's accounts whose user is not in keep.
	StaleAccounts(ctx context.Context, guildID string, keep []string) ([]Account, error)
	// DeleteStaleAccounts deletes what StaleAccounts would return and reports the deleted rows.
	DeleteStaleAccounts(ctx context.Context, guildID string, keep []string) ([]Account, error)
	DeleteAccount(ctx context.Context, key Key) (Account, error)
}

// Sum adds up the balances of accounts.
func Sum(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}
