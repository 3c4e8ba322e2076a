package settlement

import (
	"context"

	"github.com/susu3304/guildbank/internal/guildconfig"
	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/session"
)

// Tx is the set of stores a settlement mutates together.
type Tx interface {
	ledger.Ledger
	session.Store
}

// Store runs units of work. Everything fn does through tx commits together when fn
// returns nil and is discarded otherwise.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Authorizer answers whether a guild member holds a role.
type Authorizer interface {
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, guildID, userID, roleID string) (bool, error)

func (f AuthorizerFunc) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	return f(ctx, guildID, userID, roleID)
}

// Backend bundles what the engine needs from storage.
type Backend interface {
	Store
	guildconfig.Store
}
