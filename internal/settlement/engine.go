// Package settlement approves, rejects and reverses guild payouts against the ledger.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/guildconfig"
)

type Options struct {
	// DeleteSettledSessions removes a loot split once it is approved or rejected.
	// Deleted splits cannot be undone.
	DeleteSettledSessions bool
	// SessionTTL is the participant collection window given to sessions created without
	// an explicit deadline. Zero means no deadline.
	SessionTTL time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

type Engine struct {
	store         Store
	configs       guildconfig.Store
	auth          Authorizer
	deleteSettled bool
	ttl           time.Duration
	log           *zap.Logger
	now           func() time.Time
}

func New(store Store, configs guildconfig.Store, auth Authorizer, opts Options) *Engine {
	e := &Engine{
		store:         store,
		configs:       configs,
		auth:          auth,
		deleteSettled: opts.DeleteSettledSessions,
		ttl:           opts.SessionTTL,
		log:           opts.Logger,
		now:           opts.Now,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) configuration(ctx context.Context, guildID string) (*guildconfig.Configuration, error) {
	cfg, err := e.configs.Configuration(ctx, guildID)
	if errors.Is(err, guildconfig.ErrNotFound) {
		return nil, ErrConfigurationMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load configuration for guild %s: %w", guildID, err)
	}
	return cfg, nil
}

// authorize loads the guild configuration and checks the actor holds its auth role.
// needModifier also requires the loot split modifier to be configured.
func (e *Engine) authorize(ctx context.Context, guildID, actorID string, needModifier bool) (*guildconfig.Configuration, error) {
	cfg, err := e.configuration(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !cfg.HasAuthRole() || (needModifier && !cfg.CanSettleSplits()) {
		return nil, ErrConfigurationMissing
	}
	ok, err := e.auth.HasRole(ctx, guildID, actorID, cfg.LootSplitAuthRoleID)
	if err != nil {
		return nil, fmt.Errorf("check role of %s: %w", actorID, err)
	}
	if !ok {
		e.log.Info("unauthorized settlement attempt",
			zap.String("guild_id", guildID),
			zap.String("user_id", actorID))
		return nil, ErrUnauthorized
	}
	return cfg, nil
}
