package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/session"
	"github.com/susu3304/guildbank/internal/silver"
)

type RegearResult struct {
	RequestID string
	UserID    string
	Tier      silver.Tier
	Amount    decimal.Decimal
	Balance   decimal.Decimal
}

// CreateRegearRequest records a reimbursement estimate. The estimate is the only amount
// a later settlement can pay out.
func (e *Engine) CreateRegearRequest(ctx context.Context, guildID, userID string, estimatedCost decimal.Decimal) (string, error) {
	if guildID == "" || userID == "" {
		return "", fmt.Errorf("%w: guild and user are required", ErrInvalidInput)
	}
	if estimatedCost.IsNegative() {
		return "", fmt.Errorf("%w: estimated cost must not be negative", ErrInvalidInput)
	}

	r := &session.RegearRequest{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		UserID:    userID,
		Silver:    estimatedCost,
		State:     session.StatePending,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateRegear(ctx, r); err != nil {
		return "", fmt.Errorf("create regear request: %w", err)
	}
	e.log.Info("regear requested",
		zap.String("request_id", r.ID),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Stringer("silver", estimatedCost))
	return r.ID, nil
}

func (e *Engine) Regear(ctx context.Context, id string) (*session.RegearRequest, error) {
	r, err := e.store.Regear(ctx, id)
	if errors.Is(err, session.ErrRegearNotFound) {
		return nil, ErrRegearNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load regear request %s: %w", id, err)
	}
	return r, nil
}

// SettleRegear pays out a regear at the chosen tier. Whatever the tier, a request is paid
// at most once.
func (e *Engine) SettleRegear(ctx context.Context, id, approverID string, tier silver.Tier) (*RegearResult, error) {
	r, err := e.Regear(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := e.authorize(ctx, r.GuildID, approverID, false); err != nil {
		return nil, err
	}
	if err := requirePending(r.State); err != nil {
		return nil, err
	}

	amount, err := silver.RegearShare(r.Silver, tier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var acct ledger.Account
	err = e.store.WithinTx(ctx, func(tx Tx) error {
		err := tx.SettleRegear(ctx, id, session.RegearSettlement{
			To:        session.StateApproved,
			Reduced:   tier == silver.TierReduced,
			Paid:      amount,
			Now:       e.now(),
			SettledBy: approverID,
		})
		if errors.Is(err, session.ErrStale) {
			return ErrAlreadySettled
		}
		if err != nil {
			return fmt.Errorf("approve regear %s: %w", id, err)
		}
		acct, err = tx.Credit(ctx, ledger.Key{GuildID: r.GuildID, UserID: r.UserID}, amount)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("regear settled",
		zap.String("request_id", id),
		zap.String("user_id", r.UserID),
		zap.String("approver_id", approverID),
		zap.Stringer("tier", tier),
		zap.Stringer("amount", amount))
	return &RegearResult{
		RequestID: id,
		UserID:    r.UserID,
		Tier:      tier,
		Amount:    amount,
		Balance:   acct.Balance,
	}, nil
}

// RejectRegear closes a pending regear without paying it.
func (e *Engine) RejectRegear(ctx context.Context, id, approverID string) error {
	r, err := e.Regear(ctx, id)
	if err != nil {
		return err
	}
	if _, err := e.authorize(ctx, r.GuildID, approverID, false); err != nil {
		return err
	}
	if err := requirePending(r.State); err != nil {
		return err
	}

	err = e.store.SettleRegear(ctx, id, session.RegearSettlement{
		To:        session.StateRejected,
		Paid:      decimal.Zero,
		Now:       e.now(),
		SettledBy: approverID,
	})
	if errors.Is(err, session.ErrStale) {
		return ErrAlreadySettled
	}
	if err != nil {
		return fmt.Errorf("reject regear %s: %w", id, err)
	}
	e.log.Info("regear rejected", zap.String("request_id", id), zap.String("approver_id", approverID))
	return nil
}
