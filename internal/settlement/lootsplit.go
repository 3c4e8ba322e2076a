package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/session"
	"github.com/susu3304/guildbank/internal/silver"
)

// NewSession is the input of CreateSession.
type NewSession struct {
	GuildID       string
	CreatorID     string
	Silver        decimal.Decimal
	Donated       decimal.Decimal
	ScreenshotURL string
	// ExpiresAt defaults to now + SessionTTL when nil.
	ExpiresAt *time.Time
}

// SettlementResult describes an approved loot split.
type SettlementResult struct {
	SessionID    string
	GuildID      string
	Participants session.Participants
	Share        decimal.Decimal
	Modifier     decimal.Decimal
	GuildCut     decimal.Decimal
}

// Total is the silver credited across all participants.
func (r *SettlementResult) Total() decimal.Decimal {
	return r.Share.Mul(decimal.NewFromInt(int64(len(r.Participants))))
}

func (e *Engine) CreateSession(ctx context.Context, in NewSession) (string, error) {
	if in.GuildID == "" || in.CreatorID == "" {
		return "", fmt.Errorf("%w: guild and creator are required", ErrInvalidInput)
	}
	if in.Silver.IsNegative() || in.Donated.IsNegative() {
		return "", fmt.Errorf("%w: silver amounts must not be negative", ErrInvalidInput)
	}

	now := e.now()
	s := &session.LootSplit{
		ID:            uuid.NewString(),
		GuildID:       in.GuildID,
		CreatorID:     in.CreatorID,
		Silver:        in.Silver,
		Donated:       in.Donated,
		ScreenshotURL: in.ScreenshotURL,
		Participants:  session.Participants{},
		State:         session.StatePending,
		ExpiresAt:     in.ExpiresAt,
		CreatedAt:     now,
	}
	if s.ExpiresAt == nil && e.ttl > 0 {
		deadline := now.Add(e.ttl)
		s.ExpiresAt = &deadline
	}

	if err := e.store.CreateLootSplit(ctx, s); err != nil {
		return "", fmt.Errorf("create loot split: %w", err)
	}
	e.log.Info("loot split created",
		zap.String("session_id", s.ID),
		zap.String("guild_id", s.GuildID),
		zap.String("creator_id", s.CreatorID),
		zap.Stringer("silver", s.Silver),
		zap.Stringer("donated", s.Donated))
	return s.ID, nil
}

func (e *Engine) Session(ctx context.Context, id string) (*session.LootSplit, error) {
	return loadLootSplit(ctx, e.store, id)
}

func loadLootSplit(ctx context.Context, st session.Store, id string) (*session.LootSplit, error) {
	s, err := st.LootSplit(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load loot split %s: %w", id, err)
	}
	return s, nil
}

func lockLootSplit(ctx context.Context, tx Tx, id string) (*session.LootSplit, error) {
	s, err := tx.LockLootSplit(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock loot split %s: %w", id, err)
	}
	return s, nil
}

// requirePending maps a non-pending state to its error.
func requirePending(s session.State) error {
	switch s {
	case session.StatePending:
		return nil
	case session.StateApproved:
		return ErrAlreadySettled
	default:
		return fmt.Errorf("%w: session is %s", ErrInvalidState, s)
	}
}

// AttachParticipants replaces the participant list of a pending session. The last
// writer wins until the session is approved.
func (e *Engine) AttachParticipants(ctx context.Context, id string, userIDs []string) error {
	participants := session.NewParticipants(userIDs)
	if len(participants) == 0 {
		return ErrNoParticipants
	}

	now := e.now()
	return e.store.WithinTx(ctx, func(tx Tx) error {
		s, err := lockLootSplit(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requirePending(s.State); err != nil {
			return err
		}
		if s.Expired(now) {
			return ErrSessionExpired
		}
		err = tx.SetParticipants(ctx, id, participants, now)
		if errors.Is(err, session.ErrStale) {
			return ErrAlreadySettled
		}
		return err
	})
}

// ApproveSession credits every participant their share and marks the session approved,
// in one transaction. A session is settled at most once; later calls fail with
// ErrAlreadySettled and change nothing.
func (e *Engine) ApproveSession(ctx context.Context, id, approverID string) (*SettlementResult, error) {
	s, err := loadLootSplit(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	cfg, err := e.authorize(ctx, s.GuildID, approverID, true)
	if err != nil {
		return nil, err
	}
	modifier := *cfg.LootSplitPercentModifier

	now := e.now()
	var result *SettlementResult
	err = e.store.WithinTx(ctx, func(tx Tx) error {
		s, err := lockLootSplit(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requirePending(s.State); err != nil {
			return err
		}
		if s.Expired(now) {
			return ErrSessionExpired
		}
		if len(s.Participants) == 0 {
			return ErrNoParticipants
		}

		share, err := silver.PerParticipantShare(s.Silver, s.Donated, modifier, len(s.Participants))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}

		err = tx.TransitionLootSplit(ctx, id, session.Transition{
			From:      session.StatePending,
			To:        session.StateApproved,
			Now:       now,
			Share:     share,
			Modifier:  modifier,
			SettledBy: approverID,
		})
		if errors.Is(err, session.ErrStale) {
			return ErrAlreadySettled
		}
		if err != nil {
			return fmt.Errorf("approve loot split %s: %w", id, err)
		}

		if err := tx.BatchApply(ctx, ledger.Credits(s.GuildID, s.Participants, share)); err != nil {
			return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}

		if e.deleteSettled {
			if err := tx.DeleteLootSplit(ctx, id); err != nil {
				return fmt.Errorf("delete settled loot split %s: %w", id, err)
			}
		}

		result = &SettlementResult{
			SessionID:    id,
			GuildID:      s.GuildID,
			Participants: s.Participants,
			Share:        share,
			Modifier:     modifier,
			GuildCut:     silver.GuildCut(s.Silver, modifier),
		}
		return nil
	})
	if err != nil {
		e.log.Warn("loot split approval failed",
			zap.String("session_id", id),
			zap.String("approver_id", approverID),
			zap.Error(err))
		return nil, err
	}

	e.log.Info("loot split approved",
		zap.String("session_id", id),
		zap.String("guild_id", result.GuildID),
		zap.String("approver_id", approverID),
		zap.Int("participants", len(result.Participants)),
		zap.Stringer("share", result.Share))
	return result, nil
}

// RejectSession closes a pending session without touching the ledger.
func (e *Engine) RejectSession(ctx context.Context, id, approverID string) error {
	s, err := loadLootSplit(ctx, e.store, id)
	if err != nil {
		return err
	}
	if _, err := e.authorize(ctx, s.GuildID, approverID, false); err != nil {
		return err
	}

	now := e.now()
	err = e.store.WithinTx(ctx, func(tx Tx) error {
		s, err := lockLootSplit(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requirePending(s.State); err != nil {
			return err
		}
		err = tx.TransitionLootSplit(ctx, id, session.Transition{
			From:      session.StatePending,
			To:        session.StateRejected,
			Now:       now,
			SettledBy: approverID,
		})
		if errors.Is(err, session.ErrStale) {
			return ErrAlreadySettled
		}
		if err != nil {
			return fmt.Errorf("reject loot split %s: %w", id, err)
		}
		if e.deleteSettled {
			if err := tx.DeleteLootSplit(ctx, id); err != nil {
				return fmt.Errorf("delete rejected loot split %s: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info("loot split rejected",
		zap.String("session_id", id),
		zap.String("approver_id", approverID))
	return nil
}

// UndoSession debits every participant the share they were credited on approval and
// returns the session to pending.
func (e *Engine) UndoSession(ctx context.Context, id, requesterID string) error {
	s, err := loadLootSplit(ctx, e.store, id)
	if err != nil {
		return err
	}
	cfg, err := e.authorize(ctx, s.GuildID, requesterID, false)
	if err != nil {
		return err
	}

	now := e.now()
	var share decimal.Decimal
	var participants session.Participants
	err = e.store.WithinTx(ctx, func(tx Tx) error {
		s, err := lockLootSplit(ctx, tx, id)
		if err != nil {
			return err
		}
		if !s.Approved() {
			return ErrNotSettled
		}
		if len(s.Participants) == 0 {
			return ErrNoParticipants
		}

		if s.Share != nil {
			share = *s.Share
		} else {
			// Approved before shares were recorded: fall back to the current modifier.
			if cfg.LootSplitPercentModifier == nil {
				return ErrConfigurationMissing
			}
			share, err = silver.PerParticipantShare(s.Silver, s.Donated, *cfg.LootSplitPercentModifier, len(s.Participants))
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
		}

		err = tx.TransitionLootSplit(ctx, id, session.Transition{
			From: session.StateApproved,
			To:   session.StatePending,
			Now:  now,
		})
		if errors.Is(err, session.ErrStale) {
			return ErrNotSettled
		}
		if err != nil {
			return fmt.Errorf("reopen loot split %s: %w", id, err)
		}

		if err := tx.BatchApply(ctx, ledger.Debits(s.GuildID, s.Participants, share)); err != nil {
			return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}
		participants = s.Participants
		return nil
	})
	if err != nil {
		e.log.Warn("loot split undo failed",
			zap.String("session_id", id),
			zap.String("requester_id", requesterID),
			zap.Error(err))
		return err
	}

	e.log.Info("loot split undone",
		zap.String("session_id", id),
		zap.String("requester_id", requesterID),
		zap.Int("participants", len(participants)),
		zap.Stringer("share", share))
	return nil
}

// SweepExpired deletes pending sessions whose collection window has closed.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	n, err := e.store.DeleteExpiredLootSplits(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired loot splits: %w", err)
	}
	return n, nil
}
