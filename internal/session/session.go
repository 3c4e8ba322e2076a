// Package session holds loot split sessions and regear requests and their approval state.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("loot split session not found")
	ErrRegearNotFound = errors.New("regear request not found")
	// ErrStale is returned when a guarded update finds the record no longer in the
	// expected state.
	ErrStale = errors.New("record changed concurrently")
)

type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

// Participants is an ordered set of user IDs.
type Participants []string

// NewParticipants trims, drops empty IDs and keeps the first occurrence of each ID.
func NewParticipants(ids []string) Participants {
	seen := make(map[string]struct{}, len(ids))
	out := make(Participants, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (p Participants) Contains(id string) bool {
	for _, v := range p {
		if v == id {
			return true
		}
	}
	return false
}

// LootSplit is a proposed division of loot among participants.
type LootSplit struct {
	ID            string          `json:"id"`
	GuildID       string          `json:"guild_id"`
	CreatorID     string          `json:"creator_id"`
	Silver        decimal.Decimal `json:"silver"`
	Donated       decimal.Decimal `json:"donated"`
	ScreenshotURL string          `json:"screenshot_url"`
	Participants  Participants    `json:"participants"`
	State         State           `json:"state"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	// Written when the split is approved and cleared again by an undo.
	Share     *decimal.Decimal `json:"share,omitempty"`
	Modifier  *decimal.Decimal `json:"modifier,omitempty"`
	SettledAt *time.Time       `json:"settled_at,omitempty"`
	SettledBy string           `json:"settled_by,omitempty"`
}

func (s *LootSplit) Approved() bool {
	return s.State == StateApproved
}

func (s *LootSplit) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// RegearRequest is a reimbursement request. Silver is fixed when the request is created.
type RegearRequest struct {
	ID        string           `json:"id"`
	GuildID   string           `json:"guild_id"`
	UserID    string           `json:"user_id"`
	Silver    decimal.Decimal  `json:"silver"`
	State     State            `json:"state"`
	Reduced   bool             `json:"reduced"`
	Paid      *decimal.Decimal `json:"paid,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	SettledAt *time.Time       `json:"settled_at,omitempty"`
	SettledBy string           `json:"settled_by,omitempty"`
}

func (r *RegearRequest) Approved() bool {
	return r.State == StateApproved
}

// Transition describes a guarded state change of a loot split. The update only applies
// while the session is still in From; when To is StateApproved the session must also be
// unexpired at Now. Share, Modifier and SettledBy are stored on approval and cleared
// on any other target state.
type Transition struct {
	From      State
	To        State
	Now       time.Time
	Share     decimal.Decimal
	Modifier  decimal.Decimal
	SettledBy string
}

// RegearSettlement describes a guarded pending -> approved/rejected change of a regear.
type RegearSettlement struct {
	To        State
	Reduced   bool
	Paid      decimal.Decimal
	Now       time.Time
	SettledBy string
}

// Store persists loot split sessions and regear requests.
type Store interface {
	CreateLootSplit(ctx context.Context, s *LootSplit) error
	LootSplit(ctx context.Context, id string) (*LootSplit, error)
	// LockLootSplit loads a session and holds it against concurrent writers until the
	// surrounding transaction ends.
	LockLootSplit(ctx context.Context, id string) (*LootSplit, error)
	// SetParticipants replaces the participant list of a pending, unexpired session.
	SetParticipants(ctx context.Context, id string, participants Participants, now time.Time) error
	TransitionLootSplit(ctx context.Context, id string, t Transition) error
	DeleteLootSplit(ctx context.Context, id string) error
	// DeleteExpiredLootSplits removes pending sessions that expired before now.
	DeleteExpiredLootSplits(ctx context.Context, now time.Time) (int64, error)
	// ParticipantLootSplits lists the guild's approved sessions that include userID,
	// oldest first.
	ParticipantLootSplits(ctx context.Context, guildID, userID string) ([]*LootSplit, error)

	CreateRegear(ctx context.Context, r *RegearRequest) error
	Regear(ctx context.Context, id string) (*RegearRequest, error)
	SettleRegear(ctx context.Context, id string, s RegearSettlement) error
}
