package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/susu3304/guildbank/internal/session"
)

const lootSplitColumns = `id, guild_id, creator_id, silver, donated, screenshot_url, participants,
	state, expires_at, created_at, share, modifier, settled_at, settled_by`

func scanLootSplit(row pgx.Row) (*session.LootSplit, error) {
	var (
		s               session.LootSplit
		participants    []string
		state           string
		share, modifier decimal.NullDecimal
	)
	err := row.Scan(&s.ID, &s.GuildID, &s.CreatorID, &s.Silver, &s.Donated, &s.ScreenshotURL, &participants,
		&state, &s.ExpiresAt, &s.CreatedAt, &share, &modifier, &s.SettledAt, &s.SettledBy)
	if err != nil {
		return nil, err
	}
	s.Participants = session.Participants(participants)
	s.State = session.State(state)
	if share.Valid {
		s.Share = &share.Decimal
	}
	if modifier.Valid {
		s.Modifier = &modifier.Decimal
	}
	return &s, nil
}

func (s *store) CreateLootSplit(ctx context.Context, ls *session.LootSplit) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO loot_split_sessions (id, guild_id, creator_id, silver, donated, screenshot_url, participants, state, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ls.ID, ls.GuildID, ls.CreatorID, ls.Silver, ls.Donated, ls.ScreenshotURL,
		[]string(nonNilParticipants(ls.Participants)), string(ls.State), ls.ExpiresAt, ls.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("loot split %s already exists", ls.ID)
	}
	return err
}

func nonNilParticipants(p session.Participants) session.Participants {
	if p == nil {
		return session.Participants{}
	}
	return p
}

func (s *store) LootSplit(ctx context.Context, id string) (*session.LootSplit, error) {
	ls, err := scanLootSplit(s.q.QueryRow(ctx,
		`SELECT `+lootSplitColumns+` FROM loot_split_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return ls, err
}

func (s *store) LockLootSplit(ctx context.Context, id string) (*session.LootSplit, error) {
	ls, err := scanLootSplit(s.q.QueryRow(ctx,
		`SELECT `+lootSplitColumns+` FROM loot_split_sessions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return ls, err
}

// missingOrStale tells a guarded update that matched no row apart from one whose row
// does not exist.
func (s *store) missingOrStale(ctx context.Context, table, id string, notFound error) error {
	var exists bool
	if err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return notFound
	}
	return session.ErrStale
}

func (s *store) SetParticipants(ctx context.Context, id string, p session.Participants, now time.Time) error {
	ct, err := s.q.Exec(ctx,
		`UPDATE loot_split_sessions SET participants = $2
		 WHERE id = $1 AND state = 'pending' AND (expires_at IS NULL OR expires_at > $3)`,
		id, []string(nonNilParticipants(p)), now,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.missingOrStale(ctx, "loot_split_sessions", id, session.ErrNotFound)
	}
	return nil
}

func (s *store) TransitionLootSplit(ctx context.Context, id string, t session.Transition) error {
	var (
		share, modifier *decimal.Decimal
		settledAt       *time.Time
		settledBy       string
	)
	switch t.To {
	case session.StateApproved:
		share, modifier, settledAt, settledBy = &t.Share, &t.Modifier, &t.Now, t.SettledBy
	case session.StateRejected:
		settledAt, settledBy = &t.Now, t.SettledBy
	}
	checkExpiry := t.To == session.StateApproved

	ct, err := s.q.Exec(ctx,
		`UPDATE loot_split_sessions
		 SET state = $2, share = $3, modifier = $4, settled_at = $5, settled_by = $6
		 WHERE id = $1 AND state = $7
		   AND (NOT $8 OR expires_at IS NULL OR expires_at > $9)`,
		id, string(t.To), share, modifier, settledAt, settledBy, string(t.From), checkExpiry, t.Now,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.missingOrStale(ctx, "loot_split_sessions", id, session.ErrNotFound)
	}
	return nil
}

func (s *store) DeleteLootSplit(ctx context.Context, id string) error {
	ct, err := s.q.Exec(ctx, `DELETE FROM loot_split_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (s *store) DeleteExpiredLootSplits(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.q.Exec(ctx,
		`DELETE FROM loot_split_sessions
		 WHERE state = 'pending' AND expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *store) ParticipantLootSplits(ctx context.Context, guildID, userID string) ([]*session.LootSplit, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+lootSplitColumns+` FROM loot_split_sessions
		 WHERE guild_id = $1 AND state = 'approved' AND $2 = ANY(participants)
		 ORDER BY created_at, id`,
		guildID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*session.LootSplit
	for rows.Next() {
		ls, err := scanLootSplit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ls)
	}
	return out, rows.Err()
}

const regearColumns = `id, guild_id, user_id, silver, state, reduced, paid, created_at, settled_at, settled_by`

func (s *store) CreateRegear(ctx context.Context, r *session.RegearRequest) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO regear_requests (id, guild_id, user_id, silver, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.GuildID, r.UserID, r.Silver, string(r.State), r.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("regear request %s already exists", r.ID)
	}
	return err
}

func (s *store) Regear(ctx context.Context, id string) (*session.RegearRequest, error) {
	var (
		r     session.RegearRequest
		state string
		paid  decimal.NullDecimal
	)
	err := s.q.QueryRow(ctx,
		`SELECT `+regearColumns+` FROM regear_requests WHERE id = $1`, id,
	).Scan(&r.ID, &r.GuildID, &r.UserID, &r.Silver, &state, &r.Reduced, &paid, &r.CreatedAt, &r.SettledAt, &r.SettledBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrRegearNotFound
	}
	if err != nil {
		return nil, err
	}
	r.State = session.State(state)
	if paid.Valid {
		r.Paid = &paid.Decimal
	}
	return &r, nil
}

func (s *store) SettleRegear(ctx context.Context, id string, rs session.RegearSettlement) error {
	ct, err := s.q.Exec(ctx,
		`UPDATE regear_requests
		 SET state = $2, reduced = $3, paid = $4, settled_at = $5, settled_by = $6
		 WHERE id = $1 AND state = 'pending'`,
		id, string(rs.To), rs.Reduced, rs.Paid, rs.Now, rs.SettledBy,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.missingOrStale(ctx, "regear_requests", id, session.ErrRegearNotFound)
	}
	return nil
}
