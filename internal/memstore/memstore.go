// Package memstore is an in-memory settlement backend for tests and single-process runs.
// Nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/susu3304/guildbank/internal/guildconfig"
	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/session"
	"github.com/susu3304/guildbank/internal/settlement"
)

var (
	_ settlement.Backend = (*Store)(nil)
	_ settlement.Tx      = (*state)(nil)
)

// Store guards a single state with a mutex. WithinTx holds the mutex for the whole unit of
// work and runs it against a copy that replaces the state only on success.
type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState(time.Now)}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx settlement.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Account(ctx context.Context, key ledger.Key) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Account(ctx, key)
}

func (s *Store) Credit(ctx context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Credit(ctx, key, amount)
}

func (s *Store) Debit(ctx context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Debit(ctx, key, amount)
}

func (s *Store) SetBalance(ctx context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetBalance(ctx, key, amount)
}

func (s *Store) BatchApply(ctx context.Context, deltas []ledger.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.BatchApply(ctx, deltas)
}

func (s *Store) Accounts(ctx context.Context, guildID string) ([]ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Accounts(ctx, guildID)
}

func (s *Store) TotalBalance(ctx context.Context, guildID string, exclude []string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.TotalBalance(ctx, guildID, exclude)
}

func (s *Store) StaleAccounts(ctx context.Context, guildID string, keep []string) ([]ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.StaleAccounts(ctx, guildID, keep)
}

func (s *Store) DeleteStaleAccounts(ctx context.Context, guildID string, keep []string) ([]ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteStaleAccounts(ctx, guildID, keep)
}

func (s *Store) DeleteAccount(ctx context.Context, key ledger.Key) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteAccount(ctx, key)
}

func (s *Store) CreateLootSplit(ctx context.Context, ls *session.LootSplit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateLootSplit(ctx, ls)
}

func (s *Store) LootSplit(ctx context.Context, id string) (*session.LootSplit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LootSplit(ctx, id)
}

// LockLootSplit outside WithinTx is a plain read.
func (s *Store) LockLootSplit(ctx context.Context, id string) (*session.LootSplit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LockLootSplit(ctx, id)
}

func (s *Store) SetParticipants(ctx context.Context, id string, p session.Participants, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetParticipants(ctx, id, p, now)
}

func (s *Store) TransitionLootSplit(ctx context.Context, id string, t session.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.TransitionLootSplit(ctx, id, t)
}

func (s *Store) DeleteLootSplit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteLootSplit(ctx, id)
}

func (s *Store) DeleteExpiredLootSplits(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteExpiredLootSplits(ctx, now)
}

func (s *Store) ParticipantLootSplits(ctx context.Context, guildID, userID string) ([]*session.LootSplit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ParticipantLootSplits(ctx, guildID, userID)
}

func (s *Store) CreateRegear(ctx context.Context, r *session.RegearRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateRegear(ctx, r)
}

func (s *Store) Regear(ctx context.Context, id string) (*session.RegearRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Regear(ctx, id)
}

func (s *Store) SettleRegear(ctx context.Context, id string, rs session.RegearSettlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SettleRegear(ctx, id, rs)
}

func (s *Store) Configuration(ctx context.Context, guildID string) (*guildconfig.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.configs[guildID]
	if !ok {
		return nil, guildconfig.ErrNotFound
	}
	return cloneConfig(c), nil
}

func (s *Store) SetLootSplitModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.config(guildID).LootSplitPercentModifier = &modifier
	return nil
}

func (s *Store) SetLootSplitAuthRole(ctx context.Context, guildID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.config(guildID).LootSplitAuthRoleID = roleID
	return nil
}

func (s *Store) SetBuybackModifier(ctx context.Context, guildID string, modifier decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.config(guildID).BuybackPercentModifier = &modifier
	return nil
}

type state struct {
	now      func() time.Time
	accounts map[ledger.Key]ledger.Account
	splits   map[string]*session.LootSplit
	regears  map[string]*session.RegearRequest
	configs  map[string]*guildconfig.Configuration
}

func newState(now func() time.Time) *state {
	return &state{
		now:      now,
		accounts: make(map[ledger.Key]ledger.Account),
		splits:   make(map[string]*session.LootSplit),
		regears:  make(map[string]*session.RegearRequest),
		configs:  make(map[string]*guildconfig.Configuration),
	}
}

func (st *state) clone() *state {
	c := newState(st.now)
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.splits {
		c.splits[k] = cloneSplit(v)
	}
	for k, v := range st.regears {
		c.regears[k] = cloneRegear(v)
	}
	for k, v := range st.configs {
		c.configs[k] = cloneConfig(v)
	}
	return c
}

func (st *state) config(guildID string) *guildconfig.Configuration {
	c, ok := st.configs[guildID]
	if !ok {
		c = &guildconfig.Configuration{GuildID: guildID}
		st.configs[guildID] = c
	}
	return c
}

func (st *state) Account(_ context.Context, key ledger.Key) (ledger.Account, error) {
	a, ok := st.accounts[key]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (st *state) add(key ledger.Key, amount decimal.Decimal) ledger.Account {
	a, ok := st.accounts[key]
	if !ok {
		a = ledger.Account{GuildID: key.GuildID, UserID: key.UserID, Balance: decimal.Zero}
	}
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = st.now()
	st.accounts[key] = a
	return a
}

func (st *state) Credit(_ context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	return st.add(key, amount), nil
}

func (st *state) Debit(_ context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	return st.add(key, amount.Neg()), nil
}

func (st *state) SetBalance(_ context.Context, key ledger.Key, amount decimal.Decimal) (ledger.Account, error) {
	a := ledger.Account{GuildID: key.GuildID, UserID: key.UserID, Balance: amount, UpdatedAt: st.now()}
	st.accounts[key] = a
	return a, nil
}

func (st *state) BatchApply(_ context.Context, deltas []ledger.Delta) error {
	for _, d := range deltas {
		st.add(d.Key, d.Amount)
	}
	return nil
}

func (st *state) Accounts(_ context.Context, guildID string) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range st.accounts {
		if a.GuildID == guildID {
			out = append(out, a)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (st *state) TotalBalance(_ context.Context, guildID string, exclude []string) (decimal.Decimal, error) {
	skip := toSet(exclude)
	total := decimal.Zero
	for _, a := range st.accounts {
		if a.GuildID != guildID {
			continue
		}
		if _, ok := skip[a.UserID]; ok {
			continue
		}
		total = total.Add(a.Balance)
	}
	return total, nil
}

func (st *state) StaleAccounts(_ context.Context, guildID string, keep []string) ([]ledger.Account, error) {
	valid := toSet(keep)
	var out []ledger.Account
	for _, a := range st.accounts {
		if a.GuildID != guildID {
			continue
		}
		if _, ok := valid[a.UserID]; !ok {
			out = append(out, a)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (st *state) DeleteStaleAccounts(ctx context.Context, guildID string, keep []string) ([]ledger.Account, error) {
	stale, _ := st.StaleAccounts(ctx, guildID, keep)
	for _, a := range stale {
		delete(st.accounts, a.Key())
	}
	return stale, nil
}

func (st *state) DeleteAccount(_ context.Context, key ledger.Key) (ledger.Account, error) {
	a, ok := st.accounts[key]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	delete(st.accounts, key)
	return a, nil
}

func (st *state) CreateLootSplit(_ context.Context, ls *session.LootSplit) error {
	st.splits[ls.ID] = cloneSplit(ls)
	return nil
}

func (st *state) LootSplit(_ context.Context, id string) (*session.LootSplit, error) {
	ls, ok := st.splits[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return cloneSplit(ls), nil
}

func (st *state) LockLootSplit(ctx context.Context, id string) (*session.LootSplit, error) {
	return st.LootSplit(ctx, id)
}

func (st *state) SetParticipants(_ context.Context, id string, p session.Participants, now time.Time) error {
	ls, ok := st.splits[id]
	if !ok {
		return session.ErrNotFound
	}
	if ls.State != session.StatePending || ls.Expired(now) {
		return session.ErrStale
	}
	ls.Participants = append(session.Participants(nil), p...)
	return nil
}

func (st *state) TransitionLootSplit(_ context.Context, id string, t session.Transition) error {
	ls, ok := st.splits[id]
	if !ok {
		return session.ErrNotFound
	}
	if ls.State != t.From {
		return session.ErrStale
	}
	if t.To == session.StateApproved && ls.Expired(t.Now) {
		return session.ErrStale
	}

	ls.State = t.To
	switch t.To {
	case session.StateApproved:
		share, modifier, at := t.Share, t.Modifier, t.Now
		ls.Share, ls.Modifier, ls.SettledAt, ls.SettledBy = &share, &modifier, &at, t.SettledBy
	case session.StateRejected:
		at := t.Now
		ls.Share, ls.Modifier, ls.SettledAt, ls.SettledBy = nil, nil, &at, t.SettledBy
	default:
		ls.Share, ls.Modifier, ls.SettledAt, ls.SettledBy = nil, nil, nil, ""
	}
	return nil
}

func (st *state) DeleteLootSplit(_ context.Context, id string) error {
	if _, ok := st.splits[id]; !ok {
		return session.ErrNotFound
	}
	delete(st.splits, id)
	return nil
}

func (st *state) DeleteExpiredLootSplits(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, ls := range st.splits {
		if ls.State == session.StatePending && ls.Expired(now) {
			delete(st.splits, id)
			n++
		}
	}
	return n, nil
}

func (st *state) ParticipantLootSplits(_ context.Context, guildID, userID string) ([]*session.LootSplit, error) {
	var out []*session.LootSplit
	for _, ls := range st.splits {
		if ls.GuildID == guildID && ls.Approved() && ls.Participants.Contains(userID) {
			out = append(out, cloneSplit(ls))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (st *state) CreateRegear(_ context.Context, r *session.RegearRequest) error {
	st.regears[r.ID] = cloneRegear(r)
	return nil
}

func (st *state) Regear(_ context.Context, id string) (*session.RegearRequest, error) {
	r, ok := st.regears[id]
	if !ok {
		return nil, session.ErrRegearNotFound
	}
	return cloneRegear(r), nil
}

func (st *state) SettleRegear(_ context.Context, id string, rs session.RegearSettlement) error {
	r, ok := st.regears[id]
	if !ok {
		return session.ErrRegearNotFound
	}
	if r.State != session.StatePending {
		return session.ErrStale
	}
	paid, at := rs.Paid, rs.Now
	r.State = rs.To
	r.Reduced = rs.Reduced
	r.Paid = &paid
	r.SettledAt = &at
	r.SettledBy = rs.SettledBy
	return nil
}

func sortAccounts(accounts []ledger.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		if c := accounts[i].Balance.Cmp(accounts[j].Balance); c != 0 {
			return c > 0
		}
		return accounts[i].UserID < accounts[j].UserID
	})
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func cloneSplit(ls *session.LootSplit) *session.LootSplit {
	c := *ls
	c.Participants = append(session.Participants{}, ls.Participants...)
	c.ExpiresAt = cloneTime(ls.ExpiresAt)
	c.SettledAt = cloneTime(ls.SettledAt)
	c.Share = cloneDecimal(ls.Share)
	c.Modifier = cloneDecimal(ls.Modifier)
	return &c
}

func cloneRegear(r *session.RegearRequest) *session.RegearRequest {
	c := *r
	c.Paid = cloneDecimal(r.Paid)
	c.SettledAt = cloneTime(r.SettledAt)
	return &c
}

func cloneConfig(cfg *guildconfig.Configuration) *guildconfig.Configuration {
	c := *cfg
	c.LootSplitPercentModifier = cloneDecimal(cfg.LootSplitPercentModifier)
	c.BuybackPercentModifier = cloneDecimal(cfg.BuybackPercentModifier)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
