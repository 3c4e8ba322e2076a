// Package storetest checks a settlement.Backend against the behaviour the engine relies on.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/susu3304/guildbank/internal/guildconfig"
	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/session"
	"github.com/susu3304/guildbank/internal/settlement"
)

// Postgres keeps microseconds; whole seconds compare equal on every backend.
var clock = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Run runs every contract test. newBackend must return an empty backend on each call.
func Run(t *testing.T, newBackend func(t *testing.T) settlement.Backend) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b settlement.Backend)
	}{
		{name: "LedgerUpsert", fn: testLedgerUpsert},
		{name: "BatchApplyRollsBack", fn: testBatchApplyRollsBack},
		{name: "StaleAccounts", fn: testStaleAccounts},
		{name: "SetParticipantsGuarded", fn: testSetParticipantsGuarded},
		{name: "TransitionGuarded", fn: testTransitionGuarded},
		{name: "ParticipantLootSplits", fn: testParticipantLootSplits},
		{name: "SettleRegearOnce", fn: testSettleRegearOnce},
		{name: "Configuration", fn: testConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newBackend(t))
		})
	}
}

func testLedgerUpsert(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	key := ledger.Key{GuildID: "g", UserID: "u"}

	if _, err := b.Account(ctx, key); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("Account on empty store = %v, want ErrAccountNotFound", err)
	}
	a, err := b.Debit(ctx, key, d("50"))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Balance.Equal(d("-50")) {
		t.Errorf("debit of missing account = %s, want -50", a.Balance)
	}
	a, err = b.Credit(ctx, key, d("80.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Balance.Equal(d("30.5")) {
		t.Errorf("balance = %s, want 30.5", a.Balance)
	}
	a, err = b.SetBalance(ctx, key, decimal.Zero)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Balance.IsZero() {
		t.Errorf("balance after SetBalance = %s, want 0", a.Balance)
	}
}

func testBatchApplyRollsBack(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	keep := ledger.Key{GuildID: "g", UserID: "u"}
	if _, err := b.Credit(ctx, keep, d("100")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := b.WithinTx(ctx, func(tx settlement.Tx) error {
		if err := tx.BatchApply(ctx, ledger.Credits("g", []string{"u", "v"}, d("10"))); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx = %v, want boom", err)
	}
	a, err := b.Account(ctx, keep)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Balance.Equal(d("100")) {
		t.Errorf("balance after rollback = %s, want 100", a.Balance)
	}
	if _, err := b.Account(ctx, ledger.Key{GuildID: "g", UserID: "v"}); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("rolled back account exists: %v", err)
	}

	err = b.WithinTx(ctx, func(tx settlement.Tx) error {
		return tx.BatchApply(ctx, append(
			ledger.Credits("g", []string{"v", "u"}, d("10")),
			ledger.Debits("g", []string{"u"}, d("5"))...,
		))
	})
	if err != nil {
		t.Fatal(err)
	}
	if a, _ := b.Account(ctx, keep); !a.Balance.Equal(d("105")) {
		t.Errorf("balance(u) = %s, want 105", a.Balance)
	}
}

func testStaleAccounts(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	for user, amount := range map[string]string{"a": "10", "b": "30", "c": "20"} {
		if _, err := b.Credit(ctx, ledger.Key{GuildID: "g", UserID: user}, d(amount)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := b.Credit(ctx, ledger.Key{GuildID: "other", UserID: "a"}, d("99")); err != nil {
		t.Fatal(err)
	}

	accounts, err := b.Accounts(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 3 || accounts[0].UserID != "b" || accounts[2].UserID != "a" {
		t.Errorf("accounts not ordered by balance: %+v", accounts)
	}
	total, err := b.TotalBalance(ctx, "g", []string{"b"})
	if err != nil {
		t.Fatal(err)
	}
	if !total.Equal(d("30")) {
		t.Errorf("total excluding b = %s, want 30", total)
	}

	deleted, err := b.DeleteStaleAccounts(ctx, "g", []string{"b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %d accounts, want 2", len(deleted))
	}
	if _, err := b.Account(ctx, ledger.Key{GuildID: "other", UserID: "a"}); err != nil {
		t.Errorf("purge crossed guilds: %v", err)
	}
}

func newSplit(id, guild string, participants ...string) *session.LootSplit {
	expires := clock.Add(time.Hour)
	return &session.LootSplit{
		ID:           id,
		GuildID:      guild,
		CreatorID:    "creator",
		Silver:       d("1000"),
		Donated:      d("100"),
		Participants: session.Participants(participants),
		State:        session.StatePending,
		ExpiresAt:    &expires,
		CreatedAt:    clock,
	}
}

func testSetParticipantsGuarded(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	if err := b.CreateLootSplit(ctx, newSplit("s1", "g")); err != nil {
		t.Fatal(err)
	}

	if err := b.SetParticipants(ctx, "s1", session.Participants{"a", "b"}, clock); err != nil {
		t.Fatal(err)
	}
	ls, err := b.LootSplit(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ls.Participants) != 2 || !ls.Participants.Contains("b") {
		t.Errorf("participants = %v", ls.Participants)
	}

	if err := b.SetParticipants(ctx, "s1", session.Participants{"c"}, clock.Add(time.Hour)); !errors.Is(err, session.ErrStale) {
		t.Errorf("set after expiry = %v, want ErrStale", err)
	}
	if err := b.SetParticipants(ctx, "missing", session.Participants{"c"}, clock); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("set on missing session = %v, want ErrNotFound", err)
	}
}

func testTransitionGuarded(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	if err := b.CreateLootSplit(ctx, newSplit("s1", "g", "a")); err != nil {
		t.Fatal(err)
	}
	approve := session.Transition{
		From:      session.StatePending,
		To:        session.StateApproved,
		Now:       clock,
		Share:     d("800"),
		Modifier:  d("0.7"),
		SettledBy: "officer",
	}

	expired := approve
	expired.Now = clock.Add(time.Hour)
	if err := b.TransitionLootSplit(ctx, "s1", expired); !errors.Is(err, session.ErrStale) {
		t.Fatalf("approve at the deadline = %v, want ErrStale", err)
	}
	if err := b.TransitionLootSplit(ctx, "s1", approve); err != nil {
		t.Fatal(err)
	}
	if err := b.TransitionLootSplit(ctx, "s1", approve); !errors.Is(err, session.ErrStale) {
		t.Fatalf("second approve = %v, want ErrStale", err)
	}
	ls, err := b.LootSplit(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !ls.Approved() || ls.Share == nil || !ls.Share.Equal(d("800")) || ls.SettledBy != "officer" {
		t.Errorf("approved split = %+v", ls)
	}

	reopen := session.Transition{From: session.StateApproved, To: session.StatePending, Now: clock}
	if err := b.TransitionLootSplit(ctx, "s1", reopen); err != nil {
		t.Fatal(err)
	}
	ls, _ = b.LootSplit(ctx, "s1")
	if ls.State != session.StatePending || ls.Share != nil || ls.SettledAt != nil {
		t.Errorf("reopened split = %+v, want pending without snapshot", ls)
	}
	if err := b.TransitionLootSplit(ctx, "missing", approve); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("transition of missing session = %v, want ErrNotFound", err)
	}
}

func testParticipantLootSplits(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	splits := []*session.LootSplit{
		newSplit("s1", "g", "a", "b"),
		newSplit("s2", "g", "a"),
		newSplit("s3", "g", "b"),
		newSplit("s4", "other", "a"),
		newSplit("s5", "g", "a"),
	}
	for idx, s := range splits {
		s.CreatedAt = clock.Add(time.Duration(idx) * time.Minute)
		if err := b.CreateLootSplit(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		err := b.TransitionLootSplit(ctx, id, session.Transition{
			From: session.StatePending, To: session.StateApproved, Now: clock, Share: d("1"), Modifier: d("0.7"),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := b.ParticipantLootSplits(ctx, "g", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s2" {
		ids := make([]string, 0, len(got))
		for _, s := range got {
			ids = append(ids, s.ID)
		}
		t.Errorf("splits of a = %v, want [s1 s2]", ids)
	}
}

func testSettleRegearOnce(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	err := b.CreateRegear(ctx, &session.RegearRequest{
		ID: "r1", GuildID: "g", UserID: "u", Silver: d("1000"), State: session.StatePending, CreatedAt: clock,
	})
	if err != nil {
		t.Fatal(err)
	}
	settle := session.RegearSettlement{To: session.StateApproved, Reduced: true, Paid: d("700"), Now: clock, SettledBy: "officer"}
	if err := b.SettleRegear(ctx, "r1", settle); err != nil {
		t.Fatal(err)
	}
	settle.Reduced, settle.Paid = false, d("1000")
	if err := b.SettleRegear(ctx, "r1", settle); !errors.Is(err, session.ErrStale) {
		t.Fatalf("second settle = %v, want ErrStale", err)
	}
	r, err := b.Regear(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Reduced || r.Paid == nil || !r.Paid.Equal(d("700")) {
		t.Errorf("regear = %+v, want the first settlement", r)
	}
	if err := b.SettleRegear(ctx, "missing", settle); !errors.Is(err, session.ErrRegearNotFound) {
		t.Errorf("settle missing = %v, want ErrRegearNotFound", err)
	}
}

func testConfiguration(t *testing.T, b settlement.Backend) {
	ctx := context.Background()
	if _, err := b.Configuration(ctx, "g"); !errors.Is(err, guildconfig.ErrNotFound) {
		t.Fatalf("Configuration of new guild = %v, want ErrNotFound", err)
	}
	if err := b.SetLootSplitModifier(ctx, "g", d("0.7")); err != nil {
		t.Fatal(err)
	}
	if err := b.SetLootSplitAuthRole(ctx, "g", "banker"); err != nil {
		t.Fatal(err)
	}
	cfg, err := b.Configuration(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.CanSettleSplits() || cfg.BuybackPercentModifier != nil {
		t.Errorf("configuration = %+v", cfg)
	}
}
