package settlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/memstore"
	"github.com/susu3304/guildbank/internal/session"
	"github.com/susu3304/guildbank/internal/settlement"
	"github.com/susu3304/guildbank/internal/silver"
)

const (
	guild    = "guild-1"
	role     = "banker"
	approver = "officer"
	creator  = "caller"
)

var clock = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// roles grants role to every listed user.
func roles(users ...string) settlement.Authorizer {
	allowed := make(map[string]bool, len(users))
	for _, u := range users {
		allowed[u] = true
	}
	return settlement.AuthorizerFunc(func(_ context.Context, _, userID, roleID string) (bool, error) {
		return roleID == role && allowed[userID], nil
	})
}

type fixture struct {
	store  *memstore.Store
	engine *settlement.Engine
}

func newFixture(t *testing.T, opts settlement.Options) *fixture {
	t.Helper()
	st := memstore.New()
	return newFixtureWith(t, st, st, opts)
}

func newFixtureWith(t *testing.T, mem *memstore.Store, store settlement.Store, opts settlement.Options) *fixture {
	t.Helper()
	ctx := context.Background()
	if err := mem.SetLootSplitAuthRole(ctx, guild, role); err != nil {
		t.Fatal(err)
	}
	if err := mem.SetLootSplitModifier(ctx, guild, d("0.7")); err != nil {
		t.Fatal(err)
	}
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return clock }
	}
	return &fixture{store: mem, engine: settlement.New(store, mem, roles(approver), opts)}
}

func (f *fixture) balance(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	a, err := f.store.Account(context.Background(), ledger.Key{GuildID: guild, UserID: user})
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return decimal.Zero
	}
	if err != nil {
		t.Fatal(err)
	}
	return a.Balance
}

func (f *fixture) openSession(t *testing.T, gross, donated string, participants ...string) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.engine.CreateSession(ctx, settlement.NewSession{
		GuildID:   guild,
		CreatorID: creator,
		Silver:    d(gross),
		Donated:   d(donated),
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if len(participants) > 0 {
		if err := f.engine.AttachParticipants(ctx, id, participants); err != nil {
			t.Fatalf("AttachParticipants: %v", err)
		}
	}
	return id
}

func TestApproveAndUndo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1000", "100", "A", "B")

	res, err := f.engine.ApproveSession(ctx, id, approver)
	if err != nil {
		t.Fatalf("ApproveSession: %v", err)
	}
	if !res.Share.Equal(d("450")) || !res.GuildCut.Equal(d("700")) || !res.Total().Equal(d("900")) {
		t.Errorf("result = share %s cut %s total %s, want 450/700/900", res.Share, res.GuildCut, res.Total())
	}
	for _, u := range []string{"A", "B"} {
		if got := f.balance(t, u); !got.Equal(d("450")) {
			t.Errorf("balance(%s) after approve = %s, want 450", u, got)
		}
	}

	if err := f.engine.UndoSession(ctx, id, approver); err != nil {
		t.Fatalf("UndoSession: %v", err)
	}
	for _, u := range []string{"A", "B"} {
		if got := f.balance(t, u); !got.IsZero() {
			t.Errorf("balance(%s) after undo = %s, want 0", u, got)
		}
	}

	s, _ := f.engine.Session(ctx, id)
	if s.Approved() || s.Share != nil {
		t.Errorf("session after undo = %+v, want pending without snapshot", s)
	}

	if err := f.engine.UndoSession(ctx, id, approver); !errors.Is(err, settlement.ErrNotSettled) {
		t.Errorf("second undo = %v, want ErrNotSettled", err)
	}

	// Re-approving after an undo credits again.
	if _, err := f.engine.ApproveSession(ctx, id, approver); err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if got := f.balance(t, "A"); !got.Equal(d("450")) {
		t.Errorf("balance(A) after re-approve = %s, want 450", got)
	}
}

func TestApproveTwiceCreditsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1000", "0", "A")

	if _, err := f.engine.ApproveSession(ctx, id, approver); err != nil {
		t.Fatal(err)
	}
	_, err := f.engine.ApproveSession(ctx, id, approver)
	if !errors.Is(err, settlement.ErrAlreadySettled) || !errors.Is(err, settlement.ErrInvalidState) {
		t.Fatalf("second approve = %v, want ErrAlreadySettled", err)
	}
	if got := f.balance(t, "A"); !got.Equal(d("700")) {
		t.Errorf("balance(A) = %s, want 700", got)
	}
}

func TestConcurrentApprovalsCreditOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1000", "100", "A", "B", "C", "D")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ApproveSession(ctx, id, approver)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, settlement.ErrAlreadySettled) {
				t.Errorf("unexpected approval error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("%d approvals succeeded, want 1", successes)
	}
	// floor(700)/4 + 100/4 = 200
	for _, u := range []string{"A", "B", "C", "D"} {
		if got := f.balance(t, u); !got.Equal(d("200")) {
			t.Errorf("balance(%s) = %s, want 200", u, got)
		}
	}
}

func TestApprovePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unauthorized", func(t *testing.T) {
		f := newFixture(t, settlement.Options{})
		id := f.openSession(t, "1000", "0", "A")
		if _, err := f.engine.ApproveSession(ctx, id, "nobody"); !errors.Is(err, settlement.ErrUnauthorized) {
			t.Fatalf("got %v, want ErrUnauthorized", err)
		}
		if got := f.balance(t, "A"); !got.IsZero() {
			t.Errorf("balance changed to %s", got)
		}
	})

	t.Run("missing configuration", func(t *testing.T) {
		st := memstore.New()
		e := settlement.New(st, st, roles(approver), settlement.Options{Logger: zaptest.NewLogger(t)})
		id, err := e.CreateSession(ctx, settlement.NewSession{GuildID: guild, CreatorID: creator, Silver: d("10")})
		if err != nil {
			t.Fatal(err)
		}
		e.AttachParticipants(ctx, id, []string{"A"})
		if _, err := e.ApproveSession(ctx, id, approver); !errors.Is(err, settlement.ErrConfigurationMissing) {
			t.Fatalf("got %v, want ErrConfigurationMissing", err)
		}
		// Role alone is not enough to settle a split.
		st.SetLootSplitAuthRole(ctx, guild, role)
		if _, err := e.ApproveSession(ctx, id, approver); !errors.Is(err, settlement.ErrConfigurationMissing) {
			t.Fatalf("got %v, want ErrConfigurationMissing", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t, settlement.Options{})
		_, err := f.engine.ApproveSession(ctx, "missing", approver)
		if !errors.Is(err, settlement.ErrSessionNotFound) || !errors.Is(err, settlement.ErrNotFound) {
			t.Fatalf("got %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("no participants", func(t *testing.T) {
		f := newFixture(t, settlement.Options{})
		id := f.openSession(t, "1000", "0")
		if _, err := f.engine.ApproveSession(ctx, id, approver); !errors.Is(err, settlement.ErrNoParticipants) {
			t.Fatalf("got %v, want ErrNoParticipants", err)
		}
		if err := f.engine.AttachParticipants(ctx, id, []string{" ", ""}); !errors.Is(err, settlement.ErrNoParticipants) {
			t.Fatalf("blank participant list: got %v, want ErrNoParticipants", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		now := clock
		f := newFixture(t, settlement.Options{SessionTTL: time.Hour, Now: func() time.Time { return now }})
		id := f.openSession(t, "1000", "0", "A")
		now = clock.Add(time.Hour)
		if _, err := f.engine.ApproveSession(ctx, id, approver); !errors.Is(err, settlement.ErrSessionExpired) {
			t.Fatalf("got %v, want ErrSessionExpired", err)
		}
		if err := f.engine.AttachParticipants(ctx, id, []string{"B"}); !errors.Is(err, settlement.ErrSessionExpired) {
			t.Fatalf("attach after expiry: got %v, want ErrSessionExpired", err)
		}
		n, err := f.engine.SweepExpired(ctx)
		if err != nil || n != 1 {
			t.Fatalf("SweepExpired = %d, %v; want 1, nil", n, err)
		}
		if _, err := f.engine.Session(ctx, id); !errors.Is(err, settlement.ErrSessionNotFound) {
			t.Errorf("expired session still present: %v", err)
		}
	})
}

func TestAttachParticipantsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1000", "0", "A", "B")

	if err := f.engine.AttachParticipants(ctx, id, []string{"C", "C", "D"}); err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.ApproveSession(ctx, id, approver)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Participants) != 2 || !res.Share.Equal(d("350")) {
		t.Errorf("participants %v share %s, want [C D] 350", res.Participants, res.Share)
	}
	if got := f.balance(t, "A"); !got.IsZero() {
		t.Errorf("replaced participant was credited %s", got)
	}
	if err := f.engine.AttachParticipants(ctx, id, []string{"E"}); !errors.Is(err, settlement.ErrAlreadySettled) {
		t.Errorf("attach after approve = %v, want ErrAlreadySettled", err)
	}
}

func TestRejectSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1000", "0", "A")

	if err := f.engine.RejectSession(ctx, id, "nobody"); !errors.Is(err, settlement.ErrUnauthorized) {
		t.Fatalf("unauthorized reject = %v", err)
	}
	if err := f.engine.RejectSession(ctx, id, approver); err != nil {
		t.Fatalf("RejectSession: %v", err)
	}
	if _, err := f.engine.ApproveSession(ctx, id, approver); !errors.Is(err, settlement.ErrInvalidState) {
		t.Fatalf("approve after reject = %v, want ErrInvalidState", err)
	}
	if err := f.engine.UndoSession(ctx, id, approver); !errors.Is(err, settlement.ErrNotSettled) {
		t.Fatalf("undo after reject = %v, want ErrNotSettled", err)
	}
	if got := f.balance(t, "A"); !got.IsZero() {
		t.Errorf("rejected split credited %s", got)
	}
}

func TestDeleteSettledSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{DeleteSettledSessions: true})
	id := f.openSession(t, "1000", "0", "A")

	if _, err := f.engine.ApproveSession(ctx, id, approver); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Session(ctx, id); !errors.Is(err, settlement.ErrSessionNotFound) {
		t.Fatalf("settled session kept: %v", err)
	}
	if err := f.engine.UndoSession(ctx, id, approver); !errors.Is(err, settlement.ErrSessionNotFound) {
		t.Errorf("undo of deleted session = %v, want ErrSessionNotFound", err)
	}
	if got := f.balance(t, "A"); !got.Equal(d("700")) {
		t.Errorf("balance(A) = %s, want 700", got)
	}
}

func TestUndoUsesSettledModifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1001", "1", "A", "B", "C")

	res, err := f.engine.ApproveSession(ctx, id, approver)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.engine.SetLootSplitModifier(ctx, guild, d("0.2")); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.UndoSession(ctx, id, approver); err != nil {
		t.Fatal(err)
	}
	for _, u := range []string{"A", "B", "C"} {
		if got := f.balance(t, u); !got.IsZero() {
			t.Errorf("balance(%s) after undo = %s, want 0 (share was %s)", u, got, res.Share)
		}
	}
}

func TestFailedCreditRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	f := newFixtureWith(t, mem, failingStore{mem}, settlement.Options{})
	id := f.openSession(t, "1000", "0", "A", "B")

	_, err := f.engine.ApproveSession(ctx, id, approver)
	if !errors.Is(err, settlement.ErrSettlementFailed) || !errors.Is(err, errDiskFull) {
		t.Fatalf("got %v, want ErrSettlementFailed wrapping the store error", err)
	}
	s, err := f.engine.Session(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Approved() {
		t.Errorf("session approved although the credit failed")
	}
	if got := f.balance(t, "A"); !got.IsZero() {
		t.Errorf("balance(A) = %s, want 0", got)
	}
}

var errDiskFull = errors.New("disk full")

type failingStore struct {
	*memstore.Store
}

func (s failingStore) WithinTx(ctx context.Context, fn func(tx settlement.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx settlement.Tx) error {
		return fn(failingBatch{tx})
	})
}

type failingBatch struct {
	settlement.Tx
}

func (failingBatch) BatchApply(context.Context, []ledger.Delta) error {
	return errDiskFull
}

func TestSettleRegear(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cost string
		tier silver.Tier
		want string
	}{
		{name: "full", cost: "1000", tier: silver.TierFull, want: "1000"},
		{name: "reduced", cost: "1000", tier: silver.TierReduced, want: "700"},
		{name: "reduced floors", cost: "1001", tier: silver.TierReduced, want: "700"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, settlement.Options{})
			id, err := f.engine.CreateRegearRequest(ctx, guild, "A", d(tt.cost))
			if err != nil {
				t.Fatal(err)
			}
			res, err := f.engine.SettleRegear(ctx, id, approver, tt.tier)
			if err != nil {
				t.Fatalf("SettleRegear: %v", err)
			}
			if !res.Amount.Equal(d(tt.want)) || !res.Balance.Equal(d(tt.want)) {
				t.Errorf("paid %s balance %s, want %s", res.Amount, res.Balance, tt.want)
			}

			// No tier may pay a settled request again.
			for _, tier := range []silver.Tier{silver.TierFull, silver.TierReduced} {
				if _, err := f.engine.SettleRegear(ctx, id, approver, tier); !errors.Is(err, settlement.ErrAlreadySettled) {
					t.Errorf("second settle at %s = %v, want ErrAlreadySettled", tier, err)
				}
			}
			if got := f.balance(t, "A"); !got.Equal(d(tt.want)) {
				t.Errorf("balance(A) = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRejectRegear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id, _ := f.engine.CreateRegearRequest(ctx, guild, "A", d("500"))

	if _, err := f.engine.SettleRegear(ctx, id, "nobody", silver.TierFull); !errors.Is(err, settlement.ErrUnauthorized) {
		t.Fatalf("unauthorized settle = %v", err)
	}
	if err := f.engine.RejectRegear(ctx, id, approver); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.SettleRegear(ctx, id, approver, silver.TierFull); !errors.Is(err, settlement.ErrInvalidState) {
		t.Fatalf("settle after reject = %v", err)
	}
	if _, err := f.engine.SettleRegear(ctx, "missing", approver, silver.TierFull); !errors.Is(err, settlement.ErrRegearNotFound) {
		t.Errorf("settle of unknown request = %v", err)
	}
	if _, err := f.engine.CreateRegearRequest(ctx, guild, "A", d("-1")); !errors.Is(err, settlement.ErrInvalidInput) {
		t.Errorf("negative estimate = %v, want ErrInvalidInput", err)
	}
}

func TestPurgeAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	for user, amount := range map[string]string{"gone1": "100", "gone2": "200", "gone3": "300", "member": "50"} {
		f.store.Credit(ctx, ledger.Key{GuildID: guild, UserID: user}, d(amount))
	}
	members := []string{"member", approver}

	if _, err := f.engine.PurgeAccounts(ctx, guild, members, "nobody"); !errors.Is(err, settlement.ErrUnauthorized) {
		t.Fatalf("unauthorized purge = %v", err)
	}
	if _, err := f.engine.PurgeAccounts(ctx, guild, nil, approver); !errors.Is(err, settlement.ErrInvalidInput) {
		t.Fatalf("purge with empty member list = %v, want ErrInvalidInput", err)
	}

	preview, err := f.engine.PreviewPurge(ctx, guild, members, approver)
	if err != nil {
		t.Fatal(err)
	}
	if preview.Deleted != 3 || !preview.Total.Equal(d("600")) {
		t.Errorf("preview = %d/%s, want 3/600", preview.Deleted, preview.Total)
	}

	sum, err := f.engine.PurgeAccounts(ctx, guild, members, approver)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Deleted != 3 || !sum.Total.Equal(d("600")) {
		t.Errorf("purge = %d/%s, want 3/600", sum.Deleted, sum.Total)
	}
	for _, user := range []string{"gone1", "gone2", "gone3"} {
		if _, err := f.engine.Balance(ctx, ledger.Key{GuildID: guild, UserID: user}); !errors.Is(err, settlement.ErrAccountNotFound) {
			t.Errorf("%s still present: %v", user, err)
		}
	}
	if got := f.balance(t, "member"); !got.Equal(d("50")) {
		t.Errorf("balance(member) = %s, want 50", got)
	}
}

func TestAccountOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	key := ledger.Key{GuildID: guild, UserID: "A"}

	if _, err := f.engine.Withdraw(ctx, key, d("10"), approver); !errors.Is(err, settlement.ErrAccountNotFound) {
		t.Fatalf("withdraw from missing account = %v", err)
	}
	if _, err := f.engine.Deposit(ctx, key, d("0"), approver); !errors.Is(err, settlement.ErrInvalidInput) {
		t.Fatalf("zero deposit = %v", err)
	}
	if _, err := f.engine.Deposit(ctx, key, d("100"), "nobody"); !errors.Is(err, settlement.ErrUnauthorized) {
		t.Fatalf("unauthorized deposit = %v", err)
	}

	a, err := f.engine.Deposit(ctx, key, d("100"), approver)
	if err != nil || !a.Balance.Equal(d("100")) {
		t.Fatalf("Deposit = %s, %v", a.Balance, err)
	}
	a, err = f.engine.Withdraw(ctx, key, d("130"), approver)
	if err != nil || !a.Balance.Equal(d("-30")) {
		t.Fatalf("Withdraw = %s, %v; want -30", a.Balance, err)
	}
	f.engine.Deposit(ctx, key, d("80"), approver)

	paid, err := f.engine.Payout(ctx, key, approver)
	if err != nil || !paid.Equal(d("50")) {
		t.Fatalf("Payout = %s, %v; want 50", paid, err)
	}
	if got := f.balance(t, "A"); !got.IsZero() {
		t.Errorf("balance after payout = %s", got)
	}

	f.engine.Deposit(ctx, ledger.Key{GuildID: guild, UserID: "B"}, d("300"), approver)
	f.engine.Deposit(ctx, ledger.Key{GuildID: guild, UserID: "C"}, d("200"), approver)
	top, err := f.engine.Leaderboard(ctx, guild, 2)
	if err != nil || len(top) != 2 || top[0].UserID != "B" || top[1].UserID != "C" {
		t.Errorf("Leaderboard = %+v, %v", top, err)
	}
	total, _ := f.engine.TotalBalance(ctx, guild, "C")
	if !total.Equal(d("300")) {
		t.Errorf("TotalBalance excluding C = %s, want 300", total)
	}
}

func TestConfigurationSetters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})

	for _, m := range []string{"-0.1", "1.01"} {
		if err := f.engine.SetLootSplitModifier(ctx, guild, d(m)); !errors.Is(err, settlement.ErrInvalidInput) {
			t.Errorf("SetLootSplitModifier(%s) = %v, want ErrInvalidInput", m, err)
		}
	}
	if err := f.engine.SetLootSplitAuthRole(ctx, guild, ""); !errors.Is(err, settlement.ErrInvalidInput) {
		t.Errorf("empty role = %v", err)
	}

	if _, _, err := f.engine.BuybackQuote(ctx, guild, d("1000")); !errors.Is(err, settlement.ErrConfigurationMissing) {
		t.Fatalf("quote without buyback modifier = %v", err)
	}
	if err := f.engine.SetBuybackModifier(ctx, guild, d("0.85")); err != nil {
		t.Fatal(err)
	}
	value, modifier, err := f.engine.BuybackQuote(ctx, guild, d("1001"))
	if err != nil || !value.Equal(d("850")) || !modifier.Equal(d("0.85")) {
		t.Errorf("BuybackQuote = %s (%s), %v; want 850 (0.85)", value, modifier, err)
	}
}

func TestRejectApprovedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1000", "0", "A")

	if _, err := f.engine.ApproveSession(ctx, id, approver); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.RejectSession(ctx, id, approver); !errors.Is(err, settlement.ErrAlreadySettled) {
		t.Fatalf("reject after approve = %v, want ErrAlreadySettled", err)
	}
	s, err := f.engine.Session(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Approved() {
		t.Errorf("state = %s, want approved", s.State)
	}
	if got := f.balance(t, "A"); !got.Equal(d("700")) {
		t.Errorf("balance(A) = %s, want 700", got)
	}
}

func TestUndoAfterPayoutGoesNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	id := f.openSession(t, "1000", "0", "A", "B")

	if _, err := f.engine.ApproveSession(ctx, id, approver); err != nil {
		t.Fatal(err)
	}
	paid, err := f.engine.Payout(ctx, ledger.Key{GuildID: guild, UserID: "A"}, approver)
	if err != nil {
		t.Fatal(err)
	}
	if !paid.Equal(d("350")) {
		t.Fatalf("paid = %s, want 350", paid)
	}

	if err := f.engine.UndoSession(ctx, id, approver); err != nil {
		t.Fatalf("UndoSession: %v", err)
	}
	if got := f.balance(t, "A"); !got.Equal(d("-350")) {
		t.Errorf("balance(A) = %s, want -350", got)
	}
	if got := f.balance(t, "B"); !got.IsZero() {
		t.Errorf("balance(B) = %s, want 0", got)
	}
}

func TestCancelPurge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})

	if err := f.engine.CancelPurge(ctx, guild, "nobody"); !errors.Is(err, settlement.ErrUnauthorized) {
		t.Errorf("cancel by non-approver = %v, want ErrUnauthorized", err)
	}
	if err := f.engine.CancelPurge(ctx, "unconfigured", approver); !errors.Is(err, settlement.ErrConfigurationMissing) {
		t.Errorf("cancel in unconfigured guild = %v, want ErrConfigurationMissing", err)
	}
	if err := f.engine.CancelPurge(ctx, guild, approver); err != nil {
		t.Errorf("cancel by approver = %v", err)
	}
}

func TestParticipantStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})

	first := f.openSession(t, "1000", "100", "A", "B")
	r1, err := f.engine.ApproveSession(ctx, first, approver)
	if err != nil {
		t.Fatal(err)
	}
	second := f.openSession(t, "2000", "0", "A", "B", "C", "D")
	r2, err := f.engine.ApproveSession(ctx, second, approver)
	if err != nil {
		t.Fatal(err)
	}
	f.openSession(t, "5000", "0", "A") // pending
	other := f.openSession(t, "3000", "0", "B")
	if _, err := f.engine.ApproveSession(ctx, other, approver); err != nil {
		t.Fatal(err)
	}

	// Changing the modifier does not reprice recorded shares.
	if err := f.engine.SetLootSplitModifier(ctx, guild, d("0.1")); err != nil {
		t.Fatal(err)
	}

	stats, err := f.engine.ParticipantStats(ctx, guild, "A")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Splits != 2 {
		t.Errorf("splits = %d, want 2", stats.Splits)
	}
	if !stats.Gross.Equal(d("3100")) {
		t.Errorf("gross = %s, want 3100", stats.Gross)
	}
	if want := r1.Share.Add(r2.Share); !stats.Earned.Equal(want) {
		t.Errorf("earned = %s, want %s", stats.Earned, want)
	}

	if err := f.engine.UndoSession(ctx, first, approver); err != nil {
		t.Fatal(err)
	}
	stats, err = f.engine.ParticipantStats(ctx, guild, "A")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Splits != 1 || !stats.Earned.Equal(r2.Share) {
		t.Errorf("after undo = %d/%s, want 1/%s", stats.Splits, stats.Earned, r2.Share)
	}

	stats, err = f.engine.ParticipantStats(ctx, "guild-2", "A")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Splits != 0 || !stats.Earned.IsZero() {
		t.Errorf("other guild = %+v, want empty", stats)
	}

	if _, err := f.engine.ParticipantStats(ctx, guild, ""); !errors.Is(err, settlement.ErrInvalidInput) {
		t.Errorf("empty user = %v, want ErrInvalidInput", err)
	}
}

func TestParticipantStatsWithoutRecordedShare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, settlement.Options{})
	err := f.store.CreateLootSplit(ctx, &session.LootSplit{
		ID:           "legacy",
		GuildID:      guild,
		CreatorID:    creator,
		Silver:       d("1000"),
		Donated:      d("0"),
		Participants: session.Participants{"A", "B"},
		State:        session.StateApproved,
		CreatedAt:    clock,
	})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := f.engine.ParticipantStats(ctx, guild, "A")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Splits != 1 || !stats.Earned.Equal(d("350")) {
		t.Errorf("stats = %d/%s, want 1/350", stats.Splits, stats.Earned)
	}
}
