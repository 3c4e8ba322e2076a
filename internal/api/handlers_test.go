package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/susu3304/guildbank/internal/config"
	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/memstore"
	"github.com/susu3304/guildbank/internal/session"
	"github.com/susu3304/guildbank/internal/settlement"
)

const (
	testGuild = "111"
	testUser  = "42"
)

type testAPI struct {
	api   *API
	store *memstore.Store
}

// newTestAPI wires the API to an in-memory bank and a fake Discord that reports
// the caller as a member of guilds.
func newTestAPI(t *testing.T, guilds ...string) *testAPI {
	t.Helper()
	discord := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer discord-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/users/@me/guilds":
			out := make([]DiscordGuild, 0, len(guilds))
			for _, id := range guilds {
				out = append(out, DiscordGuild{ID: id, Name: "guild " + id})
			}
			json.NewEncoder(w).Encode(out)
		case "/users/@me":
			json.NewEncoder(w).Encode(DiscordUser{ID: testUser, Username: "tester"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(discord.Close)

	store := memstore.New()
	auth := settlement.AuthorizerFunc(func(context.Context, string, string, string) (bool, error) {
		return true, nil
	})
	engine := settlement.New(store, store, auth, settlement.Options{Logger: zaptest.NewLogger(t)})

	api := New(&config.Config{JWTSecret: "test-secret", WebBind: "127.0.0.1:0"}, engine, zaptest.NewLogger(t))
	api.discord = newDiscordClient(discord.URL, discord.Client())
	return &testAPI{api: api, store: store}
}

func (ta *testAPI) credit(t *testing.T, guild, user, amount string) {
	t.Helper()
	key := ledger.Key{GuildID: guild, UserID: user}
	if _, err := ta.store.Credit(context.Background(), key, decimal.RequireFromString(amount)); err != nil {
		t.Fatal(err)
	}
}

func (ta *testAPI) token(t *testing.T) string {
	t.Helper()
	tok, err := ta.api.issueToken(testUser, "tester", "discord-token", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (ta *testAPI) do(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	return w
}

func TestPublicLeaderboard(t *testing.T) {
	ta := newTestAPI(t)
	ta.credit(t, testGuild, "a", "100")
	ta.credit(t, testGuild, "b", "300")
	ta.credit(t, testGuild, "c", "200")
	ta.credit(t, "other", "d", "999")

	w := ta.do(t, "/api/public/guilds/"+testGuild+"/leaderboard?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}

	var accounts []ledger.Account
	if err := json.NewDecoder(w.Body).Decode(&accounts); err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].UserID != "b" || accounts[1].UserID != "c" {
		t.Errorf("Unexpected order: %s, %s", accounts[0].UserID, accounts[1].UserID)
	}
	if !accounts[0].Balance.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected balance 300, got %s", accounts[0].Balance)
	}
}

func TestPublicLeaderboardInvalidLimit(t *testing.T) {
	ta := newTestAPI(t)
	for _, limit := range []string{"abc", "0", "-1", "1000"} {
		w := ta.do(t, "/api/public/guilds/"+testGuild+"/leaderboard?limit="+limit, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected 400, got %v", limit, w.Code)
		}
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	ta := newTestAPI(t, testGuild)

	forged, err := (&API{jwtSecret: []byte("other-secret")}).issueToken(testUser, "tester", "discord-token", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	expired, err := ta.api.issueToken(testUser, "tester", "discord-token", time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "not bearer", header: "Token abc"},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{name: "wrong secret", header: "Bearer " + forged},
		{name: "expired", header: "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/guilds/"+testGuild+"/balances", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ta.api.Handler().ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %v", w.Code)
			}
		})
	}
}

func TestBalances(t *testing.T) {
	ta := newTestAPI(t, testGuild)
	ta.credit(t, testGuild, testUser, "150.5")
	ta.credit(t, testGuild, "other", "49.5")

	w := ta.do(t, "/api/guilds/"+testGuild+"/balances", ta.token(t))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v: %s", w.Code, w.Body.String())
	}
	var resp balancesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Total.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected total 200, got %s", resp.Total)
	}
	if len(resp.Accounts) != 2 {
		t.Errorf("Expected 2 accounts, got %d", len(resp.Accounts))
	}
}

func TestGuildAccessDenied(t *testing.T) {
	ta := newTestAPI(t, "222")

	w := ta.do(t, "/api/guilds/"+testGuild+"/balances", ta.token(t))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", w.Code)
	}
}

func TestMyBalance(t *testing.T) {
	ta := newTestAPI(t, testGuild)

	w := ta.do(t, "/api/guilds/"+testGuild+"/balances/me", ta.token(t))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without an account, got %v", w.Code)
	}

	ta.credit(t, testGuild, testUser, "75")
	w = ta.do(t, "/api/guilds/"+testGuild+"/balances/me", ta.token(t))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	var account ledger.Account
	if err := json.NewDecoder(w.Body).Decode(&account); err != nil {
		t.Fatal(err)
	}
	if account.UserID != testUser || !account.Balance.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Unexpected account %+v", account)
	}
}

func TestLootSplitScopedToGuild(t *testing.T) {
	ta := newTestAPI(t, testGuild, "222")
	ctx := context.Background()
	split := &session.LootSplit{
		ID:        "split-1",
		GuildID:   testGuild,
		CreatorID: testUser,
		Silver:    decimal.NewFromInt(1000),
		State:     session.StatePending,
		CreatedAt: time.Now(),
	}
	if err := ta.store.CreateLootSplit(ctx, split); err != nil {
		t.Fatal(err)
	}

	w := ta.do(t, "/api/guilds/"+testGuild+"/lootsplits/split-1", ta.token(t))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	var got session.LootSplit
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "split-1" || got.State != session.StatePending {
		t.Errorf("Unexpected split %+v", got)
	}

	if w := ta.do(t, "/api/guilds/222/lootsplits/split-1", ta.token(t)); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 from another guild, got %v", w.Code)
	}
	if w := ta.do(t, "/api/guilds/"+testGuild+"/lootsplits/missing", ta.token(t)); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown split, got %v", w.Code)
	}
}

func TestRegear(t *testing.T) {
	ta := newTestAPI(t, testGuild)
	req := &session.RegearRequest{
		ID:        "regear-1",
		GuildID:   testGuild,
		UserID:    testUser,
		Silver:    decimal.NewFromInt(500),
		State:     session.StatePending,
		CreatedAt: time.Now(),
	}
	if err := ta.store.CreateRegear(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	w := ta.do(t, "/api/guilds/"+testGuild+"/regears/regear-1", ta.token(t))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	if w := ta.do(t, "/api/guilds/"+testGuild+"/regears/nope", ta.token(t)); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %v", w.Code)
	}
}

func TestUserGuildsOnlyConfigured(t *testing.T) {
	ta := newTestAPI(t, testGuild, "222")
	if err := ta.store.SetLootSplitAuthRole(context.Background(), testGuild, "banker"); err != nil {
		t.Fatal(err)
	}

	w := ta.do(t, "/api/user/guilds", ta.token(t))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	var guilds []DiscordGuild
	if err := json.NewDecoder(w.Body).Decode(&guilds); err != nil {
		t.Fatal(err)
	}
	if len(guilds) != 1 || guilds[0].ID != testGuild {
		t.Errorf("Expected only the configured guild, got %+v", guilds)
	}
}

func TestLoginReturnsAuthURL(t *testing.T) {
	ta := newTestAPI(t)
	w := ta.do(t, "/api/auth/login", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["auth_url"] == "" || len(body["state"]) != 32 {
		t.Errorf("Unexpected login body %v", body)
	}
}

func TestCallbackRequiresCode(t *testing.T) {
	ta := newTestAPI(t)
	if w := ta.do(t, "/api/auth/callback", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %v", w.Code)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	ta := newTestAPI(t)
	if err := ta.api.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- ta.api.Start() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start after Shutdown = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		ta.api.Shutdown(context.Background())
		t.Fatal("Start kept serving after Shutdown")
	}
}

func TestCORSUsesWebUIOrigin(t *testing.T) {
	ta := newTestAPI(t)
	ta.api.config.WebUIBaseURL = "https://bank.example.com"

	tests := []struct {
		origin string
		want   string
	}{
		{origin: "https://bank.example.com", want: "https://bank.example.com"},
		{origin: "https://evil.example.com", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/public/guilds/"+testGuild+"/leaderboard", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			ta.api.Handler().ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
