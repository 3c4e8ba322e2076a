package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/settlement"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type balancesResponse struct {
	GuildID  string           `json:"guild_id"`
	Total    decimal.Decimal  `json:"total"`
	Accounts []ledger.Account `json:"accounts"`
}

func (a *API) handleUserGuilds(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	guilds, err := a.discord.Guilds(r.Context(), claims.AccessToken)
	if err != nil {
		a.log.Warn("fetch user guilds", zap.String("user_id", claims.UserID), zap.Error(err))
		http.Error(w, "failed to get guilds", http.StatusBadGateway)
		return
	}

	// Only guilds that have configured the bank
	filtered := make([]DiscordGuild, 0, len(guilds))
	for _, g := range guilds {
		_, err := a.bank.Configuration(r.Context(), g.ID)
		switch {
		case err == nil:
			filtered = append(filtered, g)
		case errors.Is(err, settlement.ErrConfigurationMissing):
		default:
			a.serverError(w, "load configuration", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, filtered)
}

func (a *API) handleBalances(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]

	accounts, err := a.bank.Leaderboard(r.Context(), guildID, 0)
	if err != nil {
		a.serverError(w, "list balances", err)
		return
	}
	total, err := a.bank.TotalBalance(r.Context(), guildID)
	if err != nil {
		a.serverError(w, "total balance", err)
		return
	}

	writeJSON(w, http.StatusOK, balancesResponse{GuildID: guildID, Total: total, Accounts: accounts})
}

func (a *API) handleMyBalance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	key := ledger.Key{GuildID: mux.Vars(r)["guild_id"], UserID: claims.UserID}

	account, err := a.bank.Balance(r.Context(), key)
	if errors.Is(err, settlement.ErrAccountNotFound) {
		http.Error(w, "no payout account", http.StatusNotFound)
		return
	}
	if err != nil {
		a.serverError(w, "get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (a *API) handleLootSplit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	split, err := a.bank.Session(r.Context(), vars["id"])
	if errors.Is(err, settlement.ErrSessionNotFound) || (err == nil && split.GuildID != vars["guild_id"]) {
		http.Error(w, "loot split not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.serverError(w, "get loot split", err)
		return
	}

	writeJSON(w, http.StatusOK, split)
}

func (a *API) handleRegear(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	req, err := a.bank.Regear(r.Context(), vars["id"])
	if errors.Is(err, settlement.ErrRegearNotFound) || (err == nil && req.GuildID != vars["guild_id"]) {
		http.Error(w, "regear request not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.serverError(w, "get regear request", err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (a *API) handlePublicLeaderboard(w http.ResponseWriter, r *http.Request) {
	guildID := mux.Vars(r)["guild_id"]

	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLeaderboardLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	accounts, err := a.bank.Leaderboard(r.Context(), guildID, limit)
	if err != nil {
		a.serverError(w, "leaderboard", err)
		return
	}

	writeJSON(w, http.StatusOK, accounts)
}

// guildAccessMiddleware rejects callers that are not members of the guild in the path.
func (a *API) guildAccessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		guildID := mux.Vars(r)["guild_id"]

		ok, err := a.userHasGuildAccess(r, claims.AccessToken, guildID)
		if err != nil {
			a.log.Warn("check guild access", zap.String("user_id", claims.UserID), zap.Error(err))
			http.Error(w, "failed to check guild access", http.StatusBadGateway)
			return
		}
		if !ok {
			http.Error(w, "access denied", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) userHasGuildAccess(r *http.Request, accessToken, guildID string) (bool, error) {
	guilds, err := a.discord.Guilds(r.Context(), accessToken)
	if err != nil {
		return false, err
	}
	for _, g := range guilds {
		if g.ID == guildID {
			return true, nil
		}
	}
	return false, nil
}

func (a *API) serverError(w http.ResponseWriter, what string, err error) {
	a.log.Error(what, zap.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
