// Package api serves read-only guild bank data over HTTP behind Discord OAuth2.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/susu3304/guildbank/internal/config"
	"github.com/susu3304/guildbank/internal/guildconfig"
	"github.com/susu3304/guildbank/internal/ledger"
	"github.com/susu3304/guildbank/internal/session"
)

// Bank is the read side of the settlement engine used by the API.
type Bank interface {
	Balance(ctx context.Context, key ledger.Key) (ledger.Account, error)
	Leaderboard(ctx context.Context, guildID string, limit int) ([]ledger.Account, error)
	TotalBalance(ctx context.Context, guildID string, exclude ...string) (decimal.Decimal, error)
	Session(ctx context.Context, id string) (*session.LootSplit, error)
	Regear(ctx context.Context, id string) (*session.RegearRequest, error)
	Configuration(ctx context.Context, guildID string) (*guildconfig.Configuration, error)
}

type API struct {
	router      *mux.Router
	bank        Bank
	config      *config.Config
	oauthConfig *oauth2.Config
	discord     *discordClient
	jwtSecret   []byte
	log         *zap.Logger
	server      *http.Server
}

func New(cfg *config.Config, bank Bank, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	api := &API{
		router:    mux.NewRouter(),
		bank:      bank,
		config:    cfg,
		discord:   newDiscordClient(discordAPIBase, http.DefaultClient),
		jwtSecret: []byte(cfg.JWTSecret),
		log:       log,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	api.server = &http.Server{
		Addr:              cfg.WebBind,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/public/guilds/{guild_id}/leaderboard", a.handlePublicLeaderboard).Methods("GET")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/user/guilds", a.handleUserGuilds).Methods("GET")

	guild := protected.PathPrefix("/guilds/{guild_id}").Subrouter()
	guild.Use(a.guildAccessMiddleware)
	guild.HandleFunc("/balances", a.handleBalances).Methods("GET")
	guild.HandleFunc("/balances/me", a.handleMyBalance).Methods("GET")
	guild.HandleFunc("/lootsplits/{id}", a.handleLootSplit).Methods("GET")
	guild.HandleFunc("/regears/{id}", a.handleRegear).Methods("GET")
}

func (a *API) Handler() http.Handler {
	origins := []string{"*"}
	if a.config.WebUIBaseURL != "" {
		origins = []string{a.config.WebUIBaseURL}
	}
	corsOptions := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}
	return cors.New(corsOptions).Handler(a.router)
}

// Start serves until Shutdown is called. After Shutdown it returns nil immediately.
func (a *API) Start() error {
	a.log.Info("API server listening", zap.String("addr", "http://"+a.config.WebBind))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
