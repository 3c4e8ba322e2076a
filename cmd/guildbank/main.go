package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/susu3304/guildbank/internal/api"
	"github.com/susu3304/guildbank/internal/bot"
	"github.com/susu3304/guildbank/internal/commands"
	"github.com/susu3304/guildbank/internal/config"
	cronrunner "github.com/susu3304/guildbank/internal/cron"
	"github.com/susu3304/guildbank/internal/db"
	"github.com/susu3304/guildbank/internal/logger"
	"github.com/susu3304/guildbank/internal/memstore"
	"github.com/susu3304/guildbank/internal/settlement"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logg.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("open storage", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer closeBackend()

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		logg.Fatal("create discord session", zap.Error(err))
	}
	members := bot.NewMembers(session)

	engine := settlement.New(backend, backend, members, settlement.Options{
		DeleteSettledSessions: !cfg.KeepSettledSessions,
		SessionTTL:            cfg.SessionTTL,
		Logger:                logg.Named("settlement"),
	})

	// Start Discord bot
	discordBot := bot.New(session, commands.NewHandler(engine, members, logg.Named("commands")), logg.Named("bot"))
	if err := discordBot.Start(); err != nil {
		logg.Fatal("start discord bot", zap.Error(err))
	}
	defer discordBot.Stop()

	runner := cronrunner.New(logg.Named("cron"), ctx)
	if _, err := runner.Add(cfg.SweepSchedule, cronrunner.SweepJob(engine, logg.Named("sweep"))); err != nil {
		logg.Fatal("schedule expired session sweep", zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
	}
	runner.Start()
	defer runner.Stop()

	// Start API server
	var apiServer *api.API
	if cfg.APIEnabled {
		apiServer = api.New(cfg, engine, logg.Named("api"))
		go func() {
			if err := apiServer.Start(); err != nil {
				logg.Error("API server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logg.Info("Shutting down...")

	if apiServer != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logg.Warn("API shutdown", zap.Error(err))
		}
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logg *zap.Logger) (settlement.Backend, func(), error) {
	if cfg.Storage == config.StorageMemory {
		logg.Warn("using in-memory storage; balances are lost on restart")
		return memstore.New(), func() {}, nil
	}

	// Connect to database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	// Run migrations
	if err := database.RunMigrations(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, database.Close, nil
}
