package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	"github.com/skoret/simcard-bot/internal/access"
	"github.com/skoret/simcard-bot/internal/config"
	"github.com/skoret/simcard-bot/internal/httpapi"
	"github.com/skoret/simcard-bot/internal/logging"
	"github.com/skoret/simcard-bot/internal/reminder"
	"github.com/skoret/simcard-bot/internal/scheduler"
	"github.com/skoret/simcard-bot/internal/storage"
	"github.com/skoret/simcard-bot/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	repo, err := storage.NewRepository(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository")
	}
	defer repo.Close()
	// Fatal exits without running deferred calls.
	fatal := func(err error, msg string) {
		_ = repo.Close()
		log.Fatal().Err(err).Msg(msg)
	}

	if err := repo.Migrate(context.Background()); err != nil {
		fatal(err, "failed to run migrations")
	}

	accessService := access.NewService(cfg.Telegram.AdminIDs)
	log.Info().Ints64("admins", accessService.Admins()).Msg("admin allow-list loaded")

	tg, err := telegram.NewBot(cfg.Telegram.Token, repo, accessService, cfg.Policy())
	if err != nil {
		fatal(err, "failed to create telegram bot")
	}

	scanner := reminder.NewScanner(repo, tg, cfg.Policy())

	schedulerService, err := scheduler.NewService(cfg.Reminder.Schedule, cfg.Reminder.Location, scanner)
	if err != nil {
		fatal(err, "failed to create scheduler")
	}
	schedulerService.Start()

	gin.SetMode(gin.ReleaseMode)
	server := httpapi.NewServer(":"+cfg.Server.Port, httpapi.NewRouter(scanner, httpapi.Options{
		CronCheckRPS:   cfg.Server.CronCheckRPS,
		CronCheckBurst: cfg.Server.CronCheckBurst,
	}))
	go func() {
		if err := server.Run(); err != nil {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := tg.Run(ctx); err != nil {
			log.Error().Err(err).Msg("failed to run telegram bot")
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		log.Info().Stringer("signal", sig).Msg("graceful shutdown")

		schedulerService.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server forced to shutdown")
		}
		cancel()
	}()
	<-done
}
