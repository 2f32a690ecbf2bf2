package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/mentorhub/updatebuddy/internal/bot"
	"github.com/mentorhub/updatebuddy/internal/config"
	"github.com/mentorhub/updatebuddy/internal/db"
	"github.com/mentorhub/updatebuddy/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLog := zerolog.New(os.Stderr)
	if err := godotenv.Load(); err != nil {
		// Not fatal: system environment variables still apply.
		bootLog.Warn().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load configuration")
	}
	log := newLogger(cfg.LogLevel)

	sqlDB, err := sql.Open("sqlite3", db.DSN(cfg.DatabasePath))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer sqlDB.Close()

	store, err := db.NewStore(sqlDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init store")
	}
	if err := store.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("init schema")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("create discord session")
	}

	scheduler := services.NewReminderScheduler(store, bot.NewDMSender(session), log)
	defer scheduler.Stop()

	b := bot.New(session, bot.Deps{
		Importer:  services.NewRosterImporter(store, log),
		Intake:    services.NewIntakeService(store, log),
		Query:     services.NewQueryService(store),
		Export:    services.NewExportService(store, os.TempDir()),
		Scheduler: scheduler,
	}, log)

	if err := b.Open(); err != nil {
		log.Fatal().Err(err).Msg("connect to discord")
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("close discord session")
		}
	}()

	health := startHealthServer(cfg.HealthAddr, log)
	log.Info().Str("health_addr", cfg.HealthAddr).Str("database", cfg.DatabasePath).Msg("bot running")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("health server shutdown")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Logger().Level(lvl)
}

func startHealthServer(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Bot is running!"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()
	return srv
}
