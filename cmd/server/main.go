package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Elissa100/kapee-shop/internal/auth"
	"github.com/Elissa100/kapee-shop/internal/config"
	"github.com/Elissa100/kapee-shop/internal/database"
	"github.com/Elissa100/kapee-shop/internal/email"
	"github.com/Elissa100/kapee-shop/internal/logging"
	"github.com/Elissa100/kapee-shop/internal/redisx"
	"github.com/Elissa100/kapee-shop/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log, closer, err := logging.NewLogger(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log setup error:", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	applied, err := database.ApplyMigrations(ctx, db, "migrations")
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("migrations failed")
	}
	cancel()
	if applied > 0 {
		log.Info().Int("applied", applied).Msg("schema migrated")
	}

	redisClient, err := redisx.New(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	users := auth.NewPGUserStore(db)
	challenges := auth.NewPGChallengeStore(db)
	sessions := &auth.SessionStore{Redis: redisClient}
	rateLimiter := &auth.RateLimiter{Redis: redisClient}
	mailer := email.NewSender(cfg.Email)
	totpSvc := auth.NewTOTPService(cfg.TOTPIssuer)
	hasher := auth.NewBcryptHasher()

	challengeMailer := &server.ChallengeMailer{Mailer: mailer, BaseURL: cfg.BaseURL}
	manager := auth.NewChallengeManager(challenges, challengeMailer, log, cfg.ChallengeTTL)

	svc := auth.NewService(users, manager, hasher, log)
	svc.NoEmailVerify = cfg.NoEmailVerify

	api := server.NewServer(cfg, svc, sessions, rateLimiter, redisClient, mailer, totpSvc, log)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server exited")
	}
}
