package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Elissa100/kapee-shop/internal/database"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "./migrations"
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := database.ApplyMigrations(ctx, db, migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Str("dir", migrationsDir).Int("applied", applied).Msg("migrations applied")
}
