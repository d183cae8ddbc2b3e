package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/dinhtan1304/lernkasten/internal/config"
	"github.com/dinhtan1304/lernkasten/internal/review"
	"github.com/dinhtan1304/lernkasten/internal/stats"
	"github.com/dinhtan1304/lernkasten/internal/storage"
	"github.com/dinhtan1304/lernkasten/internal/web"
)

func main() {
	defaults := config.Default()

	flags := pflag.NewFlagSet("lernkasten", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to a YAML config file")
	flags.String("addr", defaults.Addr, "HTTP listen address")
	flags.String("db", defaults.DB, "Path to the SQLite database file")
	flags.Int("queue_limit", defaults.QueueLimit, "Default review batch size")
	flags.Int("new_limit", defaults.NewLimit, "Default cap on new cards per batch")
	flags.Int("forecast_days", defaults.ForecastDays, "Default forecast horizon in days")
	flags.String("timezone", defaults.Timezone, "IANA timezone for day boundaries")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Timezone, err)
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DB)

	server := web.NewServer(
		review.NewService(db),
		stats.NewEngine(db, loc),
		web.Options{
			QueueLimit:   cfg.QueueLimit,
			NewLimit:     cfg.NewLimit,
			ForecastDays: cfg.ForecastDays,
		},
	)

	slog.Info("listening", "addr", cfg.Addr, "timezone", cfg.Timezone)
	if err := http.ListenAndServe(cfg.Addr, server); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
