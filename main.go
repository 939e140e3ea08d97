package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cli/browser"
	"github.com/joho/godotenv"

	"github.com/pacelab/config"
	"github.com/pacelab/loader"
	"github.com/pacelab/models"
	"github.com/pacelab/server"
	"github.com/pacelab/store"
	"github.com/pacelab/stream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logFile, err := server.SetupLogging(cfg.LogDir)
	if err != nil {
		log.Fatal("Failed to set up logging:", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src models.Source
	switch strings.ToLower(cfg.DataSource) {
	case "postgres":
		pool, err := store.ConnectPostgres(ctx, cfg)
		if err != nil {
			log.Fatal("Failed to connect to postgres:", err)
		}
		defer pool.Close()
		src = store.NewPostgresSource(pool)
	default:
		src = &loader.CSVSource{
			Samples:    cfg.SamplesCSV,
			Subjects:   cfg.SubjectsCSV,
			Stats:      cfg.StatsCSV,
			Thresholds: cfg.ThresholdsCSV,
			Client:     &http.Client{Timeout: 30 * time.Second},
		}
	}

	// The server still comes up without data; pages answer 409 until a load succeeds.
	if err := models.Store.PopulateDataStore(ctx, src, cfg.DataDir, cfg.CacheMaxAgeHours); err != nil {
		log.Printf("Failed to load data: %v", err)
	}

	redisClient := store.ConnectRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}
	hub, err := stream.NewHub(ctx, redisClient)
	if err != nil {
		log.Fatal("Failed to start event hub:", err)
	}
	defer hub.Close()

	srv := server.New(cfg, models.Store, hub)

	addr := cfg.Addr()
	if cfg.OpenBrowser {
		url := "http://localhost" + addr[strings.LastIndex(addr, ":"):]
		go func() {
			if err := browser.OpenURL(url); err != nil {
				log.Printf("Failed to open browser: %v", err)
			}
		}()
	}

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		log.Fatal("Server error:", err)
	}
}
