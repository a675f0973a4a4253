package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/afero"

	"github.com/a-ayari03/POOL-AI/internal/adapters/cadastre"
	"github.com/a-ayari03/POOL-AI/internal/adapters/filestore"
	"github.com/a-ayari03/POOL-AI/internal/adapters/http"
	natsadapter "github.com/a-ayari03/POOL-AI/internal/adapters/nats"
	"github.com/a-ayari03/POOL-AI/internal/adapters/postgres"
	"github.com/a-ayari03/POOL-AI/internal/adapters/staticmap"
	"github.com/a-ayari03/POOL-AI/internal/adapters/valkey"
	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
	"github.com/a-ayari03/POOL-AI/internal/pkg/logging"
	"github.com/a-ayari03/POOL-AI/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("poolai-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// Cache is optional; keep the interface nil when it is down.
	var cache ports.CacheService
	vk, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vk.Close()
		cache = vk
	}

	// NATS
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	fs := afero.NewOsFs()
	parcelRepo := postgres.NewParcelRepo(db)

	pictureSvc := usecases.NewPictureService(usecases.PictureServiceConfig{
		Options:  staticmap.OptionsFrom(cfg.StaticMap),
		Fetcher:  staticmap.NewClient(time.Duration(cfg.StaticMap.TimeoutSeconds)*time.Second, cfg.StaticMap.MaxImageBytes),
		Store:    filestore.New(fs),
		Parcels:  parcelRepo,
		Catalog:  postgres.NewPictureRepo(db),
		Cache:    cache,
		Events:   events,
		CacheTTL: cfg.StaticMap.CacheTTL,
	})
	portal := cadastre.NewPortal(time.Duration(cfg.Cadastre.TimeoutSeconds) * time.Second)

	deps := &http.Dependencies{
		Pictures: pictureSvc,
		Parcels:  usecases.NewParcelService(parcelRepo, cache),
		Datasets: usecases.NewDatasetService(fs, events),
		Cadastre: usecases.NewCadastreService(fs, portal, parcelRepo, events),
		Settings: http.Settings{
			PictureDir: cfg.Pictures.OutputDir,
			DefaultSize: domain.ImageSize{
				Width:  cfg.StaticMap.Width,
				Height: cfg.StaticMap.Height,
				Zoom:   cfg.StaticMap.Zoom,
			},
			DatasetSource:   cfg.Dataset.SourceDir,
			DatasetDest:     cfg.Dataset.DestRoot,
			TrainRatio:      cfg.Dataset.TrainRatio,
			ValidRatio:      cfg.Dataset.ValidRatio,
			CadastreBaseURL: cfg.Cadastre.BaseURL,
			CadastreKeyword: cfg.Cadastre.Keyword,
			CadastreDir:     cfg.Cadastre.DownloadDir,
			APIKeySet:       cfg.StaticMap.APIKey != "",
		},
		NATS:  natsConn,
		DB:    db,
		Cache: vk,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // polygons in batch requests
		AppName:      "POOL-AI API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
