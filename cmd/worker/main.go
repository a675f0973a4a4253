package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/a-ayari03/POOL-AI/internal/adapters/cadastre"
	"github.com/a-ayari03/POOL-AI/internal/adapters/filestore"
	natsadapter "github.com/a-ayari03/POOL-AI/internal/adapters/nats"
	"github.com/a-ayari03/POOL-AI/internal/adapters/postgres"
	"github.com/a-ayari03/POOL-AI/internal/adapters/staticmap"
	"github.com/a-ayari03/POOL-AI/internal/adapters/valkey"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
	"github.com/a-ayari03/POOL-AI/internal/pkg/logging"
	"github.com/a-ayari03/POOL-AI/internal/pkg/telemetry"
	"github.com/a-ayari03/POOL-AI/internal/workflows"
)

func main() {
	cfg, err := config.Load("poolai-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
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

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	var cache ports.CacheService
	if vk, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vk.Close()
		cache = vk
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	fs := afero.NewOsFs()
	parcels := postgres.NewParcelRepo(db)

	activities := &workflows.AcquisitionActivities{
		Pictures: usecases.NewPictureService(usecases.PictureServiceConfig{
			Options:  staticmap.OptionsFrom(cfg.StaticMap),
			Fetcher:  staticmap.NewClient(time.Duration(cfg.StaticMap.TimeoutSeconds)*time.Second, cfg.StaticMap.MaxImageBytes),
			Store:    filestore.New(fs),
			Parcels:  parcels,
			Catalog:  postgres.NewPictureRepo(db),
			Cache:    cache,
			Events:   events,
			CacheTTL: cfg.StaticMap.CacheTTL,
		}),
		Cadastre: usecases.NewCadastreService(fs,
			cadastre.NewPortal(time.Duration(cfg.Cadastre.TimeoutSeconds)*time.Second),
			parcels, events),
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.AcquisitionWorkflow, workflow.RegisterOptions{
		Name: workflows.AcquisitionWorkflowName,
	})
	w.RegisterActivity(activities)

	slog.Info("acquisition worker started", "task_queue", cfg.Temporal.TaskQueue, "namespace", cfg.Temporal.Namespace)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
