// Command catalog consumes picture events and records them in the database,
// so pictures acquired by the CLIs show up in the API.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/a-ayari03/POOL-AI/internal/adapters/datalog"
	natsadapter "github.com/a-ayari03/POOL-AI/internal/adapters/nats"
	"github.com/a-ayari03/POOL-AI/internal/adapters/postgres"
	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
	"github.com/a-ayari03/POOL-AI/internal/pkg/logging"
)

func main() {
	flags := pflag.NewFlagSet("catalog", pflag.ExitOnError)
	mirror := flags.String("mirror", "", "also append every event to this CSV datalog")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load("poolai-catalog")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	catalogs := []ports.PictureRepository{postgres.NewPictureRepo(db)}
	if *mirror != "" {
		catalogs = append(catalogs, datalog.New(afero.NewOsFs(), *mirror))
	}

	var sub ports.EventSubscriber
	s, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer s.Close()
	sub = s

	err = sub.SubscribePictures(ctx, func(ctx context.Context, p *domain.Picture) error {
		for _, c := range catalogs {
			if err := c.Record(ctx, p); err != nil {
				return err
			}
		}
		slog.Debug("picture recorded", "id", p.ID, "path", p.Path)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	slog.Info("catalog consumer started", "mirror", *mirror)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("received signal, shutting down catalog consumer", "signal", sig.String())
	cancel()
}
