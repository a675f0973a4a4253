// Command split partitions a labelled dataset into train/val/test.
//
//	split --source ./labelised --dest ../datasets/pool --train 0.85 --valid 0.10
//	split --dry-run
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	natsadapter "github.com/a-ayari03/POOL-AI/internal/adapters/nats"
	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
	"github.com/a-ayari03/POOL-AI/internal/pkg/logging"
)

func main() {
	flags := pflag.NewFlagSet("split", pflag.ExitOnError)
	flags.StringP("source", "s", "", "labelled dataset holding images/ and labels/")
	flags.StringP("dest", "d", "", "destination root of the split")
	flags.Float64("train", 0, "train ratio")
	flags.Float64("valid", 0, "validation ratio")
	dryRun := flags.Bool("dry-run", false, "print the partition without copying")
	publish := flags.Bool("publish", false, "publish the split event to NATS")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadWithFlags("poolai-split", flags, map[string]string{
		"dataset.source_dir":  "source",
		"dataset.dest_root":   "dest",
		"dataset.train_ratio": "train",
		"dataset.valid_ratio": "valid",
	})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var events ports.EventPublisher
	if *publish && !*dryRun {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer pub.Close()
		events = pub
	}

	svc := usecases.NewDatasetService(afero.NewOsFs(), events)
	ds := cfg.Dataset

	var report *domain.SplitReport
	if *dryRun {
		report, err = svc.Preview(ds.SourceDir, ds.TrainRatio, ds.ValidRatio)
	} else {
		report, err = svc.Split(ctx, ds.SourceDir, ds.DestRoot, ds.TrainRatio, ds.ValidRatio)
	}
	if err != nil {
		stop()
		log.Fatalf("split %s: %v", ds.SourceDir, err)
	}

	slog.Info("split done",
		"dry_run", *dryRun,
		"train", report.Counts.Train,
		"val", report.Counts.Val,
		"test", report.Counts.Test,
		"duration", report.Duration,
	)
	out, _ := json.MarshalIndent(report.Counts, "", "  ")
	fmt.Println(string(out))
}
