// Command picture acquires static-map pictures: one polygon, one address, or
// every parcel of a labelling sheet.
//
//	picture --polygon parcel.geojson --parcel-id 060290000A0001 --has-pool
//	picture --address "12 rue de la Paix, Paris" --width 400 --height 300
//	picture --labels labels.csv --parcels cadastre-06029-parcelles.json
//	picture --labels labels.csv --temporal
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.temporal.io/sdk/client"

	"github.com/a-ayari03/POOL-AI/internal/adapters/datalog"
	"github.com/a-ayari03/POOL-AI/internal/adapters/filestore"
	natsadapter "github.com/a-ayari03/POOL-AI/internal/adapters/nats"
	"github.com/a-ayari03/POOL-AI/internal/adapters/postgres"
	"github.com/a-ayari03/POOL-AI/internal/adapters/staticmap"
	"github.com/a-ayari03/POOL-AI/internal/core/domain"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
	"github.com/a-ayari03/POOL-AI/internal/pkg/cadastre"
	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
	"github.com/a-ayari03/POOL-AI/internal/pkg/logging"
	"github.com/a-ayari03/POOL-AI/internal/workflows"
)

func main() {
	flags := pflag.NewFlagSet("picture", pflag.ExitOnError)
	polygonFile := flags.String("polygon", "", "GeoJSON geometry or Feature to outline")
	address := flags.String("address", "", "address to centre the picture on")
	labelsFile := flags.String("labels", "", "labelling sheet (id;zipcode;havepool)")
	parcelsFile := flags.String("parcels", "", "cadastre GeoJSON to resolve --labels against (default: database)")
	parcelID := flags.String("parcel-id", "", "parcel id encoded in the filename (--polygon)")
	zipcode := flags.String("zipcode", "", "zipcode recorded with the picture (--polygon)")
	hasPool := flags.Bool("has-pool", false, "mark the parcel as having a pool (--polygon)")
	flags.Int("width", 0, "image width in pixels")
	flags.Int("height", 0, "image height in pixels")
	flags.Int("zoom", 0, "zoom level 0-21")
	flags.StringP("out", "o", "", "output folder")
	flags.String("datalog", "", "CSV catalog of saved pictures")
	continueOnError := flags.Bool("continue-on-error", false, "keep going after a failed parcel (--labels)")
	publish := flags.Bool("publish", false, "publish picture events to NATS")
	useTemporal := flags.Bool("temporal", false, "run --labels as a workflow on the worker")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadWithFlags("poolai-picture", flags, map[string]string{
		"staticmap.width":     "width",
		"staticmap.height":    "height",
		"staticmap.zoom":      "zoom",
		"pictures.output_dir": "out",
		"pictures.datalog":    "datalog",
	})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	modes := 0
	for _, set := range []bool{*polygonFile != "", *address != "", *labelsFile != ""} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		log.Fatal("exactly one of --polygon, --address or --labels is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	size := domain.ImageSize{Width: cfg.StaticMap.Width, Height: cfg.StaticMap.Height, Zoom: cfg.StaticMap.Zoom}
	folder := cfg.Pictures.OutputDir

	if *useTemporal {
		if *labelsFile == "" {
			log.Fatal("--temporal requires --labels")
		}
		labels := readLabels(*labelsFile)
		if err := runWorkflow(ctx, cfg, labels, size, folder, *continueOnError); err != nil {
			log.Fatalf("workflow: %v", err)
		}
		return
	}

	fs := afero.NewOsFs()
	var events ports.EventPublisher
	if *publish {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer pub.Close()
		events = pub
	}

	svcCfg := usecases.PictureServiceConfig{
		Options: staticmap.OptionsFrom(cfg.StaticMap),
		Fetcher: staticmap.NewClient(time.Duration(cfg.StaticMap.TimeoutSeconds)*time.Second, cfg.StaticMap.MaxImageBytes),
		Store:   filestore.New(fs),
		Catalog: datalog.New(fs, cfg.Pictures.Datalog),
		Events:  events,
	}

	switch {
	case *polygonFile != "":
		data, err := os.ReadFile(*polygonFile)
		if err != nil {
			log.Fatalf("read polygon: %v", err)
		}
		poly, err := cadastre.ParsePolygon(data)
		if err != nil {
			log.Fatalf("parse polygon: %v", err)
		}
		req := domain.PictureRequest{
			Target:   domain.PolygonTarget(poly),
			Width:    size.Width,
			Height:   size.Height,
			Zoom:     size.Zoom,
			ParcelID: *parcelID,
			Zipcode:  *zipcode,
			HasPool:  *hasPool,
		}
		acquireOne(ctx, usecases.NewPictureService(svcCfg), req, folder)

	case *address != "":
		req := domain.PictureRequest{
			Target: domain.AddressTarget(*address),
			Width:  size.Width,
			Height: size.Height,
			Zoom:   size.Zoom,
		}
		acquireOne(ctx, usecases.NewPictureService(svcCfg), req, folder)

	default:
		labels := readLabels(*labelsFile)
		if *parcelsFile != "" {
			parcels, err := usecases.NewCadastreService(fs, nil, nil, nil).Load(ctx, *parcelsFile)
			if err != nil {
				log.Fatalf("load parcels: %v", err)
			}
			svcCfg.Parcels = newParcelIndex(parcels)
		} else {
			db, err := postgres.New(ctx, cfg.Database.DSN())
			if err != nil {
				log.Fatalf("database: %v", err)
			}
			defer db.Close()
			svcCfg.Parcels = postgres.NewParcelRepo(db)
		}
		if err := acquireLabels(ctx, usecases.NewPictureService(svcCfg), labels, size, folder, *continueOnError); err != nil {
			stop()
			log.Fatalf("acquisition: %v", err)
		}
	}
}

func acquireOne(ctx context.Context, svc *usecases.PictureService, req domain.PictureRequest, folder string) {
	pic, err := svc.Acquire(ctx, req, folder)
	if err != nil {
		log.Fatalf("acquire %s: %v", req.Label(), err)
	}
	slog.Info("picture saved", "path", pic.Path, "bytes", pic.Bytes, "cached", pic.Cached)
}

// acquireLabels resolves every labelled parcel and acquires its picture in
// sheet order, with the same fail-fast rule as a batch.
func acquireLabels(ctx context.Context, svc *usecases.PictureService, labels []domain.ParcelLabel, size domain.ImageSize, folder string, continueOnError bool) error {
	var errs []error
	saved := 0
	for i, l := range labels {
		if err := ctx.Err(); err != nil {
			return err
		}
		pic, err := svc.AcquireParcel(ctx, l, size, folder)
		if err != nil {
			berr := &domain.BatchError{Index: i, Label: l.ParcelID, Err: err}
			if !continueOnError {
				return berr
			}
			slog.Warn("parcel skipped", "index", i, "parcel_id", l.ParcelID, "error", err)
			errs = append(errs, berr)
			continue
		}
		saved++
		slog.Info("picture saved", "index", i, "parcel_id", l.ParcelID, "path", pic.Path)
	}
	slog.Info("labels processed", "requested", len(labels), "saved", saved, "failed", len(errs))
	return errors.Join(errs...)
}

func runWorkflow(ctx context.Context, cfg *config.Config, labels []domain.ParcelLabel, size domain.ImageSize, folder string, continueOnError bool) error {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	opts := client.StartWorkflowOptions{
		ID:        "acquisition-" + uuid.NewString(),
		TaskQueue: cfg.Temporal.TaskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, workflows.AcquisitionWorkflowName, workflows.AcquisitionInput{
		Labels:          labels,
		Size:            size,
		Folder:          folder,
		ContinueOnError: continueOnError,
	})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "labels", len(labels))

	var result workflows.AcquisitionResult
	if err := run.Get(ctx, &result); err != nil {
		return err
	}
	out, _ := json.MarshalIndent(result.Report, "", "  ")
	fmt.Println(string(out))
	return failuresErr(result.Report)
}

// failuresErr turns the failures a continue-on-error workflow collected into
// the same joined error acquireLabels returns.
func failuresErr(report domain.BatchReport) error {
	errs := make([]error, 0, len(report.Failures))
	for _, f := range report.Failures {
		errs = append(errs, &domain.BatchError{Index: f.Index, Label: f.Label, Err: errors.New(f.Error)})
	}
	return errors.Join(errs...)
}

func readLabels(path string) []domain.ParcelLabel {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open labels: %v", err)
	}
	defer f.Close()
	labels, err := cadastre.ReadLabels(f)
	if err != nil {
		log.Fatalf("read labels: %v", err)
	}
	return labels
}
