// Command cadastre downloads commune archives from the open-data cadastre
// portal and loads their parcels.
//
//	cadastre download --commune 06029
//	cadastre extract  ./data/cadastre/06029/cadastre-06029-parcelles.json.gz
//	cadastre load     ./data/cadastre/06029/cadastre-06029-parcelles.json
//	cadastre import   --commune 06029 [--store]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/a-ayari03/POOL-AI/internal/adapters/cadastre"
	natsadapter "github.com/a-ayari03/POOL-AI/internal/adapters/nats"
	"github.com/a-ayari03/POOL-AI/internal/adapters/postgres"
	"github.com/a-ayari03/POOL-AI/internal/core/ports"
	"github.com/a-ayari03/POOL-AI/internal/core/usecases"
	cadastrepkg "github.com/a-ayari03/POOL-AI/internal/pkg/cadastre"
	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
	"github.com/a-ayari03/POOL-AI/internal/pkg/logging"
)

const usage = `usage: cadastre <command> [flags]

commands:
  download  fetch the archive linked from a commune index page
  extract   gunzip a downloaded archive
  load      decode an extracted GeoJSON file and print a summary
  import    download, extract, load and (with --store) upsert the parcels
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	flags := pflag.NewFlagSet("cadastre "+cmd, pflag.ExitOnError)
	commune := flags.StringP("commune", "c", "", "INSEE commune code, e.g. 06029")
	dept := flags.String("department", "", "department code (derived from --commune when empty)")
	indexURL := flags.String("url", "", "portal index page (overrides --commune)")
	flags.StringP("keyword", "k", "", "link text to look for on the index page")
	flags.String("dir", "", "root folder for downloaded archives")
	parent := flags.String("to", "", "extraction folder (extract; default: next to the archive)")
	store := flags.Bool("store", false, "upsert parcels into the database (import)")
	publish := flags.Bool("publish", false, "publish the import event to NATS (import)")
	_ = flags.Parse(os.Args[2:])

	cfg, err := config.LoadWithFlags("poolai-cadastre", flags, map[string]string{
		"cadastre.keyword":      "keyword",
		"cadastre.download_dir": "dir",
	})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	portal := cadastre.NewPortal(time.Duration(cfg.Cadastre.TimeoutSeconds) * time.Second)

	// target resolves the index page and the save folder of one commune.
	target := func() (string, string) {
		if *indexURL != "" {
			return *indexURL, filepath.Join(cfg.Cadastre.DownloadDir, usecases.DefaultSaveFolder(*indexURL))
		}
		u, err := cadastrepkg.CommuneIndexURL(cfg.Cadastre.BaseURL, *dept, *commune)
		if err != nil {
			log.Fatalf("%v", err)
		}
		return u, filepath.Join(cfg.Cadastre.DownloadDir, *commune)
	}

	switch cmd {
	case "download":
		u, folder := target()
		svc := usecases.NewCadastreService(fs, portal, nil, nil)
		link, path, err := svc.Download(ctx, u, cfg.Cadastre.Keyword, folder)
		if err != nil {
			log.Fatalf("download: %v", err)
		}
		slog.Info("downloaded", "url", link, "path", path)

	case "extract":
		archive := flags.Arg(0)
		if archive == "" {
			log.Fatal("extract: archive path required")
		}
		svc := usecases.NewCadastreService(fs, nil, nil, nil)
		path, err := svc.Extract(ctx, archive, *parent)
		if err != nil {
			log.Fatalf("extract: %v", err)
		}
		slog.Info("extracted", "path", path)

	case "load":
		file := flags.Arg(0)
		if file == "" {
			log.Fatal("load: GeoJSON path required")
		}
		parcels, err := usecases.NewCadastreService(fs, nil, nil, nil).Load(ctx, file)
		if err != nil {
			log.Fatalf("load: %v", err)
		}
		communes := map[string]int{}
		for _, p := range parcels {
			communes[p.Commune]++
		}
		out, _ := json.MarshalIndent(map[string]any{"parcels": len(parcels), "communes": communes}, "", "  ")
		fmt.Println(string(out))

	case "import":
		u, folder := target()

		var repo ports.ParcelRepository
		if *store {
			db, err := postgres.New(ctx, cfg.Database.DSN())
			if err != nil {
				log.Fatalf("database: %v", err)
			}
			defer db.Close()
			repo = postgres.NewParcelRepo(db)
		}
		var events ports.EventPublisher
		if *publish {
			pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
			if err != nil {
				log.Fatalf("nats: %v", err)
			}
			defer pub.Close()
			events = pub
		}

		report, err := usecases.NewCadastreService(fs, portal, repo, events).Import(ctx, u, cfg.Cadastre.Keyword, folder)
		if err != nil {
			stop()
			log.Fatalf("import: %v", err)
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}
