package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github.com/a-ayari03/POOL-AI/internal/pkg/config"
	"github.com/a-ayari03/POOL-AI/internal/pkg/logging"
)

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	dir := flags.String("dir", "migrations", "folder holding NNN_name.sql and NNN_name.down.sql files")
	_ = flags.Parse(os.Args[1:])
	if flags.NArg() != 1 {
		log.Fatal("usage: migrate [--dir migrations] <up|down>")
	}

	cfg, err := config.Load("poolai-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	up, down, err := discover(*dir)
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	switch flags.Arg(0) {
	case "up":
		err = run(ctx, pool, up)
	case "down":
		err = run(ctx, pool, down)
	default:
		log.Fatalf("unknown command: %s", flags.Arg(0))
	}
	if err != nil {
		pool.Close()
		log.Fatal(err)
	}
}

// discover returns the up files in name order and the down files in reverse
// name order.
func discover(dir string) (up, down []string, err error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(files)
	for _, f := range files {
		if strings.HasSuffix(f, ".down.sql") {
			down = append(down, f)
		} else {
			up = append(up, f)
		}
	}
	if len(up) == 0 {
		return nil, nil, fmt.Errorf("no migrations in %s", dir)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(down)))
	return up, down, nil
}

// run applies each file in its own transaction and stops at the first failure.
func run(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, string(data))
			return err
		})
		if err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		slog.Info("migration applied", "file", f)
	}

	slog.Info("all migrations applied", "count", len(files))
	return nil
}
