// Command storectl is a maintenance tool for the nostrchat local store:
// it applies schema migrations and reports store status without starting
// the client.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/alexflint/go-arg"
	"github.com/dmitrijs2005/nostrchat/internal/config"
	"github.com/dmitrijs2005/nostrchat/internal/logging"
	"github.com/dmitrijs2005/nostrchat/internal/storage"
)

type migrateCmd struct{}

type statusCmd struct{}

type args struct {
	DB      string      `arg:"-d,--db" help:"path to the database file (defaults to config)"`
	Migrate *migrateCmd `arg:"subcommand:migrate" help:"apply pending schema migrations"`
	Status  *statusCmd  `arg:"subcommand:status" help:"print schema version and row counts"`
}

func (args) Description() string {
	return "maintenance tool for the nostrchat local store"
}

func main() {
	var a args
	p := arg.MustParse(&a)

	cfg := config.LoadConfig()
	if a.DB != "" {
		cfg.DatabasePath = a.DB
	}

	ctx := context.Background()
	log := logging.NewDefault()

	switch {
	case a.Migrate != nil:
		if err := runMigrate(ctx, cfg); err != nil {
			log.Error(ctx, "migration failed", "err", err)
			os.Exit(1)
		}
	case a.Status != nil:
		if err := runStatus(ctx, cfg); err != nil {
			log.Error(ctx, "status failed", "err", err)
			os.Exit(1)
		}
	default:
		p.WriteHelp(os.Stdout)
	}
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	store, err := storage.Open(ctx, storage.DSN(cfg.DatabasePath))
	if err != nil {
		return err
	}
	defer store.Close()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("schema up to date, version %d\n", version)
	return nil
}

func runStatus(ctx context.Context, cfg *config.Config) error {
	store, err := storage.Open(ctx, storage.DSN(cfg.DatabasePath))
	if err != nil {
		return err
	}
	defer store.Close()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("database: %s\nschema version: %d\n", cfg.DatabasePath, version)

	tables := make([]string, 0, len(stats))
	for table := range stats {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Printf("%-18s %d\n", table, stats[table])
	}
	return nil
}
