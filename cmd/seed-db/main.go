package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bites-pos/db"
	"github.com/xenking/bites-pos/internal/domain/menu"
	"github.com/xenking/bites-pos/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		catalogFile string
		workers     int
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "", "path to a catalog JSON file, optionally gzipped (.gz); the embedded menu when empty")
	flag.IntVar(&workers, "workers", 4, "number of concurrent upserts")
	flag.BoolVar(&dryRun, "dry-run", false, "validate the catalog without touching the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, workers, dryRun); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string, workers int, dryRun bool) error {
	catalog, err := readCatalog(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}
	slog.Info("catalog loaded",
		slog.Int("items", len(catalog.Items)),
		slog.Int("tables", len(catalog.Tables)),
	)
	if dryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewCatalogRepository(pool)

	if err := seedItems(ctx, repo, catalog.Items, workers); err != nil {
		return errors.Wrap(err, "seed menu items")
	}

	if err := seedTables(ctx, repo, catalog.Tables); err != nil {
		return errors.Wrap(err, "seed tables")
	}

	return nil
}

// readCatalog decodes and validates the catalog at path, or the embedded seed
// menu when path is empty.
func readCatalog(path string) (menu.Catalog, error) {
	if path == "" {
		slog.Info("using embedded catalog")
		return menu.DecodeCatalog(db.Menu)
	}

	slog.Info("reading catalog file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return menu.Catalog{}, errors.Wrap(err, "open catalog file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return menu.Catalog{}, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return menu.Catalog{}, errors.Wrap(err, "read catalog file")
	}
	return menu.DecodeCatalog(data)
}

func seedItems(ctx context.Context, repo *postgres.CatalogRepository, items []menu.MenuItem, workers int) error {
	slog.Info("upserting menu items", slog.Int("count", len(items)), slog.Int("workers", workers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, m := range items {
		g.Go(func() error {
			if err := repo.UpsertItem(ctx, m); err != nil {
				return err
			}
			slog.Info("upserted menu item",
				slog.Int("id", m.ID),
				slog.String("name", m.Name),
				slog.Int("variants", len(m.Variants)),
			)
			return nil
		})
	}
	return g.Wait()
}

func seedTables(ctx context.Context, repo *postgres.CatalogRepository, tables []menu.Table) error {
	slog.Info("upserting tables", slog.Int("count", len(tables)))

	for _, t := range tables {
		if err := repo.UpsertTable(ctx, t); err != nil {
			return err
		}

		slog.Info("upserted table", slog.Int("id", t.ID), slog.String("name", t.Name))
	}

	return nil
}
