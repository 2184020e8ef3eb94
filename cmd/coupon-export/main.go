// Command coupon-export dumps the coupons and orders tables as gzip
// compressed JSONL files for offline analytics.
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

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/mercadito/shop-api/internal/storage/postgres"
)

const progressEvery = 100_000

// export describes one table dump: the query to stream and the file it
// lands in. Each row is serialized as a single JSON line.
type export struct {
	name    string
	query   string
	columns []string
}

var exports = []export{
	{
		name: "coupons",
		query: `SELECT id, code, discount_type, discount_value, min_purchase,
			max_discount, expires_at, is_active, is_used, used_at, used_by,
			created_for, order_trigger, generation_type, description,
			trigger_amount, trigger_tier, created_at
			FROM coupons ORDER BY created_at`,
		columns: []string{
			"id", "code", "discount_type", "discount_value", "min_purchase",
			"max_discount", "expires_at", "is_active", "is_used", "used_at",
			"used_by", "created_for", "order_trigger", "generation_type",
			"description", "trigger_amount", "trigger_tier", "created_at",
		},
	},
	{
		name: "orders",
		query: `SELECT id, user_id, items_price, shipping_price, subtotal,
			discount_amount, tax_price, total_price, applied_coupon, status,
			is_paid, paid_at, coupon_generated, generated_coupon_id, created_at
			FROM orders ORDER BY created_at`,
		columns: []string{
			"id", "user_id", "items_price", "shipping_price", "subtotal",
			"discount_amount", "tax_price", "total_price", "applied_coupon",
			"status", "is_paid", "paid_at", "coupon_generated",
			"generated_coupon_id", "created_at",
		},
	},
}

func main() {
	var (
		databaseURL string
		outputDir   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outputDir, "output-dir", "export", "directory to write {table}.jsonl.gz files into")
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

	if err := run(ctx, databaseURL, outputDir); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("export completed successfully")
}

func run(ctx context.Context, databaseURL, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", outputDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	g, ctx := errgroup.WithContext(ctx)
	for _, e := range exports {
		g.Go(exportTable(ctx, pool, e, outputDir))
	}

	return g.Wait()
}

func exportTable(ctx context.Context, pool *pgxpool.Pool, e export, outputDir string) func() error {
	return func() error {
		path := filepath.Join(outputDir, e.name+".jsonl.gz")

		slog.Info("exporting table", slog.String("table", e.name), slog.String("path", path))

		f, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "create %s", path)
		}
		defer func() { _ = f.Close() }()

		gz := pgzip.NewWriter(f)
		w := bufio.NewWriter(gz)
		enc := json.NewEncoder(w)

		count, err := streamRows(ctx, pool, e, enc)
		if err != nil {
			return errors.Wrapf(err, "export table %s", e.name)
		}

		if err := w.Flush(); err != nil {
			return errors.Wrapf(err, "flush %s", path)
		}
		if err := gz.Close(); err != nil {
			return errors.Wrapf(err, "close gzip writer for %s", path)
		}
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "close %s", path)
		}

		slog.Info("table exported", slog.String("table", e.name), slog.Uint64("rows", count))
		return nil
	}
}

// streamRows runs the export query and writes each row as one JSON object,
// keyed by column name. Values come through as pgx decodes them; decimals
// and timestamps serialize via their native JSON representations.
func streamRows(ctx context.Context, pool *pgxpool.Pool, e export, enc *json.Encoder) (uint64, error) {
	rows, err := pool.Query(ctx, e.query)
	if err != nil {
		return 0, errors.Wrap(err, "run export query")
	}
	defer rows.Close()

	var count uint64
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return count, errors.Wrap(err, "read row values")
		}

		record := make(map[string]any, len(e.columns))
		for i, col := range e.columns {
			record[col] = values[i]
		}

		if err := enc.Encode(record); err != nil {
			return count, errors.Wrap(err, "encode row")
		}

		count++
		if count%progressEvery == 0 {
			slog.Info("export progress", slog.String("table", e.name), slog.Uint64("rows", count))
		}
	}

	if err := rows.Err(); err != nil {
		return count, errors.Wrap(err, "iterate rows")
	}

	return count, nil
}
