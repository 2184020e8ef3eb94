// Command seed-db loads demo users and the product catalog into the
// database and prints bearer tokens for them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mercadito/shop-api/internal/auth"
	"github.com/mercadito/shop-api/internal/storage/postgres"
)

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
	Stock int             `json:"stock"`
}

type seedUser struct {
	name    string
	email   string
	isAdmin bool
}

var seedUsers = []seedUser{
	{name: "Demo Customer", email: "customer@example.com"},
	{name: "Demo Admin", email: "admin@example.com", isAdmin: true},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		jwtSecret    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "JWT secret for demo tokens (or SHOP_JWT_SECRET env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("SHOP_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, jwtSecret); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, jwtSecret string) error {
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

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedDemoUsers(ctx, pool, jwtSecret); err != nil {
		return errors.Wrap(err, "seed users")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	const upsertSQL = `INSERT INTO products (id, name, image, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, image = EXCLUDED.image,
			price = EXCLUDED.price, stock = EXCLUDED.stock`

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertSQL, p.ID, p.Name, p.Image, p.Price, p.Stock); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.Name)
		}
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedDemoUsers(ctx context.Context, pool *pgxpool.Pool, jwtSecret string) error {
	const upsertSQL = `INSERT INTO users (id, name, email, is_admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, is_admin = EXCLUDED.is_admin
		RETURNING id`

	var verifier *auth.Verifier
	if jwtSecret != "" {
		verifier = auth.NewVerifier(jwtSecret)
	}

	for _, u := range seedUsers {
		var id string
		err := pool.QueryRow(ctx, upsertSQL, uuid.New().String(), u.name, u.email, u.isAdmin).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "upsert user %q", u.email)
		}

		slog.Info("user seeded", slog.String("email", u.email), slog.String("id", id))

		if verifier != nil {
			token, err := verifier.Sign(auth.Identity{UserID: id, IsAdmin: u.isAdmin}, 30*24*time.Hour)
			if err != nil {
				return errors.Wrapf(err, "sign token for %q", u.email)
			}
			slog.Info("demo token", slog.String("email", u.email), slog.String("token", token))
		}
	}
	return nil
}
