package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-checkout/internal/auth"
	"github.com/noah-isme/backend-checkout/internal/database"
)

type seedCustomer struct {
	Name  string
	Email string
	Roles []string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	pool, err := database.Open(ctx, database.PoolConfig{URL: dbURL, ApplicationName: "checkout-seeder"})
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	customers := []seedCustomer{
		{"Admin User", "admin@checkout.dev", []string{"admin"}},
		{"Ana Souza", "ana@example.com", nil},
		{"Bruno Lima", "bruno@example.com", nil},
	}
	ids := seedCustomers(ctx, pool, customers)
	seedAddresses(ctx, pool, ids)
	seedProducts(ctx, pool)
	seedCoupons(ctx, pool)

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		printTokens(secret, customers, ids)
	}
	log.Println("Seeding completed successfully!")
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, customers []seedCustomer) []string {
	fmt.Println("Seeding Customers...")
	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO customers (email, name) VALUES ($1, $2)
			ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
			RETURNING id::text`, c.Email, c.Name).Scan(&id)
		if err != nil {
			log.Fatalf("Failed to seed customer %s: %v", c.Email, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func seedAddresses(ctx context.Context, pool *pgxpool.Pool, customerIDs []string) {
	fmt.Println("Seeding Addresses...")
	cities := []struct{ City, State, Postal string }{
		{"São Paulo", "SP", "01310-100"},
		{"Rio de Janeiro", "RJ", "22041-001"},
		{"Belo Horizonte", "MG", "30130-010"},
	}
	for i, id := range customerIDs {
		loc := cities[i%len(cities)]
		_, err := pool.Exec(ctx, `
			INSERT INTO addresses (customer_id, recipient, phone, line1, city, state, postal_code)
			SELECT $1::uuid, 'Default recipient', '+55 11 99999-0000', 'Rua Exemplo, 100', $2, $3, $4
			WHERE NOT EXISTS (SELECT 1 FROM addresses WHERE customer_id = $1::uuid)`,
			id, loc.City, loc.State, loc.Postal)
		if err != nil {
			log.Fatalf("Failed to seed address for %s: %v", id, err)
		}
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	fmt.Println("Seeding Products...")
	products := []struct {
		Code   string
		Title  string
		Price  int64
		Stock  *int64
		Weight int
	}{
		{"MUG-001", "Caneca Cerâmica 300ml", 3990, ptr(120), 350},
		{"TEE-001", "Camiseta Algodão", 7990, ptr(60), 200},
		{"CAP-001", "Boné Aba Curva", 5990, ptr(35), 150},
		{"EBOOK-001", "E-book Receitas", 1990, nil, 0},
		{"BAG-001", "Ecobag Lona", 2990, ptr(0), 120},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (code, title, price_cents, stock, weight_grams, width_cm, height_cm, length_cm)
			VALUES ($1, $2, $3, $4, $5, 11, 2, 16)
			ON CONFLICT (code) DO UPDATE
			SET title = EXCLUDED.title, price_cents = EXCLUDED.price_cents, stock = EXCLUDED.stock, updated_at = now()`,
			p.Code, p.Title, p.Price, p.Stock, p.Weight)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Code, err)
		}
	}
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) {
	fmt.Println("Seeding Coupons...")
	_, err := pool.Exec(ctx, `
		INSERT INTO coupons (code, kind, value, min_spend, usage_limit) VALUES
			('BEMVINDO10', 'fixed', 1000, 5000, NULL),
			('FRETEGRATIS', 'fixed', 1500, 10000, 100)
		ON CONFLICT (code) DO NOTHING`)
	if err != nil {
		log.Fatalf("Failed to seed fixed coupons: %v", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO coupons (code, kind, percent_bps, max_discount, valid_to) VALUES
			('BLACK20', 'percent', 2000, 5000, now() + interval '30 days')
		ON CONFLICT (code) DO NOTHING`)
	if err != nil {
		log.Fatalf("Failed to seed percent coupons: %v", err)
	}
}

func printTokens(secret string, customers []seedCustomer, ids []string) {
	tokens, err := auth.NewTokens(auth.Config{
		Secret:    secret,
		Issuer:    os.Getenv("JWT_ISSUER"),
		Audience:  os.Getenv("JWT_AUDIENCE"),
		AccessTTL: 24 * time.Hour,
	})
	if err != nil {
		log.Printf("Skipping dev tokens: %v", err)
		return
	}
	fmt.Println("Dev tokens (24h):")
	for i, c := range customers {
		token, _, err := tokens.Issue(ids[i], c.Roles...)
		if err != nil {
			log.Printf("Failed to issue token for %s: %v", c.Email, err)
			continue
		}
		fmt.Printf("  %-22s %s\n", c.Email, token)
	}
}

func ptr(v int64) *int64 { return &v }
