package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"maritime-marketplace/internal/models"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDuplicateOrder      = errors.New("order already exists for idempotency key")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrDuplicatePayment    = errors.New("payment already exists for order")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	Type   models.ProductType
	Search string
	Offset int
	Limit  int
}

// buildProductWhere renders the WHERE clause and its positional args
func buildProductWhere(filter ProductFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE $%d OR short_description ILIKE $%d OR array_to_string(tags, ' ') ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListProducts returns one page of products and the total number of matches
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int, error) {
	where, args := buildProductWhere(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf("SELECT * FROM products%s ORDER BY id LIMIT $%d OFFSET $%d", where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// CreateProduct inserts a catalog product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, short_description, price, credit_cost, image_url, tags, type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		p.Name, p.ShortDescription, p.Price, p.CreditCost, p.ImageURL, p.Tags, p.Type).
		Scan(&p.ID, &p.CreatedAt)
}

// GetCreditBalance returns the user's credit balance, zero when the user has no account
func (s *Store) GetCreditBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, "SELECT balance FROM user_credits WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// AddCredits tops up or refunds credits
func (s *Store) AddCredits(ctx context.Context, userID, amount int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_credits (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = user_credits.balance + $2, updated_at = NOW()`,
		userID, amount)
	return err
}

// DebitCreditsTx debits credits within a transaction (FOR UPDATE lock)
func (s *Store) DebitCreditsTx(ctx context.Context, userID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit %d: %w", amount, ErrInvalidAmount)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.GetContext(ctx, &balance,
		"SELECT balance FROM user_credits WHERE user_id = $1 FOR UPDATE", userID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("user %d has no credit account: %w", userID, ErrInsufficientCredits)
	}
	if err != nil {
		return fmt.Errorf("failed to lock credit balance: %w", err)
	}

	if balance < amount {
		return fmt.Errorf("balance=%d, requested=%d: %w", balance, amount, ErrInsufficientCredits)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE user_credits SET balance = balance - $1, updated_at = NOW() WHERE user_id = $2",
		amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	return tx.Commit()
}
