package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ============================================================
// SQLite Repository
// ============================================================

var (
	ErrNotFound     = errors.New("not found")
	ErrLoginTaken   = errors.New("login already taken")
	ErrInvalidLogin = errors.New("invalid credentials")
)

const (
	DemoUserID   = "11111111-1111-1111-1111-111111111111"
	demoLogin    = "demo"
	demoPassword = "demo"

	// timeLayout фиксированной ширины: строки сортируются как время.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

type Repository struct {
	db   *sql.DB
	cost int
	now  func() time.Time
}

func New(db *sql.DB) *Repository {
	return &Repository{
		db:   db,
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}
}

// Init запускает миграции и убеждается в наличии demo-пользователя.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := r.runMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return r.ensureDemoUser(ctx)
}

func (r *Repository) timestamp() string {
	return r.now().UTC().Format(timeLayout)
}

// ============================================================
// Migrations & Seeding
// ============================================================

func (r *Repository) runMigrations(ctx context.Context, migrationsPath string) error {
	data, err := os.ReadFile(migrationsPath)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (r *Repository) ensureDemoUser(ctx context.Context) error {
	_, err := r.GetUserByID(ctx, DemoUserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	if _, err := r.insertUser(ctx, DemoUserID, demoLogin, demoPassword, "Demo User", "demo@example.com"); err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
