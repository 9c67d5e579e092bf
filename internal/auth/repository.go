package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/townboard/backend/internal/models"
)

var (
	// ErrAdminNotFound is returned for unknown usernames.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrAdminExists is returned when a username is already taken.
	ErrAdminExists = errors.New("admin already exists")
)

// Accounts looks up and creates admin accounts.
type Accounts interface {
	GetByUsername(ctx context.Context, username string) (*models.Admin, error)
	Create(ctx context.Context, username, passwordHash string) (*models.Admin, error)
}

// Repository handles admin persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an admin repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByUsername returns an admin by username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	const q = `SELECT id, username, password_hash, created_at FROM admins WHERE username = $1`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}

// Create inserts a new admin. A taken username yields ErrAdminExists.
func (r *Repository) Create(ctx context.Context, username, passwordHash string) (*models.Admin, error) {
	const q = `INSERT INTO admins (username, password_hash) VALUES ($1, $2)
		RETURNING id, username, password_hash, created_at`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, username, passwordHash).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAdminExists
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return &a, nil
}

// MemoryAccounts keeps admin accounts in process, for STORE_DRIVER=memory and tests.
type MemoryAccounts struct {
	mu     sync.RWMutex
	admins map[string]models.Admin
}

// NewMemoryAccounts creates an empty in-process account store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{admins: make(map[string]models.Admin)}
}

func (m *MemoryAccounts) GetByUsername(_ context.Context, username string) (*models.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[username]
	if !ok {
		return nil, ErrAdminNotFound
	}
	return &a, nil
}

func (m *MemoryAccounts) Create(_ context.Context, username, passwordHash string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[username]; ok {
		return nil, ErrAdminExists
	}
	a := models.Admin{ID: uuid.New(), Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	m.admins[username] = a
	return &a, nil
}

// CreateAdmin validates and hashes password, then stores a new admin.
func CreateAdmin(ctx context.Context, accounts Accounts, username, password string) (*models.Admin, error) {
	if username == "" {
		return nil, errors.New("username required")
	}
	if _, err := accounts.GetByUsername(ctx, username); err == nil {
		return nil, ErrAdminExists
	} else if !errors.Is(err, ErrAdminNotFound) {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return accounts.Create(ctx, username, hash)
}
