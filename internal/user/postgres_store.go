package user

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed user store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, u *User) error {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Name, u.Credits).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, email, name, credits, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := p.db.QueryRowContext(ctx, `
		SELECT id, email, name, credits, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.Credits, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
