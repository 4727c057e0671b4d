package auth

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed key store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, key_hash, user_id, name, created_at, last_used, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, key.ID, key.Hash, key.UserID, key.Name, key.CreatedAt, key.LastUsed, key.ExpiresAt, key.Revoked)
	return err
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	key := &APIKey{}
	var lastUsed sql.NullTime
	var expiresAt *time.Time
	err := p.db.QueryRowContext(ctx, `
		SELECT id, key_hash, user_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE key_hash = $1
	`, hash).Scan(&key.ID, &key.Hash, &key.UserID, &key.Name, &key.CreatedAt, &lastUsed, &expiresAt, &key.Revoked)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		key.LastUsed = lastUsed.Time
	}
	key.ExpiresAt = expiresAt
	return key, nil
}

func (p *PostgresStore) GetByUser(ctx context.Context, userID string) ([]*APIKey, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, key_hash, user_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		key := &APIKey{}
		var lastUsed sql.NullTime
		var expiresAt *time.Time
		if err := rows.Scan(&key.ID, &key.Hash, &key.UserID, &key.Name, &key.CreatedAt, &lastUsed, &expiresAt, &key.Revoked); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			key.LastUsed = lastUsed.Time
		}
		key.ExpiresAt = expiresAt
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = $2, revoked = $3, expires_at = $4
		WHERE id = $1
	`, key.ID, key.LastUsed, key.Revoked, key.ExpiresAt)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrKeyNotFound
	}
	return nil
}
