package ledger

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/nkram/creditrail/internal/idgen"
	"github.com/nkram/creditrail/internal/user"
)

// PostgresStore implements Store with PostgreSQL.
//
// Atomicity comes from running the balance update and the entry insert in
// one transaction. The partial unique index on idempotency_key enforces
// the dedup guarantee, and the CHECK (credits >= 0) constraint on users
// enforces no-overdraft, so both hold even under concurrent writers.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, e *Entry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := AppendTx(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, user.ErrUserNotFound
	}
	return balance, err
}

func (p *PostgresStore) History(ctx context.Context, userID string, limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, delta, kind, reason, idempotency_key, balance_after, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (p *PostgresStore) GetByKey(ctx context.Context, key string) (*Entry, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, delta, kind, reason, idempotency_key, balance_after, created_at
		FROM ledger_entries WHERE idempotency_key = $1
	`, key)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	return e, err
}

func (p *PostgresStore) HasKey(ctx context.Context, key string) (bool, error) {
	return HasKeyTx(ctx, p.db, key)
}

func (p *PostgresStore) SumForUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE user_id = $1`,
		userID).Scan(&sum)
	return sum, err
}

// queryer lets the tx helpers run against either *sql.DB or *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AppendTx appends an entry within the caller's transaction. It updates
// the user's balance first so the entry can record balance_after, then
// inserts the entry. A unique violation on idempotency_key aborts the
// transaction; callers roll back and report ErrDuplicateKey.
func AppendTx(ctx context.Context, q queryer, e *Entry) error {
	err := q.QueryRowContext(ctx, `
		UPDATE users SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`, e.UserID, e.Delta).Scan(&e.BalanceAfter)
	if err == sql.ErrNoRows {
		return user.ErrUserNotFound
	}
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			return user.ErrInsufficientCredits
		}
		return err
	}

	e.ID = idgen.WithPrefix("led_")
	var key any
	if e.IdempotencyKey != "" {
		key = e.IdempotencyKey
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (id, user_id, delta, kind, reason, idempotency_key, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, e.ID, e.UserID, e.Delta, e.Kind, e.Reason, key, e.BalanceAfter).Scan(&e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// HasKeyTx reports whether an idempotency key is already recorded, within
// the caller's transaction (or directly on the DB).
func HasKeyTx(ctx context.Context, q queryer, key string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE idempotency_key = $1)`,
		key).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	e := &Entry{}
	var reason, key sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &e.Delta, &e.Kind, &reason, &key, &e.BalanceAfter, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Reason = reason.String
	e.IdempotencyKey = key.String
	return e, nil
}
