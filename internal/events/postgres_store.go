package events

import (
	"context"
	"database/sql"
)

// PostgresStore implements Store with PostgreSQL. The unique constraint
// on payment_events.event_id is the dedup lock: concurrent deliveries of
// the same event race on the INSERT and exactly one wins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Admit(ctx context.Context, eventID, payload string) error {
	return AdmitTx(ctx, p.db, eventID, payload)
}

func (p *PostgresStore) SetStatus(ctx context.Context, eventID string, status Status) error {
	return SetStatusTx(ctx, p.db, eventID, status)
}

func (p *PostgresStore) Get(ctx context.Context, eventID string) (*Marker, error) {
	m := &Marker{}
	err := p.db.QueryRowContext(ctx, `
		SELECT event_id, status, payload, received_at, processed_at
		FROM payment_events WHERE event_id = $1
	`, eventID).Scan(&m.EventID, &m.Status, &m.Payload, &m.ReceivedAt, &m.ProcessedAt)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM payment_events GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// execer lets the tx helpers run against either *sql.DB or *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AdmitTx claims eventID within the caller's transaction (or directly on
// the DB). A marker left in status 'error' by a failed prior attempt is
// reclaimed; any other existing marker yields ErrDuplicateEvent.
//
// The insert uses ON CONFLICT DO NOTHING rather than catching the
// unique-violation error so that a duplicate does not abort the
// caller's transaction.
func AdmitTx(ctx context.Context, ex execer, eventID, payload string) error {
	result, err := ex.ExecContext(ctx, `
		INSERT INTO payment_events (event_id, status, payload, received_at)
		VALUES ($1, 'processing', $2, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, payload)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 1 {
		return nil
	}
	// Already claimed. Reclaim only if the prior attempt errored out.
	result, err = ex.ExecContext(ctx, `
		UPDATE payment_events SET
			status       = 'processing',
			received_at  = NOW(),
			processed_at = NULL
		WHERE event_id = $1 AND status = 'error'
	`, eventID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

// SetStatusTx records the processing outcome within the caller's
// transaction (or directly on the DB).
func SetStatusTx(ctx context.Context, ex execer, eventID string, status Status) error {
	result, err := ex.ExecContext(ctx, `
		UPDATE payment_events SET status = $2, processed_at = NOW()
		WHERE event_id = $1
	`, eventID, status)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrEventNotFound
	}
	return nil
}
