package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callbridge/pkg/utils"
)

// PostgresStore persists call records in the calls table (see migrations).
//
// UpdateByProviderCallID locks the row with SELECT ... FOR UPDATE inside a
// transaction, applies the transition, and writes the result. Concurrent
// webhook deliveries for the same provider call id serialize on the row
// lock, so no merge ever commits from a stale read.

type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const callColumns = `
id, provider_call_id, lead_id, lead_name, lead_phone, status,
transcript, call_summary, recording_url, duration_ms, created_at, updated_at`

func scanCall(row interface{ Scan(dest ...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.ProviderCallID,
		&c.LeadID,
		&c.LeadName,
		&c.LeadPhone,
		&c.Status,
		&c.Transcript,
		&c.CallSummary,
		&c.RecordingURL,
		&c.DurationMs,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (s *PostgresStore) Create(ctx context.Context, c Call) error {
	if c.ID == "" {
		return ErrInvalidRequest
	}
	const q = `
INSERT INTO calls (
  id, provider_call_id, lead_id, lead_name, lead_phone, status,
  transcript, call_summary, recording_url, duration_ms, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := s.db.ExecContext(ctx, q,
		c.ID,
		c.ProviderCallID,
		c.LeadID,
		c.LeadName,
		c.LeadPhone,
		c.Status,
		c.Transcript,
		c.CallSummary,
		c.RecordingURL,
		c.DurationMs,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Update(ctx context.Context, c Call) error {
	const q = `
UPDATE calls
SET provider_call_id = $2, status = $3, transcript = $4, call_summary = $5,
    recording_url = $6, duration_ms = $7, updated_at = $8
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q,
		c.ID,
		c.ProviderCallID,
		c.Status,
		c.Transcript,
		c.CallSummary,
		c.RecordingURL,
		c.DurationMs,
		s.clock().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM calls WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Call, error) {
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, ErrNotFound
	}
	const q = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1`
	c, err := scanCall(s.db.QueryRowContext(ctx, q, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) UpdateByProviderCallID(ctx context.Context, providerCallID string, fn UpdateFunc) (Call, bool, error) {
	if providerCallID == "" {
		return Call{}, false, nil
	}

	var out Call
	var found bool

	err := utils.WithTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1 FOR UPDATE`
		c, err := scanCall(tx.QueryRowContext(ctx, lockQ, providerCallID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		found = true

		next, changed := fn(c)
		if !changed {
			out = c
			return nil
		}
		next.UpdatedAt = s.clock().UTC()

		const updQ = `
UPDATE calls
SET status = $2, transcript = $3, call_summary = $4, recording_url = $5,
    duration_ms = $6, updated_at = $7
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, updQ,
			next.ID,
			next.Status,
			next.Transcript,
			next.CallSummary,
			next.RecordingURL,
			next.DurationMs,
			next.UpdatedAt,
		); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return Call{}, false, err
	}
	return out, found, nil
}

func (s *PostgresStore) ListRegistered(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE provider_call_id <> ''
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
