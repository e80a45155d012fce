package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	statusProcessing = "processing"
	statusProcessed  = "processed"
)

// SQLite is a Store persisted in the webhook_deliveries table created by
// storage.BootstrapSQLite. The caller owns db.
type SQLite struct {
	db   *sql.DB
	opts Options
}

// NewSQLite wraps an opened, bootstrapped database.
func NewSQLite(db *sql.DB, opts Options) *SQLite {
	return &SQLite{db: db, opts: opts.withDefaults()}
}

func (s *SQLite) IsDuplicate(ctx context.Context, id string) (bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return false, err
	}

	var one int
	err = s.db.QueryRowContext(ctx, `
SELECT 1 FROM webhook_deliveries
WHERE delivery_id = ? AND status = ? AND processed_at > ?;
`, id, statusProcessed, s.retentionCutoff()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read delivery record: %w", err)
	}
	return true, nil
}

func (s *SQLite) MarkProcessed(ctx context.Context, id, token string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	now := s.format(s.opts.now())
	res, err := s.db.ExecContext(ctx, `
INSERT INTO webhook_deliveries(delivery_id, status, claim_token, claimed_at, lease_until, processed_at)
VALUES(?, ?, NULL, ?, NULL, ?)
ON CONFLICT(delivery_id) DO UPDATE SET
  status = excluded.status,
  claim_token = NULL,
  lease_until = NULL,
  processed_at = excluded.processed_at
WHERE (webhook_deliveries.status = ? AND (webhook_deliveries.claim_token = ? OR webhook_deliveries.lease_until <= ?))
   OR (webhook_deliveries.status = ? AND webhook_deliveries.processed_at <= ?);
`, id, statusProcessed, now, now,
		statusProcessing, token, now,
		statusProcessed, s.retentionCutoff())
	if err != nil {
		return fmt.Errorf("record processed delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record processed delivery: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing changed: either a live processed record or someone else's claim.
	var status string
	err = s.db.QueryRowContext(ctx,
		"SELECT status FROM webhook_deliveries WHERE delivery_id = ?;", id).Scan(&status)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record processed delivery: %w", err)
	}
	if status == statusProcessed {
		return nil
	}
	return ErrClaimLost
}

func (s *SQLite) Claim(ctx context.Context, id string) (string, bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return "", false, err
	}

	token := newToken()
	nowT := s.opts.now()
	now := s.format(nowT)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO webhook_deliveries(delivery_id, status, claim_token, claimed_at, lease_until, processed_at)
VALUES(?, ?, ?, ?, ?, NULL)
ON CONFLICT(delivery_id) DO UPDATE SET
  status = excluded.status,
  claim_token = excluded.claim_token,
  claimed_at = excluded.claimed_at,
  lease_until = excluded.lease_until,
  processed_at = NULL
WHERE (webhook_deliveries.status = ? AND webhook_deliveries.lease_until <= ?)
   OR (webhook_deliveries.status = ? AND webhook_deliveries.processed_at <= ?);
`, id, statusProcessing, token, now, s.format(nowT.Add(s.opts.ClaimLease)),
		statusProcessing, now,
		statusProcessed, s.retentionCutoff())
	if err != nil {
		return "", false, fmt.Errorf("claim delivery: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("claim delivery: %w", err)
	}
	if n != 1 {
		return "", false, nil
	}
	return token, true, nil
}

func (s *SQLite) Release(ctx context.Context, id, token string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM webhook_deliveries WHERE delivery_id = ? AND status = ? AND claim_token = ?;",
		id, statusProcessing, token)
	if err != nil {
		return fmt.Errorf("release delivery claim: %w", err)
	}
	return nil
}

func (s *SQLite) Lease() time.Duration { return s.opts.ClaimLease }

func (s *SQLite) Prune(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM webhook_deliveries
WHERE (status = ? AND processed_at <= ?)
   OR (status = ? AND lease_until <= ?);
`, statusProcessed, s.retentionCutoff(), statusProcessing, s.format(s.opts.now()))
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return int(n), nil
}

// Entries returns the number of processed records currently stored.
func (s *SQLite) Entries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM webhook_deliveries WHERE status = ?;", statusProcessed).Scan(&n); err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error { return nil }

func (s *SQLite) retentionCutoff() string {
	return s.format(s.opts.now().Add(-s.opts.Retention))
}

func (s *SQLite) format(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
