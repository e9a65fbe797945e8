package aiusage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store handles ai_usage persistence.
type Store struct {
	db      *pgxpool.Pool
	monthly int
	now     func() time.Time
}

// NewStore returns a Store granting monthly generations per caller.
func NewStore(db *pgxpool.Pool, monthly int) *Store {
	if monthly <= 0 {
		monthly = DefaultTokens
	}
	return &Store{db: db, monthly: monthly, now: time.Now}
}

func (s *Store) month() string {
	return s.now().UTC().Format("2006-01")
}

// UseToken atomically checks the monthly quota and deducts one generation.
// It resets the counter when last_reset_month is behind the current month.
// Returns ErrInsufficientTokens when 0 rows are updated (quota exhausted or caller absent).
func (s *Store) UseToken(ctx context.Context, uid string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE ai_usage SET
			tokens_remaining = CASE WHEN last_reset_month != $1 THEN $2 - 1 ELSE tokens_remaining - 1 END,
			last_reset_month = $1
		WHERE uid = $3 AND (last_reset_month < $1 OR tokens_remaining > 0)
	`, s.month(), s.monthly, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientTokens
	}
	return nil
}

// Refund gives one generation back, e.g. after every provider failed.
func (s *Store) Refund(ctx context.Context, uid string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE ai_usage SET tokens_remaining = LEAST(tokens_remaining + 1, $2)
		WHERE uid = $1 AND last_reset_month = $3
	`, uid, s.monthly, s.month())
	return err
}

// Remaining reports the generations left this month. Unknown callers have the full allowance.
func (s *Store) Remaining(ctx context.Context, uid string) (int, error) {
	var remaining int
	var month string
	err := s.db.QueryRow(ctx, `
		SELECT tokens_remaining, last_reset_month FROM ai_usage WHERE uid = $1
	`, uid).Scan(&remaining, &month)
	if err != nil {
		if isNoRows(err) {
			return s.monthly, nil
		}
		return 0, err
	}
	if month != s.month() {
		return s.monthly, nil
	}
	return remaining, nil
}

// EnsureUser inserts a new ai_usage row for uid with the monthly allowance.
// If the row already exists the insert is silently skipped (ON CONFLICT DO NOTHING).
func (s *Store) EnsureUser(ctx context.Context, uid string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_usage (uid, tokens_remaining, last_reset_month)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO NOTHING
	`, uid, s.monthly, s.month())
	return err
}
