// README: Monthly generation quota per authenticated caller.
package aiusage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Quota is what the HTTP layer needs from the usage module.
type Quota interface {
	UseToken(ctx context.Context, uid string) error
	Refund(ctx context.Context, uid string) error
	Remaining(ctx context.Context, uid string) (int, error)
}

// Service orchestrates AI token-usage logic.
type Service struct {
	store *Store
}

// NewService creates a Service backed by the given Store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// UseToken deducts one generation from the caller's monthly allowance.
// If the caller row does not exist yet it is initialised and the token is immediately consumed.
// Returns ErrInsufficientTokens when the quota for the current month is exhausted.
func (s *Service) UseToken(ctx context.Context, uid string) error {
	err := s.store.UseToken(ctx, uid)
	if !errors.Is(err, ErrInsufficientTokens) {
		return err
	}

	// Row may be missing: try to create it, then retry the deduction once.
	if initErr := s.store.EnsureUser(ctx, uid); initErr != nil {
		return initErr
	}
	return s.store.UseToken(ctx, uid)
}

func (s *Service) Refund(ctx context.Context, uid string) error {
	return s.store.Refund(ctx, uid)
}

func (s *Service) Remaining(ctx context.Context, uid string) (int, error) {
	return s.store.Remaining(ctx, uid)
}

// Unlimited is a Quota that never runs out. Used when no database is configured.
type Unlimited struct{}

func (Unlimited) UseToken(context.Context, string) error { return nil }

func (Unlimited) Refund(context.Context, string) error { return nil }

func (Unlimited) Remaining(context.Context, string) (int, error) { return DefaultTokens, nil }

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
