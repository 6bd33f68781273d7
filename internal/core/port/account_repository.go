package port

import (
	"context"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
//
// Save performs an optimistic version check: the stored row must still carry
// account.Version, and the write bumps it. A stale version surfaces as
// repository.ErrConflict so callers can re-read and retry their decision.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	Save(ctx context.Context, account domain.Account) error
	AppendHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error
	ListHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error)
	TrimHistory(ctx context.Context, accountID string, keep int) error
	ReplaceSecurityAnswers(ctx context.Context, accountID string, answers []domain.SecurityAnswer) error
}
