package port

import (
	"context"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

// PolicyRepository persists the singleton security policy row.
type PolicyRepository interface {
	Get(ctx context.Context) (*domain.SecurityPolicy, error)
	Update(ctx context.Context, policy domain.SecurityPolicy) (*domain.SecurityPolicy, error)
}
