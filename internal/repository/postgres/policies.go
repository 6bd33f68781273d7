package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/repository"
)

// The policy table holds exactly one row; its primary key is pinned so that
// concurrent updates collapse into an upsert on the same row.
const policyRowID = 1

// PolicyRepository implements port.PolicyRepository using PostgreSQL.
type PolicyRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPolicyRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewPolicyRepository(exec pgExecutor) *PolicyRepository {
	repo := &PolicyRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Get returns the stored policy, or repository.ErrNotFound when the row was
// never seeded.
func (r *PolicyRepository) Get(ctx context.Context) (*domain.SecurityPolicy, error) {
	stmt, args, err := r.builder.
		Select(
			"min_length",
			"require_upper_lower",
			"require_digit",
			"require_special",
			"forbid_personal_data",
			"min_strength_score",
			"require_2fa",
			"prevent_reuse",
			"history_limit",
			"max_failed_attempts",
			"lockout_seconds",
			"required_security_questions",
			"updated_at",
		).
		From("accountsec.security_policy").
		Where(squirrel.Eq{"id": policyRowID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select policy sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		policy         domain.SecurityPolicy
		lockoutSeconds int64
	)

	if err := row.Scan(
		&policy.MinLength,
		&policy.RequireUpperLower,
		&policy.RequireDigit,
		&policy.RequireSpecial,
		&policy.ForbidPersonalData,
		&policy.MinStrengthScore,
		&policy.Require2FA,
		&policy.PreventReuse,
		&policy.HistoryLimit,
		&policy.MaxFailedAttempts,
		&lockoutSeconds,
		&policy.RequiredSecurityQuestions,
		&policy.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	policy.LockoutDuration = time.Duration(lockoutSeconds) * time.Second

	return &policy, nil
}

// Update upserts the singleton policy row and returns the stored state.
func (r *PolicyRepository) Update(ctx context.Context, policy domain.SecurityPolicy) (*domain.SecurityPolicy, error) {
	stmt := `INSERT INTO accountsec.security_policy (
			id,
			min_length,
			require_upper_lower,
			require_digit,
			require_special,
			forbid_personal_data,
			min_strength_score,
			require_2fa,
			prevent_reuse,
			history_limit,
			max_failed_attempts,
			lockout_seconds,
			required_security_questions,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			min_length = EXCLUDED.min_length,
			require_upper_lower = EXCLUDED.require_upper_lower,
			require_digit = EXCLUDED.require_digit,
			require_special = EXCLUDED.require_special,
			forbid_personal_data = EXCLUDED.forbid_personal_data,
			min_strength_score = EXCLUDED.min_strength_score,
			require_2fa = EXCLUDED.require_2fa,
			prevent_reuse = EXCLUDED.prevent_reuse,
			history_limit = EXCLUDED.history_limit,
			max_failed_attempts = EXCLUDED.max_failed_attempts,
			lockout_seconds = EXCLUDED.lockout_seconds,
			required_security_questions = EXCLUDED.required_security_questions,
			updated_at = EXCLUDED.updated_at`

	if policy.UpdatedAt.IsZero() {
		policy.UpdatedAt = time.Now().UTC()
	}

	if _, err := r.exec.Exec(ctx, stmt,
		policyRowID,
		policy.MinLength,
		policy.RequireUpperLower,
		policy.RequireDigit,
		policy.RequireSpecial,
		policy.ForbidPersonalData,
		policy.MinStrengthScore,
		policy.Require2FA,
		policy.PreventReuse,
		policy.HistoryLimit,
		policy.MaxFailedAttempts,
		int64(policy.LockoutDuration/time.Second),
		policy.RequiredSecurityQuestions,
		policy.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert policy: %w", err)
	}

	stored := policy
	return &stored, nil
}

var _ port.PolicyRepository = (*PolicyRepository)(nil)
