package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/repository"
)

const uniqueViolationCode = "23505"

var accountColumns = []string{
	"id",
	"username",
	"first_name",
	"last_name",
	"birth_date",
	"password_hash",
	"password_algo",
	"role",
	"must_change_password",
	"expires_at",
	"failed_attempts",
	"locked_until",
	"version",
	"created_at",
	"updated_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// Create inserts a new account row together with its security answers.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	query := r.builder.Insert("accountsec.accounts").
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Username,
			account.FirstName,
			account.LastName,
			timeValue(account.BirthDate),
			account.PasswordHash,
			account.PasswordAlgo,
			string(account.Role),
			account.MustChangePassword,
			timeValue(account.ExpiresAt),
			account.FailedAttempts,
			timeValue(account.LockedUntil),
			account.Version,
			account.CreatedAt,
			account.UpdatedAt,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}

	if len(account.SecurityAnswers) > 0 {
		if err := r.insertAnswers(ctx, r.exec, account.ID, account.SecurityAnswers); err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves an account by identifier, including its security answers.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByUsername retrieves an account by its canonical username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"username": domain.NormalizeUsername(username)})
}

func (r *AccountRepository) getBy(ctx context.Context, cond squirrel.Eq) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From("accountsec.accounts").
		Where(cond).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		account   domain.Account
		role      string
		birthDate *time.Time
	)

	if err := row.Scan(
		&account.ID,
		&account.Username,
		&account.FirstName,
		&account.LastName,
		&birthDate,
		&account.PasswordHash,
		&account.PasswordAlgo,
		&role,
		&account.MustChangePassword,
		&account.ExpiresAt,
		&account.FailedAttempts,
		&account.LockedUntil,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.BirthDate = birthDate
	account.Role = domain.AccountRole(role)

	answers, err := r.listAnswers(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.SecurityAnswers = answers

	return &account, nil
}

func (r *AccountRepository) listAnswers(ctx context.Context, accountID string) ([]domain.SecurityAnswer, error) {
	stmt, args, err := r.builder.
		Select("question", "answer_hash").
		From("accountsec.security_answers").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select answers sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query security answers: %w", err)
	}
	defer rows.Close()

	answers := make([]domain.SecurityAnswer, 0)
	for rows.Next() {
		var answer domain.SecurityAnswer
		if err := rows.Scan(&answer.Question, &answer.AnswerHash); err != nil {
			return nil, fmt.Errorf("scan security answer: %w", err)
		}
		answers = append(answers, answer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security answers: %w", err)
	}

	return answers, nil
}

// Save writes back a mutated account under an optimistic version check.
// The row must still carry account.Version; the write bumps it by one.
// A stale version surfaces as repository.ErrConflict.
func (r *AccountRepository) Save(ctx context.Context, account domain.Account) error {
	stmt, args, err := r.builder.Update("accountsec.accounts").
		Set("username", account.Username).
		Set("first_name", account.FirstName).
		Set("last_name", account.LastName).
		Set("birth_date", timeValue(account.BirthDate)).
		Set("password_hash", account.PasswordHash).
		Set("password_algo", account.PasswordAlgo).
		Set("role", string(account.Role)).
		Set("must_change_password", account.MustChangePassword).
		Set("expires_at", timeValue(account.ExpiresAt)).
		Set("failed_attempts", account.FailedAttempts).
		Set("locked_until", timeValue(account.LockedUntil)).
		Set("version", account.Version+1).
		Set("updated_at", account.UpdatedAt).
		Where(squirrel.Eq{"id": account.ID, "version": account.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update account sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if ct.RowsAffected() == 0 {
		// Either the row is gone or another writer bumped the version first.
		if _, getErr := r.GetByID(ctx, account.ID); getErr != nil {
			if errors.Is(getErr, repository.ErrNotFound) {
				return repository.ErrNotFound
			}
			return getErr
		}
		return repository.ErrConflict
	}

	return nil
}

// AppendHistory records a superseded credential hash.
func (r *AccountRepository) AppendHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error {
	stmt, args, err := r.builder.Insert("accountsec.password_history").
		Columns("id", "account_id", "password_hash", "set_at").
		Values(entry.ID, entry.AccountID, entry.PasswordHash, entry.SetAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	return nil
}

// ListHistory returns the most recent history entries, newest first.
func (r *AccountRepository) ListHistory(ctx context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	query := r.builder.
		Select("id", "account_id", "password_hash", "set_at").
		From("accountsec.password_history").
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("set_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query password history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.PasswordHistoryEntry, 0)
	for rows.Next() {
		var entry domain.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.PasswordHash, &entry.SetAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}

	return entries, nil
}

// TrimHistory drops history entries beyond the newest keep rows.
func (r *AccountRepository) TrimHistory(ctx context.Context, accountID string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	stmt := `DELETE FROM accountsec.password_history
		WHERE account_id = $1
		AND id NOT IN (
			SELECT id FROM accountsec.password_history
			WHERE account_id = $1
			ORDER BY set_at DESC
			LIMIT $2
		)`

	if _, err := r.exec.Exec(ctx, stmt, accountID, keep); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	return nil
}

// ReplaceSecurityAnswers swaps the full answer set for an account atomically.
func (r *AccountRepository) ReplaceSecurityAnswers(ctx context.Context, accountID string, answers []domain.SecurityAnswer) error {
	beginner, ok := r.exec.(txBeginner)
	if !ok {
		return r.replaceAnswers(ctx, r.exec, accountID, answers)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace answers tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.replaceAnswers(ctx, tx, accountID, answers); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace answers tx: %w", err)
	}

	return nil
}

func (r *AccountRepository) replaceAnswers(ctx context.Context, exec pgExecutor, accountID string, answers []domain.SecurityAnswer) error {
	stmt, args, err := r.builder.Delete("accountsec.security_answers").
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete answers sql: %w", err)
	}

	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete security answers: %w", err)
	}

	return r.insertAnswers(ctx, exec, accountID, answers)
}

func (r *AccountRepository) insertAnswers(ctx context.Context, exec pgExecutor, accountID string, answers []domain.SecurityAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	query := r.builder.Insert("accountsec.security_answers").
		Columns("account_id", "position", "question", "answer_hash")
	for i, answer := range answers {
		query = query.Values(accountID, i, answer.Question, answer.AnswerHash)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert answers sql: %w", err)
	}

	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert security answers: %w", err)
	}

	return nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
