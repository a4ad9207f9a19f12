// Package ledger_repo provides the PostgreSQL implementation of ledger.Repository.
// Queries run on the transaction carried by ctx when one is open.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"txchain/internal/core/apperror"
	"txchain/internal/domain/ledger"
	"txchain/internal/infrastructure/storage/postgres"
)

const (
	accountsTable = "accounts"
	entriesTable  = "ledger_entries"

	// uniqueViolation is the SQLSTATE of a unique constraint violation.
	uniqueViolation = "23505"
)

// Schema creates the ledger tables.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	balance    NUMERIC(20,4) NOT NULL CHECK (balance >= 0),
	version    BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	amount     NUMERIC(20,4) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ledger_entries_account_idx ON ledger_entries (account_id, created_at);
`

var (
	accountCols = []string{"id", "owner", "balance", "version", "created_at", "updated_at"}
	entryCols   = []string{"id", "account_id", "amount", "created_at"}
)

// Compile-time check that AccountRepo implements ledger.Repository.
var _ ledger.Repository = (*AccountRepo)(nil)

// AccountRepo implements ledger.Repository.
type AccountRepo struct {
	res     *postgres.TxResource
	builder squirrel.StatementBuilderType
}

// NewAccountRepo creates a repository on top of the transaction resource.
func NewAccountRepo(res *postgres.TxResource) *AccountRepo {
	return &AccountRepo{
		res:     res,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Migrate applies Schema.
func (r *AccountRepo) Migrate(ctx context.Context) error {
	if _, err := r.res.GetQuerier(ctx).Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (r *AccountRepo) Create(ctx context.Context, a *ledger.Account) error {
	sql, args, err := r.builder.Insert(accountsTable).
		Columns(accountCols...).
		Values(a.ID, a.Owner, a.Balance, a.Version, a.CreatedAt, a.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.res.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.NewDuplicate("account", "id", a.ID).WithCause(err)
		}
		return apperror.NewDatabase(fmt.Errorf("insert account: %w", err))
	}
	return nil
}

func (r *AccountRepo) Get(ctx context.Context, id string) (*ledger.Account, error) {
	return r.get(ctx, id, "")
}

func (r *AccountRepo) GetForUpdate(ctx context.Context, id string) (*ledger.Account, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *AccountRepo) get(ctx context.Context, id, suffix string) (*ledger.Account, error) {
	q := r.builder.Select(accountCols...).From(accountsTable).Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var acc ledger.Account
	if err := pgxscan.Get(ctx, r.res.GetQuerier(ctx), &acc, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("account", id)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("select account: %w", err))
	}
	return &acc, nil
}

func (r *AccountRepo) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, version int64) error {
	sql, args, err := r.builder.Update(accountsTable).
		Set("balance", balance).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id, "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.res.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase(fmt.Errorf("update balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("account", id)
	}
	return nil
}

func (r *AccountRepo) AppendEntry(ctx context.Context, e ledger.Entry) error {
	sql, args, err := r.builder.Insert(entriesTable).
		Columns(entryCols...).
		Values(e.ID, e.AccountID, e.Amount, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.res.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert entry: %w", err))
	}
	return nil
}

func (r *AccountRepo) ListEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	sql, args, err := r.builder.Select(entryCols...).
		From(entriesTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var entries []ledger.Entry
	if err := pgxscan.Select(ctx, r.res.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("select entries: %w", err))
	}
	return entries, nil
}
