package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository persists accounts and entries.
// Implementations route queries through the transaction open on ctx, if any.
type Repository interface {
	Create(ctx context.Context, a *Account) error

	// Get returns apperror NOT_FOUND for unknown IDs.
	Get(ctx context.Context, id string) (*Account, error)

	// GetForUpdate is Get with a row lock where the store supports it.
	GetForUpdate(ctx context.Context, id string) (*Account, error)

	// UpdateBalance applies an optimistic update guarded by version and
	// returns CONCURRENT_MODIFICATION when the row changed meanwhile.
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, version int64) error

	AppendEntry(ctx context.Context, e Entry) error
	ListEntries(ctx context.Context, accountID string) ([]Entry, error)
}
