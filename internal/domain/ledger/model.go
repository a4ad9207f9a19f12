// Package ledger is a small double-entry account domain.
// Its operations are dispatched through the interceptor chain so that
// nested transactional calls (transfer -> debit, credit) share one
// database transaction.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
)

// Account holds a balance.
type Account struct {
	ID        string          `db:"id" json:"id"`
	Owner     string          `db:"owner" json:"owner"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Version   int64           `db:"version" json:"version"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Entry is one balance movement. Debits are negative.
type Entry struct {
	ID        string          `db:"id" json:"id"`
	AccountID string          `db:"account_id" json:"accountId"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// TransferResult is the state of both accounts after a transfer.
type TransferResult struct {
	From *Account `json:"from"`
	To   *Account `json:"to"`
}

// NewAccount creates an account with a time-ordered ID.
func NewAccount(owner string, balance decimal.Decimal) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id.New(),
		Owner:     owner,
		Balance:   balance,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewEntry creates a movement for accountID.
func NewEntry(accountID string, amount decimal.Decimal) Entry {
	return Entry{
		ID:        id.New(),
		AccountID: accountID,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks owner and balance of a new account.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Owner) == "" {
		return apperror.NewValidation("owner is required").WithDetail("field", "owner")
	}
	if a.Balance.IsNegative() {
		return apperror.NewValidation("balance must not be negative").WithDetail("field", "balance")
	}
	return nil
}
