package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"txchain/internal/domain/ledger"
)

// OpenAccountRequest opens an account with an optional initial balance.
type OpenAccountRequest struct {
	Owner   string          `json:"owner" binding:"required"`
	Balance decimal.Decimal `json:"balance"`
}

// TransferRequest moves funds between two accounts.
// Amount accepts both JSON numbers and strings.
type TransferRequest struct {
	From   string          `json:"from" binding:"required"`
	To     string          `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func FromAccount(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Owner:     a.Owner,
		Balance:   a.Balance,
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// EntryResponse is one balance movement.
type EntryResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

func FromEntries(entries []ledger.Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{ID: e.ID, Amount: e.Amount, CreatedAt: e.CreatedAt})
	}
	return out
}

// TransferResponse holds both accounts after a transfer.
type TransferResponse struct {
	From AccountResponse `json:"from"`
	To   AccountResponse `json:"to"`
}

func FromTransfer(r *ledger.TransferResult) TransferResponse {
	return TransferResponse{From: FromAccount(r.From), To: FromAccount(r.To)}
}
