package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"txchain/internal/core/apperror"
	"txchain/internal/domain/ledger"
)

type accountModel struct {
	ID        string `gorm:"primaryKey;type:text"`
	Owner     string `gorm:"type:text;not null"`
	Balance   string `gorm:"type:text;not null"`
	Version   int64  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (accountModel) TableName() string { return "accounts" }

type entryModel struct {
	ID        string    `gorm:"primaryKey;type:text"`
	AccountID string    `gorm:"type:text;not null;index:ledger_entries_account_idx,priority:1"`
	Amount    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:ledger_entries_account_idx,priority:2"`
}

func (entryModel) TableName() string { return "ledger_entries" }

// Compile-time check that AccountRepo implements ledger.Repository.
var _ ledger.Repository = (*AccountRepo)(nil)

// AccountRepo implements ledger.Repository with gorm.
type AccountRepo struct {
	res *TxResource
}

func NewAccountRepo(res *TxResource) *AccountRepo {
	return &AccountRepo{res: res}
}

// Migrate creates the ledger tables.
func (r *AccountRepo) Migrate(ctx context.Context) error {
	if err := r.res.DB(ctx).AutoMigrate(&accountModel{}, &entryModel{}); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (r *AccountRepo) Create(ctx context.Context, a *ledger.Account) error {
	m := accountModel{
		ID:        a.ID,
		Owner:     a.Owner,
		Balance:   a.Balance.String(),
		Version:   a.Version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if err := r.res.DB(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.NewDuplicate("account", "id", a.ID).WithCause(err)
		}
		return apperror.NewDatabase(fmt.Errorf("insert account: %w", err))
	}
	return nil
}

func (r *AccountRepo) Get(ctx context.Context, id string) (*ledger.Account, error) {
	var m accountModel
	if err := r.res.DB(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("account", id)
		}
		return nil, apperror.NewDatabase(fmt.Errorf("select account: %w", err))
	}
	return toAccount(m)
}

// GetForUpdate is Get: SQLite locks the whole database for the writing transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, id string) (*ledger.Account, error) {
	return r.Get(ctx, id)
}

func (r *AccountRepo) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal, version int64) error {
	res := r.res.DB(ctx).Model(&accountModel{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"balance":    balance.String(),
			"version":    version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return apperror.NewDatabase(fmt.Errorf("update balance: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperror.NewConcurrentModification("account", id)
	}
	return nil
}

func (r *AccountRepo) AppendEntry(ctx context.Context, e ledger.Entry) error {
	m := entryModel{
		ID:        e.ID,
		AccountID: e.AccountID,
		Amount:    e.Amount.String(),
		CreatedAt: e.CreatedAt,
	}
	if err := r.res.DB(ctx).Create(&m).Error; err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert entry: %w", err))
	}
	return nil
}

func (r *AccountRepo) ListEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	var models []entryModel
	err := r.res.DB(ctx).
		Where("account_id = ?", accountID).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("select entries: %w", err))
	}

	entries := make([]ledger.Entry, 0, len(models))
	for _, m := range models {
		amount, err := decimal.NewFromString(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("entry %s: parse amount: %w", m.ID, err)
		}
		entries = append(entries, ledger.Entry{
			ID:        m.ID,
			AccountID: m.AccountID,
			Amount:    amount,
			CreatedAt: m.CreatedAt,
		})
	}
	return entries, nil
}

func toAccount(m accountModel) (*ledger.Account, error) {
	balance, err := decimal.NewFromString(m.Balance)
	if err != nil {
		return nil, fmt.Errorf("account %s: parse balance: %w", m.ID, err)
	}
	return &ledger.Account{
		ID:        m.ID,
		Owner:     m.Owner,
		Balance:   balance,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
