package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"txchain/internal/core/apperror"
	"txchain/internal/core/proxy"
	"txchain/internal/metadata"
)

// Target names registered by Service.
const (
	TargetOpen     = "ledger.open"
	TargetDebit    = "ledger.debit"
	TargetCredit   = "ledger.credit"
	TargetTransfer = "ledger.transfer"
	TargetBalance  = "ledger.balance"
	TargetEntries  = "ledger.entries"

	Group = "ledger"
)

// Targets returns the definitions Service registers.
// Reads are not transactional; configured rules may still mark them.
func Targets() []metadata.TargetDef {
	return []metadata.TargetDef{
		{Name: TargetOpen, Group: Group, Transactional: true},
		{Name: TargetDebit, Group: Group, Transactional: true},
		{Name: TargetCredit, Group: Group, Transactional: true},
		{Name: TargetTransfer, Group: Group, Transactional: true},
		{Name: TargetBalance, Group: Group},
		{Name: TargetEntries, Group: Group},
	}
}

// Service provides ledger operations.
// Public methods go through the dispatcher; the unexported targets hold the
// business logic and never touch transactions themselves.
type Service struct {
	repo       Repository
	dispatcher *proxy.Dispatcher
}

// NewService creates the service and registers its targets on dispatcher.
func NewService(repo Repository, dispatcher *proxy.Dispatcher) (*Service, error) {
	s := &Service{repo: repo, dispatcher: dispatcher}

	targets := map[string]proxy.Target{
		TargetOpen:     s.open,
		TargetDebit:    s.debit,
		TargetCredit:   s.credit,
		TargetTransfer: s.transfer,
		TargetBalance:  s.balance,
		TargetEntries:  s.entries,
	}
	for _, def := range Targets() {
		if _, err := dispatcher.Register(def, targets[def.Name]); err != nil {
			return nil, fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return s, nil
}

// Open creates an account with an initial balance.
func (s *Service) Open(ctx context.Context, owner string, initial decimal.Decimal) (*Account, error) {
	return proxy.Call[*Account](ctx, s.dispatcher, TargetOpen, owner, initial)
}

// Debit withdraws amount from an account.
func (s *Service) Debit(ctx context.Context, accountID string, amount decimal.Decimal) (*Account, error) {
	return proxy.Call[*Account](ctx, s.dispatcher, TargetDebit, accountID, amount)
}

// Credit deposits amount to an account.
func (s *Service) Credit(ctx context.Context, accountID string, amount decimal.Decimal) (*Account, error) {
	return proxy.Call[*Account](ctx, s.dispatcher, TargetCredit, accountID, amount)
}

// Transfer moves amount between accounts: debit first, then credit.
func (s *Service) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*TransferResult, error) {
	return proxy.Call[*TransferResult](ctx, s.dispatcher, TargetTransfer, from, to, amount)
}

// Balance returns the current account state.
func (s *Service) Balance(ctx context.Context, accountID string) (*Account, error) {
	return proxy.Call[*Account](ctx, s.dispatcher, TargetBalance, accountID)
}

// Entries returns the movements of an account, oldest first.
func (s *Service) Entries(ctx context.Context, accountID string) ([]Entry, error) {
	return proxy.Call[[]Entry](ctx, s.dispatcher, TargetEntries, accountID)
}

// --- targets ---

func (s *Service) open(ctx context.Context, args ...any) (any, error) {
	owner, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	initial, err := decimalArg(args, 1)
	if err != nil {
		return nil, err
	}

	acc := NewAccount(owner, initial)
	if err := acc.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}
	if initial.IsPositive() {
		if err := s.repo.AppendEntry(ctx, NewEntry(acc.ID, initial)); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (s *Service) debit(ctx context.Context, args ...any) (any, error) {
	id, amount, err := movementArgs(args)
	if err != nil {
		return nil, err
	}

	acc, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Balance.LessThan(amount) {
		return nil, apperror.NewInsufficientFunds(id, amount, acc.Balance)
	}
	return s.apply(ctx, acc, amount.Neg())
}

func (s *Service) credit(ctx context.Context, args ...any) (any, error) {
	id, amount, err := movementArgs(args)
	if err != nil {
		return nil, err
	}

	acc, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, acc, amount)
}

func (s *Service) transfer(ctx context.Context, args ...any) (any, error) {
	from, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	to, err := stringArg(args, 1)
	if err != nil {
		return nil, err
	}
	amount, err := decimalArg(args, 2)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, apperror.NewValidation("cannot transfer to the same account").WithDetail("account_id", from)
	}
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}

	// Nested transactional calls join the transaction opened for transfer.
	src, err := s.Debit(ctx, from, amount)
	if err != nil {
		return nil, err
	}
	dst, err := s.Credit(ctx, to, amount)
	if err != nil {
		return nil, err
	}
	return &TransferResult{From: src, To: dst}, nil
}

func (s *Service) balance(ctx context.Context, args ...any) (any, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) entries(ctx context.Context, args ...any) (any, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, id)
}

// apply writes the new balance and the matching entry.
func (s *Service) apply(ctx context.Context, acc *Account, delta decimal.Decimal) (*Account, error) {
	next := acc.Balance.Add(delta)
	if err := s.repo.UpdateBalance(ctx, acc.ID, next, acc.Version); err != nil {
		return nil, err
	}
	if err := s.repo.AppendEntry(ctx, NewEntry(acc.ID, delta)); err != nil {
		return nil, err
	}

	updated := *acc
	updated.Balance = next
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	return &updated, nil
}

// --- argument helpers ---

func movementArgs(args []any) (string, decimal.Decimal, error) {
	id, err := stringArg(args, 0)
	if err != nil {
		return "", decimal.Zero, err
	}
	amount, err := decimalArg(args, 1)
	if err != nil {
		return "", decimal.Zero, err
	}
	if !amount.IsPositive() {
		return "", decimal.Zero, apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}
	return id, amount, nil
}

func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", apperror.NewInternal(fmt.Errorf("missing argument %d", i))
	}
	v, ok := args[i].(string)
	if !ok {
		return "", apperror.NewInternal(fmt.Errorf("argument %d: got %T, want string", i, args[i]))
	}
	return v, nil
}

func decimalArg(args []any, i int) (decimal.Decimal, error) {
	if i >= len(args) {
		return decimal.Zero, apperror.NewInternal(fmt.Errorf("missing argument %d", i))
	}
	v, ok := args[i].(decimal.Decimal)
	if !ok {
		return decimal.Zero, apperror.NewInternal(fmt.Errorf("argument %d: got %T, want decimal", i, args[i]))
	}
	return v, nil
}
